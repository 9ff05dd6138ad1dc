// Package records defines the immutable record types that make up one day of
// the ledger: a Seed (morning intent), any number of Sweeps (activity notes),
// a Seal (end-of-day summary), and the derived Ledger and DayRoot views,
// plus the GIC reward transaction and feature-candidate types.
//
// Field names and JSON tags are the persisted wire format; changing them
// changes every record hash.
package records

import (
	"fmt"
	"regexp"
	"time"
)

// Record type discriminators as persisted in the "type" field.
const (
	TypeSeed             = "seed"
	TypeSweep            = "sweep"
	TypeSeal             = "seal"
	TypeDayRoot          = "day_root"
	TypeGicTransaction   = "gic_tx"
	TypeFeatureCandidate = "feature_candidate"
)

// Tier is the declared publication intent of a sweep submission.
type Tier string

const (
	TierPrivate        Tier = "private"
	TierPublish        Tier = "publish"
	TierPublishFeature Tier = "publish_feature"
)

// RequiresPublication reports whether the tier carries the minimum-length
// requirement for the higher reward.
func (t Tier) RequiresPublication() bool {
	return t == TierPublish || t == TierPublishFeature
}

// BonusReason is the transaction reason used for weekly featured-bonus
// payouts. Together with (user, content hash) it forms the exactly-once key.
const BonusReason = "featured_bonus"

// RewardReason is the transaction reason for a per-sweep reward.
func RewardReason(t Tier) string {
	return "reflection:" + string(t)
}

var dayKeyRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDayKey reports whether s is an ISO calendar-date day key.
func ValidDayKey(s string) bool {
	if !dayKeyRE.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// DayKeyOf formats t as a day key in UTC.
func DayKeyOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Timestamp formats t the way all records persist times: RFC 3339 UTC with a
// trailing Z.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999Z07:00")
}

// Seed is the day's opening intent. One per day key; a re-submission
// overwrites (last write wins).
type Seed struct {
	Type   string                 `json:"type"`
	Date   string                 `json:"date"`
	Time   string                 `json:"time"`
	Intent string                 `json:"intent"`
	Meta   map[string]interface{} `json:"meta"`
	TS     string                 `json:"ts"`
}

// Sweep is a single activity note. Zero or more per day, append-only,
// ordered by submission.
type Sweep struct {
	Type    string                 `json:"type"`
	Date    string                 `json:"date"`
	Chamber string                 `json:"chamber"`
	Note    string                 `json:"note"`
	Meta    map[string]interface{} `json:"meta"`
	TS      string                 `json:"ts"`
}

// Seal closes the day. At most one per day key.
type Seal struct {
	Type           string                 `json:"type"`
	Date           string                 `json:"date"`
	Wins           string                 `json:"wins"`
	Blocks         string                 `json:"blocks"`
	TomorrowIntent string                 `json:"tomorrow_intent"`
	Meta           map[string]interface{} `json:"meta"`
	TS             string                 `json:"ts"`
}

// LedgerCounts summarizes how many of each record kind fed the day root.
type LedgerCounts struct {
	Seeds  int `json:"seeds"`
	Sweeps int `json:"sweeps"`
	Seals  int `json:"seals"`
}

// Ledger is the derived per-day view: counts plus the Merkle root over
// seed, sweeps (in order), and seal. Regenerable at any time from its
// inputs; rebuilding on unchanged inputs yields identical bytes.
type Ledger struct {
	Date    string            `json:"date"`
	DayRoot string            `json:"day_root"`
	Counts  LedgerCounts      `json:"counts"`
	Links   map[string]string `json:"links"`
	TS      string            `json:"ts"`
}

// DayRootInputs records the leaf hashes the root was computed from.
type DayRootInputs struct {
	Seed string   `json:"seed"`
	Echo []string `json:"echo"`
	Seal string   `json:"seal"`
}

// DayRoot is the externally attested root artifact for a sealed day. Its
// existence is the precondition for archival and signing.
type DayRoot struct {
	Type   string        `json:"type"`
	Date   string        `json:"date"`
	Inputs DayRootInputs `json:"inputs"`
	Root   string        `json:"root"`
	Method string        `json:"method"`
	TS     string        `json:"ts"`
}

// GicTransaction is one append-only entry in the reward currency log.
// Zero-amount entries are written on dedup hits so replays stay auditable.
type GicTransaction struct {
	ID         string `json:"id,omitempty"`
	Type       string `json:"type"`
	Date       string `json:"date"`
	User       string `json:"user"`
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
	Hash       string `json:"hash,omitempty"`
	SourceDate string `json:"source_date,omitempty"`
	Score      int    `json:"score,omitempty"`
	Votes      int    `json:"votes,omitempty"`
	TS         string `json:"ts"`
}

// FeatureCandidate is a sweep queued for weekly bonus ranking.
type FeatureCandidate struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Date  string `json:"date"`
	User  string `json:"user"`
	Hash  string `json:"hash,omitempty"`
	Len   int    `json:"len"`
	Votes int    `json:"votes"`
	TS    string `json:"ts"`
}

// Score is the bonus ranking score: content length plus ten points per vote.
func (c FeatureCandidate) Score() int {
	return c.Len + 10*c.Votes
}

// DayPresence flags which artifacts exist for a day.
type DayPresence struct {
	Seed   bool `json:"seed"`
	Echo   bool `json:"echo"`
	Seal   bool `json:"seal"`
	Ledger bool `json:"ledger"`
	Gic    bool `json:"gic"`
}

// DayGic summarizes the day's reward transactions.
type DayGic struct {
	Count int   `json:"count"`
	Sum   int64 `json:"sum"`
}

// DaySummary is the read-only verification view of one day.
type DaySummary struct {
	Date    string            `json:"date"`
	Present DayPresence       `json:"present"`
	Counts  LedgerCounts      `json:"counts"`
	Gic     DayGic            `json:"gic"`
	DayRoot string            `json:"day_root,omitempty"`
	Links   map[string]string `json:"links"`
}

func (s DaySummary) String() string {
	return fmt.Sprintf("%s seeds=%d sweeps=%d seals=%d gic=%d root=%s",
		s.Date, s.Counts.Seeds, s.Counts.Sweeps, s.Counts.Seals, s.Gic.Sum, s.DayRoot)
}
