// Package bonus runs the weekly featured-bonus payout: it ranks queued
// feature candidates over a date window, selects the top N, and pays each
// winner once. Idempotence is structural — the GIC store's unique
// (user, content hash, reason) key makes a re-run a no-op — so the engine
// can be replayed safely after a crash or a duplicate trigger.
package bonus

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/kaizencycle/hive-ledger/pkg/audit"
	"github.com/kaizencycle/hive-ledger/pkg/gicstore"
	"github.com/kaizencycle/hive-ledger/pkg/records"
)

// Params configures one bonus run.
type Params struct {
	// Window: either Week == "latest" for the most recent fully elapsed
	// Monday-to-Sunday week, or an explicit closed [Start, End] day range.
	Week  string `json:"week,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	// PayoutDay is the day key the payout transactions are written under.
	// Defaults to today.
	PayoutDay string `json:"payout_day,omitempty"`

	TopN   int   `json:"top_n,omitempty"`
	MinLen int   `json:"min_len,omitempty"`
	Min    int64 `json:"bonus_min,omitempty"`
	Max    int64 `json:"bonus_max,omitempty"`

	// DryRun computes winners and amounts without persisting anything.
	DryRun bool `json:"dry,omitempty"`
}

// Winner is one ranked payout decision.
type Winner struct {
	User        string `json:"user"`
	Hash        string `json:"hash,omitempty"`
	SourceDate  string `json:"source_date"`
	Score       int    `json:"score"`
	Votes       int    `json:"votes"`
	Amount      int64  `json:"amount"`
	AlreadyPaid bool   `json:"already_paid"`
}

// Result is the observable outcome of a run.
type Result struct {
	Window       [2]string `json:"window"`
	PayoutDay    string    `json:"payout_day"`
	Eligible     int       `json:"eligible"`
	Winners      []Winner  `json:"winners"`
	Written      int       `json:"written"`
	AlreadyPaid  int       `json:"already_paid"`
	DryRun       bool      `json:"dry"`
	NoCandidates bool      `json:"no_candidates"`
}

// Engine ranks candidates and writes payouts.
type Engine struct {
	gic    *gicstore.Store
	audit  audit.Logger
	clock  func() time.Time
	logger *slog.Logger
}

// NewEngine creates a bonus engine over the GIC store.
func NewEngine(gic *gicstore.Store, auditLog audit.Logger) *Engine {
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	return &Engine{
		gic:    gic,
		audit:  auditLog,
		clock:  time.Now,
		logger: slog.Default().With("component", "bonus"),
	}
}

// WithClock overrides the clock for testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// LatestFullWeek returns the most recent Monday-to-Sunday week that has
// fully elapsed as of now.
func LatestFullWeek(now time.Time) (start, end time.Time) {
	now = now.UTC()
	// Days since Monday, with Monday == 0.
	sinceMonday := (int(now.Weekday()) + 6) % 7
	end = now.AddDate(0, 0, -(sinceMonday + 1))
	start = end.AddDate(0, 0, -6)
	return start, end
}

func (e *Engine) resolveWindow(p Params) (start, end string, err error) {
	if p.Week == "latest" {
		s, en := LatestFullWeek(e.clock())
		return records.DayKeyOf(s), records.DayKeyOf(en), nil
	}
	if !records.ValidDayKey(p.Start) || !records.ValidDayKey(p.End) {
		return "", "", fmt.Errorf("bonus: provide week=latest or a valid start and end day")
	}
	if p.Start > p.End {
		return "", "", fmt.Errorf("bonus: start %s after end %s", p.Start, p.End)
	}
	return p.Start, p.End, nil
}

// payoutFor interpolates linearly from Max at rank 0 down to Min at rank
// n-1. A single winner gets the midpoint.
func payoutFor(rank, n int, min, max int64) int64 {
	if n == 1 {
		return (min + max) / 2
	}
	span := float64(n - 1)
	frac := 1 - float64(rank)/span
	return int64(math.Round(float64(min) + frac*float64(max-min)))
}

// Run executes one bonus computation. An empty eligible pool is a normal
// outcome (NoCandidates), not an error.
func (e *Engine) Run(ctx context.Context, p Params) (*Result, error) {
	start, end, err := e.resolveWindow(p)
	if err != nil {
		return nil, err
	}

	payoutDay := p.PayoutDay
	if payoutDay == "" {
		payoutDay = records.DayKeyOf(e.clock())
	}
	if !records.ValidDayKey(payoutDay) {
		return nil, fmt.Errorf("bonus: invalid payout day %q", payoutDay)
	}

	topN := p.TopN
	if topN < 1 {
		topN = 1
	}
	minLen := p.MinLen
	if minLen < 1 {
		minLen = 1
	}
	min, max := p.Min, p.Max
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}

	res := &Result{
		Window:    [2]string{start, end},
		PayoutDay: payoutDay,
		DryRun:    p.DryRun,
	}

	pool, err := e.gic.CandidatesInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	eligible := pool[:0:0]
	for _, c := range pool {
		if c.Len >= minLen {
			eligible = append(eligible, c)
		}
	}
	res.Eligible = len(eligible)
	if len(eligible) == 0 {
		res.NoCandidates = true
		return res, nil
	}

	// Stable sort: equal scores keep first-seen order (ascending day, then
	// queue order), so ties go to the earlier submission.
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Score() > eligible[j].Score()
	})
	if len(eligible) > topN {
		eligible = eligible[:topN]
	}

	paid, err := e.gic.PaidBonusKeys(ctx)
	if err != nil {
		return nil, err
	}

	n := len(eligible)
	for i, c := range eligible {
		w := Winner{
			User:        c.User,
			Hash:        c.Hash,
			SourceDate:  c.Date,
			Score:       c.Score(),
			Votes:       c.Votes,
			Amount:      payoutFor(i, n, min, max),
			AlreadyPaid: paid[[2]string{c.User, c.Hash}],
		}

		if !p.DryRun {
			tx := records.GicTransaction{
				Type:       records.TypeGicTransaction,
				Date:       payoutDay,
				User:       c.User,
				Amount:     w.Amount,
				Reason:     records.BonusReason,
				Hash:       c.Hash,
				SourceDate: c.Date,
				Score:      w.Score,
				Votes:      c.Votes,
			}
			inserted, err := e.gic.AppendBonus(ctx, &tx)
			if err != nil {
				return nil, err
			}
			w.AlreadyPaid = !inserted
			if inserted {
				res.Written++
				_ = e.audit.Record(ctx, audit.EventMutation, "bonus.payout", "gic_tx/"+tx.ID, map[string]interface{}{
					"payout_day": payoutDay,
					"user":       c.User,
					"amount":     w.Amount,
					"source":     c.Date,
				})
			}
		}
		if w.AlreadyPaid {
			res.AlreadyPaid++
		}
		res.Winners = append(res.Winners, w)
	}

	e.logger.Info("bonus run complete",
		"window_start", start, "window_end", end, "payout_day", payoutDay,
		"eligible", res.Eligible, "winners", len(res.Winners),
		"written", res.Written, "already_paid", res.AlreadyPaid, "dry", p.DryRun)
	return res, nil
}
