// Package reward converts accepted sweep submissions into GIC transactions.
//
// Per submission, exactly one transaction is appended, even when the amount
// is zero (a dedup replay), so the log stays a complete audit trail. A sweep
// declared publish_feature is additionally queued as a feature candidate for
// the weekly bonus ranking, independent of the reward amount.
package reward

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/kaizencycle/hive-ledger/pkg/audit"
	"github.com/kaizencycle/hive-ledger/pkg/gicstore"
	"github.com/kaizencycle/hive-ledger/pkg/records"
)

// Config holds the reward amounts per tier and the publication threshold.
type Config struct {
	PerPrivate int64
	PerPublish int64
	MinLen     int
}

// WriteError reports a failed transaction or candidate append. The sweep
// itself may already be recorded; the caller decides whether to retry.
type WriteError struct {
	Day  string
	User string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("reward: append for user %s day %s: %v", e.User, e.Day, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Submission is one accepted sweep, as handed over by the front end.
type Submission struct {
	Day         string
	User        string
	Tier        records.Tier
	Note        string
	ContentHash string
}

// Result reports what the engine did with one submission.
type Result struct {
	Amount       int64                  `json:"amount"`
	Deduplicated bool                   `json:"deduplicated"`
	Downgraded   bool                   `json:"downgraded"`
	Featured     bool                   `json:"featured"`
	Tx           records.GicTransaction `json:"tx"`
}

// Engine computes and records per-sweep rewards.
type Engine struct {
	cfg    Config
	gic    *gicstore.Store
	audit  audit.Logger
	logger *slog.Logger
}

// NewEngine creates a reward engine over the GIC store.
func NewEngine(cfg Config, gic *gicstore.Store, auditLog audit.Logger) *Engine {
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	return &Engine{
		cfg:    cfg,
		gic:    gic,
		audit:  auditLog,
		logger: slog.Default().With("component", "reward"),
	}
}

// Process applies the reward rules to one submission:
//
//  1. Base amount by declared tier.
//  2. Publication tiers below the minimum note length are downgraded to the
//     private amount; the sweep stays recorded, only the reward shrinks.
//  3. A repeated (user, day, content hash) earns zero; the store enforces
//     this atomically against concurrent duplicates.
//  4. The transaction is appended regardless of amount.
//  5. publish_feature submissions are queued for bonus ranking.
func (e *Engine) Process(ctx context.Context, sub Submission) (*Result, error) {
	user := sub.User
	if user == "" {
		user = "anon"
	}
	tier := sub.Tier
	if tier == "" {
		tier = records.TierPrivate
	}

	res := &Result{Featured: tier == records.TierPublishFeature}

	// Length limits count characters, not bytes; a multibyte note must not
	// clear the threshold early.
	noteLen := utf8.RuneCountInString(sub.Note)

	amount := e.cfg.PerPrivate
	if tier.RequiresPublication() {
		amount = e.cfg.PerPublish
		if noteLen < e.cfg.MinLen {
			amount = e.cfg.PerPrivate
			res.Downgraded = true
		}
	}

	tx := records.GicTransaction{
		Type:   records.TypeGicTransaction,
		Date:   sub.Day,
		User:   user,
		Amount: amount,
		Reason: records.RewardReason(tier),
		Hash:   sub.ContentHash,
	}
	deduped, err := e.gic.AppendReward(ctx, &tx)
	if err != nil {
		return nil, &WriteError{Day: sub.Day, User: user, Err: err}
	}
	res.Deduplicated = deduped
	res.Amount = tx.Amount
	res.Tx = tx

	if res.Featured {
		cand := records.FeatureCandidate{
			Type: records.TypeFeatureCandidate,
			Date: sub.Day,
			User: user,
			Hash: sub.ContentHash,
			Len:  noteLen,
		}
		if err := e.gic.AppendCandidate(ctx, &cand); err != nil {
			return nil, &WriteError{Day: sub.Day, User: user, Err: err}
		}
	}

	e.logger.Info("reward processed",
		"day", sub.Day, "user", user, "tier", tier,
		"amount", res.Amount, "deduped", res.Deduplicated, "downgraded", res.Downgraded)
	_ = e.audit.Record(ctx, audit.EventMutation, "reward.append", "gic_tx/"+tx.ID, map[string]interface{}{
		"day":    sub.Day,
		"user":   user,
		"amount": res.Amount,
		"reason": tx.Reason,
	})
	return res, nil
}
