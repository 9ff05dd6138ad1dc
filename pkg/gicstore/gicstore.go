// Package gicstore is the keyed, append-only store for GIC reward
// transactions and feature candidates. It replaces the process-wide dedup
// registries of earlier builds with a SQLite-backed store so restarts and
// replays cannot double-pay: reward dedup runs as a single check-and-append
// transaction, and bonus payouts are guarded by a unique
// (user, content hash, reason) index.
package gicstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kaizencycle/hive-ledger/pkg/canonical"
	"github.com/kaizencycle/hive-ledger/pkg/records"

	_ "modernc.org/sqlite"
)

// Store persists GIC transactions and feature candidates.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens (or creates) the store at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("gicstore: open %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	return NewWithDB(db)
}

// NewWithDB wraps an existing database handle and runs migrations.
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db, clock: time.Now}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithClock overrides the clock for testing.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS gic_tx (
		id TEXT PRIMARY KEY,
		day TEXT NOT NULL,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		source_day TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		votes INTEGER NOT NULL DEFAULT 0,
		ts DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS gic_tx_day ON gic_tx(day);
	CREATE INDEX IF NOT EXISTS gic_tx_dedup ON gic_tx(user_id, day, content_hash);
	CREATE UNIQUE INDEX IF NOT EXISTS gic_tx_bonus_once
		ON gic_tx(user_id, content_hash, reason)
		WHERE reason = '` + records.BonusReason + `';

	CREATE TABLE IF NOT EXISTS feature_candidates (
		id TEXT PRIMARY KEY,
		day TEXT NOT NULL,
		user_id TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		content_len INTEGER NOT NULL,
		votes INTEGER NOT NULL DEFAULT 0,
		ts DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS feature_candidates_day ON feature_candidates(day);
	`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("gicstore: migrate: %w", err)
	}
	return nil
}

func (s *Store) stamp(tx *records.GicTransaction) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Type == "" {
		tx.Type = records.TypeGicTransaction
	}
	if tx.TS == "" {
		tx.TS = records.Timestamp(s.clock())
	}
}

const insertTx = `INSERT INTO gic_tx
	(id, day, user_id, amount, reason, content_hash, source_day, score, votes, ts)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AppendReward appends a per-sweep reward transaction. If the same
// (user, day, content hash) already earned a non-bonus reward, the amount is
// forced to zero before the append; the zero-amount entry is still written
// for auditability. Check and append run in one database transaction, so a
// concurrent duplicate cannot slip between them.
func (s *Store) AppendReward(ctx context.Context, tx *records.GicTransaction) (deduped bool, err error) {
	s.stamp(tx)

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("gicstore: begin: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	if tx.Hash != "" {
		var n int
		err = dbtx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM gic_tx WHERE user_id = ? AND day = ? AND content_hash = ? AND reason != ?`,
			tx.User, tx.Date, tx.Hash, records.BonusReason,
		).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("gicstore: dedup check: %w", err)
		}
		if n > 0 {
			tx.Amount = 0
			deduped = true
		}
	}

	_, err = dbtx.ExecContext(ctx, insertTx,
		tx.ID, tx.Date, tx.User, tx.Amount, tx.Reason, tx.Hash, tx.SourceDate, tx.Score, tx.Votes, tx.TS)
	if err != nil {
		return false, fmt.Errorf("gicstore: append reward: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return false, fmt.Errorf("gicstore: commit: %w", err)
	}
	return deduped, nil
}

// AppendBonus appends a featured-bonus payout transaction. The unique
// (user, content hash, reason) index makes the write exactly-once: a re-run
// reports inserted == false instead of writing a second payout.
func (s *Store) AppendBonus(ctx context.Context, tx *records.GicTransaction) (inserted bool, err error) {
	s.stamp(tx)
	tx.Reason = records.BonusReason

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO gic_tx
		(id, day, user_id, amount, reason, content_hash, source_day, score, votes, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Date, tx.User, tx.Amount, tx.Reason, tx.Hash, tx.SourceDate, tx.Score, tx.Votes, tx.TS)
	if err != nil {
		return false, fmt.Errorf("gicstore: append bonus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("gicstore: append bonus: %w", err)
	}
	return n > 0, nil
}

// PaidBonusKeys returns the (user, content hash) pairs that already received
// a featured bonus, for preview and reporting. The unique index remains the
// actual write guard.
func (s *Store) PaidBonusKeys(ctx context.Context) (map[[2]string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, content_hash FROM gic_tx WHERE reason = ?`, records.BonusReason)
	if err != nil {
		return nil, fmt.Errorf("gicstore: paid bonus keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	paid := make(map[[2]string]bool)
	for rows.Next() {
		var user, hash string
		if err := rows.Scan(&user, &hash); err != nil {
			return nil, err
		}
		paid[[2]string{user, hash}] = true
	}
	return paid, rows.Err()
}

// QueryDay returns the day's transactions in append order.
func (s *Store) QueryDay(ctx context.Context, day string) ([]records.GicTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, day, user_id, amount, reason, content_hash, source_day, score, votes, ts
		FROM gic_tx WHERE day = ? ORDER BY rowid`, day)
	if err != nil {
		return nil, fmt.Errorf("gicstore: query day %s: %w", day, err)
	}
	defer func() { _ = rows.Close() }()

	var txs []records.GicTransaction
	for rows.Next() {
		var tx records.GicTransaction
		tx.Type = records.TypeGicTransaction
		if err := rows.Scan(&tx.ID, &tx.Date, &tx.User, &tx.Amount, &tx.Reason,
			&tx.Hash, &tx.SourceDate, &tx.Score, &tx.Votes, &tx.TS); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// DayTotals returns the count and amount sum of the day's transactions.
func (s *Store) DayTotals(ctx context.Context, day string) (records.DayGic, error) {
	var g records.DayGic
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(amount), 0) FROM gic_tx WHERE day = ?`, day,
	).Scan(&g.Count, &g.Sum)
	if err != nil {
		return g, fmt.Errorf("gicstore: day totals %s: %w", day, err)
	}
	return g, nil
}

// AppendCandidate queues a sweep for weekly bonus ranking.
func (s *Store) AppendCandidate(ctx context.Context, c *records.FeatureCandidate) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Type == "" {
		c.Type = records.TypeFeatureCandidate
	}
	if c.TS == "" {
		c.TS = records.Timestamp(s.clock())
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO feature_candidates
		(id, day, user_id, content_hash, content_len, votes, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Date, c.User, c.Hash, c.Len, c.Votes, c.TS)
	if err != nil {
		return fmt.Errorf("gicstore: append candidate: %w", err)
	}
	return nil
}

// CandidatesInRange returns feature candidates queued in the closed day
// range [start, end], in first-seen order (ascending day, then queue order).
func (s *Store) CandidatesInRange(ctx context.Context, start, end string) ([]records.FeatureCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, day, user_id, content_hash, content_len, votes, ts
		FROM feature_candidates WHERE day >= ? AND day <= ?
		ORDER BY day, rowid`, start, end)
	if err != nil {
		return nil, fmt.Errorf("gicstore: candidates %s..%s: %w", start, end, err)
	}
	defer func() { _ = rows.Close() }()

	var cands []records.FeatureCandidate
	for rows.Next() {
		var c records.FeatureCandidate
		c.Type = records.TypeFeatureCandidate
		if err := rows.Scan(&c.ID, &c.Date, &c.User, &c.Hash, &c.Len, &c.Votes, &c.TS); err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// AddVote increments the vote count on a queued candidate, identified by its
// content hash.
func (s *Store) AddVote(ctx context.Context, contentHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feature_candidates SET votes = votes + 1 WHERE content_hash = ?`, contentHash)
	if err != nil {
		return fmt.Errorf("gicstore: add vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("gicstore: no candidate with that content hash")
	}
	return nil
}

// ExportDay writes the day's transactions as JSONL, one canonical line per
// transaction, mirroring the per-day file surface of the ledger directory.
func (s *Store) ExportDay(ctx context.Context, day string, w io.Writer) error {
	txs, err := s.QueryDay(ctx, day)
	if err != nil {
		return err
	}
	for _, tx := range txs {
		line, err := canonical.Encode(tx)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("gicstore: export day %s: %w", day, err)
		}
	}
	return nil
}

// MirrorDay exports the day's transactions to the given path, replacing any
// previous mirror.
func (s *Store) MirrorDay(ctx context.Context, day, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("gicstore: mirror day %s: %w", day, err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("gicstore: mirror day %s: %w", day, err)
	}
	if err := s.ExportDay(ctx, day, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("gicstore: mirror day %s: %w", day, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("gicstore: mirror day %s: %w", day, err)
	}
	return nil
}
