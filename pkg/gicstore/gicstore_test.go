package gicstore

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizencycle/hive-ledger/pkg/records"
)

const day = "2025-09-01"

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.WithClock(func() time.Time {
		return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	})
}

func rewardTx(amount int64, hash string) *records.GicTransaction {
	return &records.GicTransaction{
		Date:   day,
		User:   "alice",
		Amount: amount,
		Reason: records.RewardReason(records.TierPrivate),
		Hash:   hash,
	}
}

func TestAppendRewardDedupsByUserDayHash(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	deduped, err := s.AppendReward(ctx, rewardTx(10, "h1"))
	require.NoError(t, err)
	assert.False(t, deduped)

	second := rewardTx(10, "h1")
	deduped, err = s.AppendReward(ctx, second)
	require.NoError(t, err)
	assert.True(t, deduped)
	assert.Zero(t, second.Amount, "replayed reward is forced to zero")

	// Both entries exist; replays stay auditable.
	txs, err := s.QueryDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(10), txs[0].Amount)
	assert.Equal(t, int64(0), txs[1].Amount)

	totals, err := s.DayTotals(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, records.DayGic{Count: 2, Sum: 10}, totals)
}

func TestAppendRewardEmptyHashNeverDedups(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		deduped, err := s.AppendReward(ctx, rewardTx(10, ""))
		require.NoError(t, err)
		assert.False(t, deduped)
	}
	totals, err := s.DayTotals(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int64(20), totals.Sum)
}

func TestAppendRewardStampsDefaults(t *testing.T) {
	s := openStore(t)
	tx := rewardTx(10, "h1")
	_, err := s.AppendReward(context.Background(), tx)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, records.TypeGicTransaction, tx.Type)
	assert.Equal(t, "2025-09-01T12:00:00Z", tx.TS)
}

func TestAppendBonusExactlyOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	bonus := &records.GicTransaction{
		Date: day, User: "alice", Amount: 75,
		Hash: "h1", SourceDate: "2025-08-28",
	}
	inserted, err := s.AppendBonus(ctx, bonus)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, records.BonusReason, bonus.Reason)

	replay := &records.GicTransaction{
		Date: "2025-09-02", User: "alice", Amount: 75,
		Hash: "h1", SourceDate: "2025-08-28",
	}
	inserted, err = s.AppendBonus(ctx, replay)
	require.NoError(t, err)
	assert.False(t, inserted, "same (user, hash) must not be paid twice")

	paid, err := s.PaidBonusKeys(ctx)
	require.NoError(t, err)
	assert.True(t, paid[[2]string{"alice", "h1"}])
	assert.Len(t, paid, 1)
}

func TestBonusDoesNotBlockReward(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	// A bonus for the same (user, day, hash) must not zero out a later
	// per-sweep reward; only non-bonus entries participate in reward dedup.
	_, err := s.AppendBonus(ctx, &records.GicTransaction{Date: day, User: "alice", Amount: 75, Hash: "h1"})
	require.NoError(t, err)

	tx := rewardTx(10, "h1")
	deduped, err := s.AppendReward(ctx, tx)
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.Equal(t, int64(10), tx.Amount)
}

func TestCandidatesInRange(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, c := range []records.FeatureCandidate{
		{Date: "2025-08-27", User: "late", Hash: "c3", Len: 300},
		{Date: "2025-08-25", User: "early", Hash: "c1", Len: 250},
		{Date: "2025-08-26", User: "mid", Hash: "c2", Len: 280},
		{Date: "2025-09-05", User: "outside", Hash: "c4", Len: 400},
	} {
		c := c
		require.NoError(t, s.AppendCandidate(ctx, &c))
	}

	cands, err := s.CandidatesInRange(ctx, "2025-08-25", "2025-08-31")
	require.NoError(t, err)
	require.Len(t, cands, 3)
	// Ascending day order, the window bound excludes the September entry.
	assert.Equal(t, "early", cands[0].User)
	assert.Equal(t, "mid", cands[1].User)
	assert.Equal(t, "late", cands[2].User)
}

func TestAddVote(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendCandidate(ctx, &records.FeatureCandidate{Date: day, User: "alice", Hash: "c1", Len: 250}))
	require.NoError(t, s.AddVote(ctx, "c1"))
	require.NoError(t, s.AddVote(ctx, "c1"))

	cands, err := s.CandidatesInRange(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, 2, cands[0].Votes)

	assert.Error(t, s.AddVote(ctx, "unknown"))
}

func TestMirrorDayWritesCanonicalJSONL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.AppendReward(ctx, rewardTx(10, "h1"))
	require.NoError(t, err)
	_, err = s.AppendReward(ctx, rewardTx(25, "h2"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), day, day+".gic.jsonl")
	require.NoError(t, s.MirrorDay(ctx, day, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var tx records.GicTransaction
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &tx))
		assert.Equal(t, day, tx.Date)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}
