package reward

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizencycle/hive-ledger/pkg/gicstore"
	"github.com/kaizencycle/hive-ledger/pkg/records"
)

const day = "2025-09-01"

func newEngine(t *testing.T) (*Engine, *gicstore.Store) {
	t.Helper()
	gic, err := gicstore.Open(filepath.Join(t.TempDir(), "gic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gic.Close() })
	return NewEngine(Config{PerPrivate: 10, PerPublish: 25, MinLen: 200}, gic, nil), gic
}

func longNote() string { return strings.Repeat("x", 200) }

func TestPrivateTierAmount(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Process(context.Background(), Submission{
		Day: day, User: "alice", Tier: records.TierPrivate, Note: "short",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Amount)
	assert.False(t, res.Downgraded)
	assert.False(t, res.Featured)
	assert.Equal(t, "reflection:private", res.Tx.Reason)
}

func TestPublishTierAmount(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Process(context.Background(), Submission{
		Day: day, User: "alice", Tier: records.TierPublish, Note: longNote(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Amount)
	assert.False(t, res.Downgraded)
}

func TestShortPublishDowngradesToPrivateAmount(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Process(context.Background(), Submission{
		Day: day, User: "alice", Tier: records.TierPublish, Note: strings.Repeat("x", 50),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Amount)
	assert.True(t, res.Downgraded)
	// The declared tier stays on the reason; only the amount shrinks.
	assert.Equal(t, "reflection:publish", res.Tx.Reason)
}

func TestDuplicateSubmissionEarnsZero(t *testing.T) {
	e, gic := newEngine(t)
	ctx := context.Background()
	sub := Submission{Day: day, User: "alice", Tier: records.TierPrivate, Note: "n", ContentHash: "h1"}

	first, err := e.Process(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, int64(10), first.Amount)
	assert.False(t, first.Deduplicated)

	second, err := e.Process(ctx, sub)
	require.NoError(t, err)
	assert.Zero(t, second.Amount)
	assert.True(t, second.Deduplicated)

	txs, err := gic.QueryDay(ctx, day)
	require.NoError(t, err)
	assert.Len(t, txs, 2, "the zero-amount replay is still appended")
}

func TestPublishFeatureQueuesCandidate(t *testing.T) {
	e, gic := newEngine(t)
	ctx := context.Background()
	note := longNote()

	res, err := e.Process(ctx, Submission{
		Day: day, User: "alice", Tier: records.TierPublishFeature, Note: note, ContentHash: "h1",
	})
	require.NoError(t, err)
	assert.True(t, res.Featured)
	assert.Equal(t, int64(25), res.Amount)

	cands, err := gic.CandidatesInRange(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "alice", cands[0].User)
	assert.Equal(t, "h1", cands[0].Hash)
	assert.Equal(t, len(note), cands[0].Len)
}

func TestShortFeatureStillQueued(t *testing.T) {
	e, gic := newEngine(t)
	ctx := context.Background()

	res, err := e.Process(ctx, Submission{
		Day: day, User: "alice", Tier: records.TierPublishFeature, Note: "tiny", ContentHash: "h1",
	})
	require.NoError(t, err)
	assert.True(t, res.Downgraded)
	assert.True(t, res.Featured, "downgrade affects the amount, not the candidacy")

	cands, err := gic.CandidatesInRange(ctx, day, day)
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestMultibyteNoteLengthCountsCharacters(t *testing.T) {
	e, gic := newEngine(t)
	ctx := context.Background()

	// 100 characters but 200 bytes; must still fall short of MinLen 200.
	short := strings.Repeat("é", 100)
	res, err := e.Process(ctx, Submission{
		Day: day, User: "alice", Tier: records.TierPublish, Note: short,
	})
	require.NoError(t, err)
	assert.True(t, res.Downgraded)
	assert.Equal(t, int64(10), res.Amount)

	// 200 characters of the same rune clear the threshold.
	long := strings.Repeat("é", 200)
	res, err = e.Process(ctx, Submission{
		Day: day, User: "bob", Tier: records.TierPublishFeature, Note: long, ContentHash: "h-mb",
	})
	require.NoError(t, err)
	assert.False(t, res.Downgraded)
	assert.Equal(t, int64(25), res.Amount)

	// Candidate length feeds bonus eligibility and scoring; it counts
	// characters, not bytes.
	cands, err := gic.CandidatesInRange(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, 200, cands[0].Len)
}

func TestDefaultsForUserAndTier(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Process(context.Background(), Submission{Day: day, Note: "n"})
	require.NoError(t, err)
	assert.Equal(t, "anon", res.Tx.User)
	assert.Equal(t, "reflection:private", res.Tx.Reason)
	assert.Equal(t, int64(10), res.Amount)
}
