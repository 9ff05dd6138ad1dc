package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidDayKey(t *testing.T) {
	valid := []string{"2025-01-01", "2024-02-29", "1999-12-31"}
	for _, day := range valid {
		assert.True(t, ValidDayKey(day), day)
	}
	invalid := []string{"", "2025-1-01", "2025-13-01", "2025-02-30", "20250101", "2025-01-01T00:00:00Z", "not-a-day"}
	for _, day := range invalid {
		assert.False(t, ValidDayKey(day), day)
	}
}

func TestDayKeyOfUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 01:30 on the 2nd in UTC+10 is still the 1st in UTC.
	local := time.Date(2025, 9, 2, 1, 30, 0, 0, loc)
	assert.Equal(t, "2025-09-01", DayKeyOf(local))
}

func TestTimestampFormat(t *testing.T) {
	assert.Equal(t, "2025-09-01T03:04:05Z",
		Timestamp(time.Date(2025, 9, 1, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2025-09-01T03:04:05.123456Z",
		Timestamp(time.Date(2025, 9, 1, 3, 4, 5, 123456000, time.UTC)))
}

func TestTierRequiresPublication(t *testing.T) {
	assert.False(t, TierPrivate.RequiresPublication())
	assert.True(t, TierPublish.RequiresPublication())
	assert.True(t, TierPublishFeature.RequiresPublication())
}

func TestRewardReason(t *testing.T) {
	assert.Equal(t, "reflection:private", RewardReason(TierPrivate))
	assert.Equal(t, "reflection:publish_feature", RewardReason(TierPublishFeature))
}

func TestCandidateScore(t *testing.T) {
	c := FeatureCandidate{Len: 100, Votes: 3}
	assert.Equal(t, 130, c.Score())
	assert.Equal(t, 0, FeatureCandidate{}.Score())
}
