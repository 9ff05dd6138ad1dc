package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWritesPrefixedJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("node-1", &buf)

	err := l.Record(context.Background(), EventMutation, "reward.append", "gic_tx/abc", map[string]interface{}{
		"amount": 10,
	})
	require.NoError(t, err)

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "AUDIT: "))

	var event Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "AUDIT: ")), &event))
	assert.Equal(t, "node-1", event.Actor)
	assert.Equal(t, EventMutation, event.Type)
	assert.Equal(t, "reward.append", event.Action)
	assert.Equal(t, "gic_tx/abc", event.Resource)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestDefaultActor(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("", &buf)
	require.NoError(t, l.Record(context.Background(), EventSystem, "boot", "node", nil))

	var event Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(buf.String()), "AUDIT: ")), &event))
	assert.Equal(t, "system", event.Actor)
}

func TestNopDiscards(t *testing.T) {
	assert.NoError(t, Nop().Record(context.Background(), EventAccess, "read", "day/2025-09-01", nil))
}
