package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-02T10:00:00Z", time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
		{"2024-05-02T10:00:00", time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
		{"2024-05-02T10:00:00.5", time.Date(2024, 5, 2, 10, 0, 0, 500000000, time.UTC)},
		{"2024-05-02 10:00:00", time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
		{"2024-05-02T12:00:00+02:00", time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestTimestampJSON(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"timestamp":null}`), &msg))
	assert.True(t, msg.Timestamp.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"timestamp":"2024-05-02T10:00:00"}`), &msg))
	out, err := json.Marshal(msg.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-02T10:00:00Z"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"timestamp":42}`), &msg))
}
