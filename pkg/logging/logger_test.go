package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLogger_WritesJSONEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("wellstep-test", "0.0.1", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-42")
	logger.Info(ctx, "[TEST] resampled well", Fields{
		"well":   "A08",
		"points": 116,
	})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "[TEST] resampled well", entry["message"])
	assert.Equal(t, "wellstep-test", entry["service"])
	assert.Equal(t, "0.0.1", entry["version"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "A08", entry["well"])
	assert.EqualValues(t, 116, entry["points"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_OutputAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "wellstep.log")

	logger := New("wellstep-test", "0.0.1", Options{
		Level:     WarnLevel,
		Output:    &buf,
		FilePath:  path,
		MaxSizeMB: 1,
	})
	logger.Info(context.Background(), "[TEST] dropped", Fields{})
	logger.Warn(context.Background(), "[TEST] kept", Fields{"well": "B01"})
	require.NoError(t, logger.Sync())

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "[TEST] kept", entries[0]["message"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"well":"B01"`)
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("wellstep-test", "0.0.1", WarnLevel)
	logger.SetOutput(&buf)

	logger.Debug(context.Background(), "dropped", nil)
	logger.Info(context.Background(), "dropped", nil)
	logger.Warn(context.Background(), "kept", nil)
	logger.Error(context.Background(), "kept with error", nil, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, "boom", entries[1]["error"])

	buf.Reset()
	logger.SetLevel(DebugLevel)
	logger.Debug(context.Background(), "now visible", nil)
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("wellstep-test", "0.0.1", InfoLevel)
	logger.SetOutput(&buf)

	child := logger.WithFields(Fields{"dataset_id": "ds-1", "stage": "PARSE"})
	child.Info(context.Background(), "[TEST] merged", Fields{"stage": "RESAMPLE"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ds-1", entries[0]["dataset_id"])
	assert.Equal(t, "RESAMPLE", entries[0]["stage"], "call fields override context fields")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{" error ", ErrorLevel},
		{"fatal", FatalLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestRequestID_MissingValue(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Empty(t, RequestID(nil))
}
