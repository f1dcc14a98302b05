package audit

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLogger(t *testing.T, at time.Time) *Logger {
	t.Helper()
	l := NewLogger("wf", t.TempDir())
	l.now = func() time.Time { return at }
	return l
}

func TestRecordAppendsJSONLines(t *testing.T) {
	day := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	l := fixedLogger(t, day)

	_, err := l.Record(TypeQueueProposal, map[string]any{"operations": 2, "source": "validation"})
	require.NoError(t, err)
	_, err = l.Record(TypeQueueApply, map[string]any{"applied": false})
	require.NoError(t, err)

	path := l.PathFor(day)
	assert.True(t, strings.HasSuffix(path, "2026-03-14.jsonl"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "queue-proposal", first["type"])
	assert.Equal(t, "wf", first["workflow"])
	assert.Equal(t, "validation", first["source"])
	assert.NotEmpty(t, first["id"])
}

func TestReadRoundTrip(t *testing.T) {
	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	l := fixedLogger(t, day)

	_, err := l.Record(TypeCalibration, map[string]any{"summary": "no drift", "drift": false})
	require.NoError(t, err)

	records, err := l.Read(day)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, TypeCalibration, rec.Type)
	assert.Equal(t, day, rec.Timestamp)
	summary, ok := rec.Get("summary")
	require.True(t, ok)
	assert.Equal(t, "no drift", summary)
	_, hasType := rec.Fields["type"]
	assert.False(t, hasType)
}

func TestReservedKeysAreNotOverwritten(t *testing.T) {
	rec := NewRecord(TypeValidation, "wf").With("type", "bogus")

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "validation", out["type"])
	assert.Equal(t, "bogus", out["field_type"])
}

func TestReadMissingDay(t *testing.T) {
	l := NewLogger("wf", t.TempDir())
	records, err := l.Read(time.Now())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDays(t *testing.T) {
	l := NewLogger("wf", t.TempDir())
	for _, d := range []int{3, 1, 2} {
		rec := NewRecord(TypeValidation, "wf")
		rec.Timestamp = time.Date(2026, 1, d, 12, 0, 0, 0, time.UTC)
		require.NoError(t, l.Append(rec))
	}

	days, err := l.Days()
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, 1, days[0].Day())
	assert.Equal(t, 3, days[2].Day())
}
