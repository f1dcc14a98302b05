package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf", "queue.json")
	q := New(sub("SUB-001", true), sub("SUB-002", false))
	q.Subtasks[0].Execution = map[string]any{"provider": "claude"}

	require.NoError(t, Save(path, q))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, q.Fingerprint(), loaded.Fingerprint())
	assert.Equal(t, "claude", loaded.Subtasks[0].Execution["provider"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadIgnoresEmbeddedFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	content := `{"fingerprint":{"hash":"bogus"},"subtasks":[{"id":"SUB-001","title":"a","description":"","acceptanceCriteria":["x"],"filesToRead":[],"taskRef":"TASK-1","done":false}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	q, err := Load(path)
	require.NoError(t, err)
	assert.NotEqual(t, "bogus", q.Fingerprint().Hash)

	require.NoError(t, Save(path, q))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "fingerprint")
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	q, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, q.Len())
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	content := `{"subtasks":[{"id":"SUB-001","title":"a"},{"id":"SUB-001","title":"b"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := Load(path)
	assert.True(t, errors.HasCode(err, errors.ErrCodeQueueDuplicateID))
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(path)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileUnmarshal))
}
