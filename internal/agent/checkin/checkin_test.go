package checkin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T) *Buffer {
	dir := t.TempDir()
	return New(filepath.Join(dir, "checkins.txt"), filepath.Join(dir, "checkins.old.txt"))
}

func TestRead_MissingFile(t *testing.T) {
	records, err := newTestBuffer(t).Read()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestRead_SplitsAndDropsEmpty(t *testing.T) {
	b := newTestBuffer(t)
	content := "2024-01-01 08:00:00 - alice\n\n\n\n\n\n2024-01-01 08:05:00 - bob\nnote line\n\n\n   \n\n\n"
	require.NoError(t, os.WriteFile(b.path, []byte(content), 0o644))

	records, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024-01-01 08:00:00 - alice",
		"2024-01-01 08:05:00 - bob\nnote line",
	}, records)
}

func TestAppendReadClear(t *testing.T) {
	b := newTestBuffer(t)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, b.Append(now, "alice"))
	require.NoError(t, b.Append(now.Add(time.Minute), "bob"))

	records, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01 08:00:00 - alice", "2024-01-01 08:01:00 - bob"}, records)

	require.NoError(t, b.Clear())

	records, err = b.Read()
	require.NoError(t, err)
	assert.Empty(t, records)

	old, err := os.ReadFile(b.oldPath)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 08:00:00 - alice\n\n\n2024-01-01 08:01:00 - bob\n\n\n", string(old))

	// A second flush appends rather than overwriting the archive.
	require.NoError(t, b.Append(now.Add(2*time.Minute), "carol"))
	require.NoError(t, b.Clear())
	old, err = os.ReadFile(b.oldPath)
	require.NoError(t, err)
	assert.Contains(t, string(old), "alice")
	assert.Contains(t, string(old), "carol")
}

func TestClear_MissingFile(t *testing.T) {
	assert.NoError(t, newTestBuffer(t).Clear())
}

func TestAppend_RequiresID(t *testing.T) {
	assert.Error(t, newTestBuffer(t).Append(time.Now(), "  "))
}
