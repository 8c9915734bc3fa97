package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	r := record("20250101-120000", "webui", time.Now().Truncate(time.Second))
	require.NoError(t, store.Put(ctx, r))

	// A fresh store over the same file sees the record.
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	got, found, err := reopened.GetLatest(ctx, "webui")
	require.NoError(t, err)
	require.True(t, found, "record should survive reopen")
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.GridSize, got.GridSize)
	assert.True(t, got.StartedAt.Equal(r.StartedAt), "start time changed across reopen")
}

func TestFileStore_Update(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)
	ctx := context.Background()

	r := record("20250101-120000", "webui", time.Now())
	require.NoError(t, store.Put(ctx, r))
	r.Status = StatusFailed
	require.NoError(t, store.Put(ctx, r))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1, "update must replace, not append")
	assert.Equal(t, StatusFailed, records[0].Status)
}

func TestFileStore_EmptyRegistry(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)

	_, found, err := store.GetLatest(context.Background(), "webui")
	require.NoError(t, err)
	assert.False(t, found, "empty registry should have no latest run")

	records, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileStore_CorruptRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = store.List(context.Background())
	assert.Error(t, err, "List over a corrupt registry should fail")
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}
