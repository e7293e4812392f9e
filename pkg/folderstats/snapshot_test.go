package folderstats

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotWriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folderstats.json")

	snap := &Snapshot{
		GeneratedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Bucket:      "test-bucket",
		Prefixes: map[string]Metric{
			"datasets/": {TotalSizeBytes: 350, FileCount: 3, LastModified: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		},
	}
	require.NoError(t, snap.WriteFile(path))

	// Publish must not leave temp files behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "folderstats.json", entries[0].Name())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, snap.GeneratedAt, loaded.GeneratedAt)
	assert.Equal(t, snap.Bucket, loaded.Bucket)
	assert.Equal(t, snap.Prefixes, loaded.Prefixes)
}

func TestSnapshotWriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folderstats.json")

	old := &Snapshot{Bucket: "old", Prefixes: map[string]Metric{}}
	require.NoError(t, old.WriteFile(path))

	replacement := &Snapshot{Bucket: "new", Prefixes: map[string]Metric{}}
	require.NoError(t, replacement.WriteFile(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "new", loaded.Bucket)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSnapshotLookupNilSafe(t *testing.T) {
	var snap *Snapshot
	_, ok := snap.Lookup("datasets/")
	assert.False(t, ok)
	assert.Equal(t, 0, snap.Len())
}

func TestStoreReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folderstats.json")

	store := NewStore(path)
	assert.Nil(t, store.Current())

	// Reload with no file keeps the store empty and reports the error.
	assert.Error(t, store.Reload())
	assert.Nil(t, store.Current())

	snap := &Snapshot{
		GeneratedAt: time.Now().UTC(),
		Bucket:      "test-bucket",
		Prefixes:    map[string]Metric{"a/": {FileCount: 1}},
	}
	require.NoError(t, snap.WriteFile(path))
	require.NoError(t, store.Reload())

	cur := store.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "test-bucket", cur.Bucket)

	// A failed reload keeps the previous generation active.
	require.NoError(t, os.Remove(path))
	assert.Error(t, store.Reload())
	assert.Same(t, cur, store.Current())
}

func TestStoreReplace(t *testing.T) {
	store := NewStore("unused")
	snap := &Snapshot{Bucket: "direct"}
	store.Replace(snap)
	assert.Same(t, snap, store.Current())
}
