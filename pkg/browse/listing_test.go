package browse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/bucketd/pkg/folderstats"
	"github.com/3leaps/bucketd/pkg/provider"
	"github.com/3leaps/bucketd/pkg/provider/memory"
)

func TestListerOrdering(t *testing.T) {
	mem := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.Put("zebra.txt", []byte("z"), now)
	mem.Put("Alpha.txt", []byte("a"), now)
	mem.Put("beta/x.bin", []byte("x"), now)
	mem.Put("Delta/y.bin", []byte("y"), now)

	lister := NewLister(mem, nil)

	listing, err := lister.List(context.Background(), "")
	require.NoError(t, err)

	names := make([]string, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		names = append(names, e.Name)
	}
	// Folders first, then files, case-insensitive within each group.
	assert.Equal(t, []string{"beta", "Delta", "Alpha.txt", "zebra.txt"}, names)
	assert.True(t, listing.Entries[0].IsFolder)
	assert.True(t, listing.Entries[1].IsFolder)
	assert.False(t, listing.Entries[2].IsFolder)

	// Repeated calls against an unchanged store return the same order.
	again, err := lister.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, listing.Entries, again.Entries)
}

func TestListerAttachesSnapshotMetrics(t *testing.T) {
	mem := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.Put("datasets/a.csv", make([]byte, 100), now)
	mem.Put("reports/r.pdf", make([]byte, 10), now)

	store := folderstats.NewStore("unused")
	store.Replace(&folderstats.Snapshot{
		GeneratedAt: now,
		Bucket:      "test-bucket",
		Prefixes: map[string]folderstats.Metric{
			"datasets/": {TotalSizeBytes: 12345, FileCount: 42, LastModified: now},
		},
	})

	lister := NewLister(mem, store)
	listing, err := lister.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, now, listing.SnapshotAt)

	byName := map[string]Entry{}
	for _, e := range listing.Entries {
		byName[e.Name] = e
	}

	ds := byName["datasets"]
	assert.True(t, ds.HasMetrics)
	assert.Equal(t, int64(12345), ds.Size)
	assert.Equal(t, int64(42), ds.FileCount)

	// reports/ is not in the snapshot: listed, but without numbers.
	rp := byName["reports"]
	assert.True(t, rp.IsFolder)
	assert.False(t, rp.HasMetrics)
	assert.Zero(t, rp.Size)
}

func TestListerFileMetadataIsLive(t *testing.T) {
	mem := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.Put("docs/guide.md", make([]byte, 256), now)

	lister := NewLister(mem, nil)
	listing, err := lister.List(context.Background(), "docs/")
	require.NoError(t, err)
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "guide.md", listing.Entries[0].Name)
	assert.Equal(t, "docs/guide.md", listing.Entries[0].Key)
	assert.Equal(t, int64(256), listing.Entries[0].Size)
	assert.Equal(t, now, listing.Entries[0].LastModified)
}

func TestListerSkipsFolderPlaceholder(t *testing.T) {
	mem := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.Put("docs/", nil, now)
	mem.Put("docs/guide.md", []byte("g"), now)

	lister := NewLister(mem, nil)
	listing, err := lister.List(context.Background(), "docs/")
	require.NoError(t, err)
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "guide.md", listing.Entries[0].Name)
}

func TestListerPlaceholderOnlyFolderListsEmpty(t *testing.T) {
	mem := memory.New()
	mem.Put("docs/", nil, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	lister := NewLister(mem, nil)
	listing, err := lister.List(context.Background(), "docs/")
	require.NoError(t, err)
	assert.Empty(t, listing.Entries)
}

func TestListerMissingPrefixNotFound(t *testing.T) {
	lister := NewLister(memory.New(), nil)

	_, err := lister.List(context.Background(), "ghost/")
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))
}

func TestListerEmptyRootLists(t *testing.T) {
	lister := NewLister(memory.New(), nil)

	listing, err := lister.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, listing.Entries)
}

func TestListerStoreError(t *testing.T) {
	mem := memory.New()
	mem.FailWith(provider.ErrProviderUnavailable)

	lister := NewLister(mem, nil)
	_, err := lister.List(context.Background(), "docs/")
	require.Error(t, err)
	assert.True(t, provider.IsProviderUnavailable(err))
}
