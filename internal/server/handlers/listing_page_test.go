package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/3leaps/bucketd/pkg/browse"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3.0 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanSize(tt.n), "n=%d", tt.n)
	}
}

func TestPageTotals(t *testing.T) {
	entries := []browse.Entry{
		{Name: "datasets", IsFolder: true, HasMetrics: true, Size: 4096},
		{Name: "scratch", IsFolder: true},
		{Name: "readme.txt", Size: 11},
	}

	folders, files, totalBytes := pageTotals(entries)
	assert.Equal(t, 2, folders)
	assert.Equal(t, 1, files)
	// scratch has no snapshot entry, so only datasets and readme.txt count.
	assert.Equal(t, int64(4107), totalBytes)
}

func TestBuildBreadcrumbs(t *testing.T) {
	t.Run("root", func(t *testing.T) {
		crumbs := buildBreadcrumbs("")
		assert.Len(t, crumbs, 1)
		assert.Equal(t, "root", crumbs[0].Name)
		assert.True(t, crumbs[0].Last)
	})

	t.Run("nested prefix", func(t *testing.T) {
		crumbs := buildBreadcrumbs("releases/alliance/latest/")
		assert.Len(t, crumbs, 4)
		assert.Equal(t, "/", crumbs[0].Href)
		assert.Equal(t, "releases", crumbs[1].Name)
		assert.Equal(t, "/releases/", crumbs[1].Href)
		assert.Equal(t, "/releases/alliance/", crumbs[2].Href)
		assert.Equal(t, "latest", crumbs[3].Name)
		assert.True(t, crumbs[3].Last)
		assert.False(t, crumbs[2].Last)
	})
}
