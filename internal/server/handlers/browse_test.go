package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/bucketd/internal/server/middleware"
	"github.com/3leaps/bucketd/pkg/browse"
	"github.com/3leaps/bucketd/pkg/folderstats"
	"github.com/3leaps/bucketd/pkg/provider"
	"github.com/3leaps/bucketd/pkg/provider/memory"
)

func newTestBrowse(t *testing.T) (*BrowseHandler, *memory.Provider, *folderstats.Store) {
	t.Helper()
	mem := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.Put("readme.txt", []byte("hello world"), now)
	mem.Put("releases/alliance/latest/graph-metadata.json", []byte(`{"nodes":12}`), now)
	mem.Put("releases/alliance/latest/graph.bin", make([]byte, 2048), now)

	store := folderstats.NewStore("unused")
	store.Replace(&folderstats.Snapshot{
		GeneratedAt: now,
		Bucket:      "test-bucket",
		Prefixes: map[string]folderstats.Metric{
			"releases/": {TotalSizeBytes: 4096, FileCount: 2, LastModified: now},
		},
	})

	handler := NewBrowseHandler(
		browse.NewRouter(browse.NewExistenceChecker(mem, 0)),
		browse.NewLister(mem, store),
		browse.NewDeliverer(mem),
	)
	return handler, mem, store
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBrowseRootListing(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "releases/")
	assert.Contains(t, rec.Body.String(), "readme.txt")
}

func TestBrowseListingJSON(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	rec := get(t, h, "/?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Prefix  string `json:"prefix"`
		Entries []struct {
			Name      string `json:"name"`
			Type      string `json:"type"`
			Size      *int64 `json:"size"`
			FileCount *int64 `json:"file_count"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/", body.Prefix)
	require.Len(t, body.Entries, 2)

	// Folders sort before files; releases/ carries snapshot numbers.
	assert.Equal(t, "releases", body.Entries[0].Name)
	assert.Equal(t, "folder", body.Entries[0].Type)
	require.NotNil(t, body.Entries[0].Size)
	assert.Equal(t, int64(4096), *body.Entries[0].Size)
	require.NotNil(t, body.Entries[0].FileCount)
	assert.Equal(t, int64(2), *body.Entries[0].FileCount)

	assert.Equal(t, "readme.txt", body.Entries[1].Name)
	assert.Equal(t, "file", body.Entries[1].Type)
}

func TestBrowseFolderWithoutMetricsShowsDash(t *testing.T) {
	h, _, store := newTestBrowse(t)
	store.Replace(&folderstats.Snapshot{Prefixes: map[string]folderstats.Metric{}})

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "—")
}

func TestBrowseFolderWithoutSlashRedirects(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	rec := get(t, h, "/releases/alliance?view")
	require.Equal(t, http.StatusFound, rec.Code)

	loc := rec.Header().Get("Location")
	assert.Equal(t, "/releases/alliance/", loc)
	assert.NotContains(t, loc, "?")
}

func TestBrowseLegacyPathParamRedirects(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	rec := get(t, h, "/?path="+url.QueryEscape("releases/alliance/latest/graph-metadata.json"))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/releases/alliance/latest/graph-metadata.json", rec.Header().Get("Location"))
}

func TestBrowseLegacyPathParamRejectsOffsiteTarget(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	// A scheme-relative value must never reach the Location header, where
	// the browser would resolve it against another host.
	rec := get(t, h, "/?path="+url.QueryEscape("//evil.example/phish"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestBrowsePlaceholderOnlyFolder(t *testing.T) {
	h, mem, _ := newTestBrowse(t)
	mem.Put("archive/", nil, time.Now())

	rec := get(t, h, "/archive")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/archive/", rec.Header().Get("Location"))

	rec = get(t, h, "/archive/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This folder is empty")
}

func TestBrowseListingTotalsBar(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "1 folders")
	assert.Contains(t, body, "1 files")
	// releases/ snapshot bytes plus readme.txt.
	assert.Contains(t, body, "4.0 KB total")
}

func TestBrowseJSONViewInline(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	rec := get(t, h, "/releases/alliance/latest/graph-metadata.json?view")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"nodes":12}`, rec.Body.String())
}

func TestBrowseJSONWithoutViewRedirectsToSignedURL(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	rec := get(t, h, "/releases/alliance/latest/graph-metadata.json")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://"))
}

func TestBrowseNonJSONAlwaysRedirects(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	for _, target := range []string{
		"/releases/alliance/latest/graph.bin",
		"/releases/alliance/latest/graph.bin?view",
	} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusFound, rec.Code, target)
	}
}

func TestBrowseNotFoundShapesMatch(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	unknown := get(t, h, "/no/such/key.bin")
	reserved := get(t, h, "/view/releases/alliance/latest/graph-metadata.json")

	require.Equal(t, http.StatusNotFound, unknown.Code)
	require.Equal(t, http.StatusNotFound, reserved.Code)

	var a, b middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(unknown.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(reserved.Body.Bytes(), &b))
	assert.Equal(t, a.Error.Code, b.Error.Code)
	assert.Equal(t, a.Error.Message, b.Error.Message)
}

func TestBrowseEmptyNonRootPrefix404s(t *testing.T) {
	h, _, _ := newTestBrowse(t)

	rec := get(t, h, "/ghost/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBrowseStoreUnavailable(t *testing.T) {
	h, mem, _ := newTestBrowse(t)
	mem.FailWith(provider.ErrProviderUnavailable)

	rec := get(t, h, "/releases/")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, middleware.CodeServiceUnavailable, body.Error.Code)
}

func TestBrowseSnapshotSwapIsAtomicPerListing(t *testing.T) {
	h, _, store := newTestBrowse(t)

	now := time.Now().UTC()
	store.Replace(&folderstats.Snapshot{
		GeneratedAt: now,
		Prefixes: map[string]folderstats.Metric{
			"releases/": {TotalSizeBytes: 999, FileCount: 9, LastModified: now},
		},
	})

	rec := get(t, h, "/?format=json")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries []struct {
			Name      string `json:"name"`
			Size      *int64 `json:"size"`
			FileCount *int64 `json:"file_count"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// Size and count always come from the same generation.
	for _, e := range body.Entries {
		if e.Name == "releases" {
			require.NotNil(t, e.Size)
			require.NotNil(t, e.FileCount)
			assert.Equal(t, int64(999), *e.Size)
			assert.Equal(t, int64(9), *e.FileCount)
		}
	}
}
