package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetBuildFlags() {
	buildJobFile = ""
	buildBucket = ""
	buildOut = ""
	buildInclude = nil
	buildExclude = nil
	buildReloadPIDFile = ""
}

func TestBuildManifestFromFlags(t *testing.T) {
	resetBuildFlags()
	defer resetBuildFlags()

	buildBucket = "my-public-data"
	buildOut = "/tmp/folderstats.json"
	buildExclude = []string{"tmp/**"}

	m, err := buildManifest()
	require.NoError(t, err)
	assert.Equal(t, "my-public-data", m.Connection.Bucket)
	assert.Equal(t, "/tmp/folderstats.json", m.Output.SnapshotPath)
	assert.Equal(t, []string{"tmp/**"}, m.Build.Exclude)
}

func TestBuildManifestRequiresBucketAndOut(t *testing.T) {
	resetBuildFlags()
	defer resetBuildFlags()

	_, err := buildManifest()
	assert.Error(t, err)

	buildBucket = "b"
	_, err = buildManifest()
	assert.Error(t, err)
}

func TestBuildManifestFromJobFile(t *testing.T) {
	resetBuildFlags()
	defer resetBuildFlags()

	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection:
  bucket: job-bucket
output:
  snapshot_path: /var/lib/bucketd/folderstats.json
`), 0o644))

	buildJobFile = path
	m, err := buildManifest()
	require.NoError(t, err)
	assert.Equal(t, "job-bucket", m.Connection.Bucket)
}

func TestSignalReloadBadPIDFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		err := signalReload(filepath.Join(t.TempDir(), "absent.pid"))
		assert.Error(t, err)
	})

	t.Run("malformed pid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.pid")
		require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o644))
		assert.Error(t, signalReload(path))
	})
}

func TestServeOverrides(t *testing.T) {
	origHost, origPort, origBucket := serveHost, servePort, serveBucket
	defer func() { serveHost, servePort, serveBucket = origHost, origPort, origBucket }()

	serveHost = "127.0.0.1"
	servePort = 9999
	serveBucket = "override-bucket"

	o := serveOverrides()
	srv := o["server"].(map[string]any)
	assert.Equal(t, "127.0.0.1", srv["host"])
	assert.Equal(t, 9999, srv["port"])
	store := o["store"].(map[string]any)
	assert.Equal(t, "override-bucket", store["bucket"])
}
