package folderstats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
connection:
  bucket: my-public-data
  region: us-west-2
build:
  max_depth: 3
  parallelism: 4
  rate_limit: 25
  exclude:
    - "tmp/**"
output:
  snapshot_path: /var/lib/bucketd/folderstats.json
  reload_pidfile: /run/bucketd.pid
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "my-public-data", m.Connection.Bucket)
	assert.Equal(t, "us-west-2", m.Connection.Region)
	assert.Equal(t, "/var/lib/bucketd/folderstats.json", m.Output.SnapshotPath)
	assert.Equal(t, "/run/bucketd.pid", m.Output.ReloadPIDFile)

	cfg := m.Build.BuildConfig()
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, 25.0, cfg.RateLimit)
	assert.Equal(t, []string{"tmp/**"}, cfg.Exclude)
}

func TestLoadManifestRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing bucket",
			content: `
output:
  snapshot_path: /tmp/out.json
`,
		},
		{
			name: "missing snapshot path",
			content: `
connection:
  bucket: b
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	path := writeManifest(t, `
connection:
  bucket: b
  bukket: typo
output:
  snapshot_path: /tmp/out.json
`)
	_, err := LoadManifest(path)
	assert.Error(t, err)
}
