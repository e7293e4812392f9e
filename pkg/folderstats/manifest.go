package folderstats

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the declarative job file for a snapshot build.
//
// A manifest pins down everything a scheduled build needs so the same job
// runs identically from cron, CI, or an operator's shell:
//
//	connection:
//	  bucket: my-public-data
//	  region: us-west-2
//	build:
//	  max_depth: 4
//	  parallelism: 8
//	  rate_limit: 50
//	  exclude:
//	    - "tmp/**"
//	output:
//	  snapshot_path: /var/lib/bucketd/folderstats.json
//	  reload_pidfile: /run/bucketd.pid
type Manifest struct {
	Connection ConnectionSpec `yaml:"connection"`
	Build      BuildSpec      `yaml:"build"`
	Output     OutputSpec     `yaml:"output"`
}

// ConnectionSpec names the bucket to walk and how to reach it.
type ConnectionSpec struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Profile  string `yaml:"profile"`

	// ForcePathStyle is needed for most S3-compatible endpoints.
	ForcePathStyle bool `yaml:"force_path_style"`
}

// BuildSpec mirrors BuildConfig in file form.
type BuildSpec struct {
	MaxDepth    int      `yaml:"max_depth"`
	Parallelism int      `yaml:"parallelism"`
	RateLimit   float64  `yaml:"rate_limit"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	MaxPrefixes int      `yaml:"max_prefixes"`
}

// BuildConfig converts the manifest build section into a BuildConfig.
func (s BuildSpec) BuildConfig() BuildConfig {
	return BuildConfig{
		MaxDepth:    s.MaxDepth,
		Parallelism: s.Parallelism,
		RateLimit:   s.RateLimit,
		Include:     s.Include,
		Exclude:     s.Exclude,
		MaxPrefixes: s.MaxPrefixes,
	}
}

// OutputSpec says where the snapshot goes and who to notify.
type OutputSpec struct {
	// SnapshotPath is the publish destination (required).
	SnapshotPath string `yaml:"snapshot_path"`

	// ReloadPIDFile, if set, names a pidfile of a running server to send
	// SIGHUP after a successful publish.
	ReloadPIDFile string `yaml:"reload_pidfile"`
}

// LoadManifest reads and validates a job manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks required manifest fields.
func (m *Manifest) Validate() error {
	if m.Connection.Bucket == "" {
		return fmt.Errorf("connection.bucket is required")
	}
	if m.Output.SnapshotPath == "" {
		return fmt.Errorf("output.snapshot_path is required")
	}
	return nil
}
