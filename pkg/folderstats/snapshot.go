// Package folderstats provides precomputed per-prefix aggregates for the
// browse listing: total descendant size, descendant file count, and newest
// last-modified time.
//
// Aggregates are expensive to compute (a full-depth walk of the bucket), so
// they are built out-of-band by Builder and published as an immutable
// Snapshot file. The serving path only ever reads whole snapshots; it never
// recomputes a folder on the fly.
package folderstats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metric is the precomputed aggregate for one prefix.
//
// Values cover all descendant objects, not just immediate children. A
// prefix without a Metric in the current snapshot is simply unknown; the
// listing shows it without size or count.
type Metric struct {
	// TotalSizeBytes is the summed size of every descendant object.
	TotalSizeBytes int64 `json:"total_size_bytes"`

	// FileCount is the number of descendant objects.
	FileCount int64 `json:"file_count"`

	// LastModified is the newest last-modified time among descendants.
	LastModified time.Time `json:"last_modified"`
}

// Snapshot is one complete generation of folder aggregates.
//
// A snapshot is immutable once built. Rebuilds replace the whole value;
// entries are never merged across generations, so a reader holding a
// snapshot always sees size and count from the same walk of the bucket.
type Snapshot struct {
	// GeneratedAt is when the builder finished this generation.
	GeneratedAt time.Time `json:"generated_at"`

	// Bucket is the bucket the aggregates were computed from.
	Bucket string `json:"bucket"`

	// Prefixes maps each known prefix (with trailing slash) to its aggregate.
	Prefixes map[string]Metric `json:"prefixes"`
}

// Lookup returns the aggregate for prefix, if this generation has one.
func (s *Snapshot) Lookup(prefix string) (Metric, bool) {
	if s == nil {
		return Metric{}, false
	}
	m, ok := s.Prefixes[prefix]
	return m, ok
}

// Len returns the number of prefixes in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Prefixes)
}

// Load reads a snapshot file written by WriteFile.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if snap.Prefixes == nil {
		snap.Prefixes = map[string]Metric{}
	}
	return &snap, nil
}

// WriteFile publishes the snapshot atomically.
//
// The snapshot is written to a temp file in the target directory and then
// renamed over the destination, so a concurrent reader sees either the old
// generation or the new one, never a torn file.
func (s *Snapshot) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".folderstats-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}
