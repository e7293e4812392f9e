package folderstats

import (
	"sync/atomic"
)

// Store holds the snapshot the serving path reads from.
//
// The current snapshot lives behind an atomic pointer: Reload parses the
// published file off to the side and swaps the pointer once, so request
// handlers never lock and never observe a mix of generations. In-flight
// requests keep the snapshot they started with; new requests pick up the
// new generation immediately.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store reading snapshots from path.
//
// The store starts empty; call Reload to load the published file.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file path the store reloads from.
func (s *Store) Path() string {
	return s.path
}

// Current returns the active snapshot, or nil if none has been loaded.
// The returned value is immutable and safe to use for the whole request.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload reads the snapshot file and swaps it in.
//
// On error the previous snapshot stays active; a failed reload never
// degrades serving below what it already had.
func (s *Store) Reload() error {
	snap, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(snap)
	return nil
}

// Replace swaps in a snapshot directly, bypassing the file.
// Intended for tests and for processes that just built the snapshot.
func (s *Store) Replace(snap *Snapshot) {
	s.current.Store(snap)
}
