package browse

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/3leaps/bucketd/pkg/folderstats"
	"github.com/3leaps/bucketd/pkg/provider"
)

// Entry is one row in a folder listing.
type Entry struct {
	// Name is the display name relative to the listed prefix. Folder names
	// keep their trailing slash off; IsFolder carries that distinction.
	Name string

	// Key is the full store key (objects) or prefix with trailing slash
	// (folders).
	Key string

	IsFolder bool

	// Size and LastModified are live store metadata for files. For folders
	// they are aggregates from the statistics snapshot and only meaningful
	// when HasMetrics is true.
	Size         int64
	LastModified time.Time

	// FileCount is the descendant object count for folders with metrics.
	FileCount int64

	// HasMetrics says whether the current snapshot knew this folder.
	// Folders without metrics still list; they just render without size
	// and count.
	HasMetrics bool
}

// Listing is the result of listing one prefix.
type Listing struct {
	// Prefix is the listed prefix; empty string is the bucket root.
	Prefix string

	// Entries is ordered folders-first, case-insensitive by name.
	Entries []Entry

	// SnapshotAt is the generation time of the snapshot used for folder
	// metrics, zero when no snapshot was loaded.
	SnapshotAt time.Time
}

// ListingStore is the store access listings need.
type ListingStore interface {
	ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error)
}

// SnapshotSource yields the current statistics snapshot, nil when none is
// loaded. folderstats.Store satisfies this.
type SnapshotSource interface {
	Current() *folderstats.Snapshot
}

// Lister produces one-level folder listings.
//
// Listings are a single delimiter listing against the store. Folder
// aggregates come exclusively from the snapshot; a cache miss shows the
// folder without numbers rather than triggering a recursive walk, keeping
// request latency bounded by one paginated list call.
type Lister struct {
	store     ListingStore
	snapshots SnapshotSource
}

// NewLister creates a lister. snapshots may be nil when no statistics file
// is configured; folders then list without aggregates.
func NewLister(store ListingStore, snapshots SnapshotSource) *Lister {
	return &Lister{store: store, snapshots: snapshots}
}

// List returns the immediate children of prefix.
//
// A non-root prefix with no children and no placeholder key reports
// provider.ErrNotFound. A prefix that exists only as a zero-byte placeholder
// lists as an empty folder. The root always lists, even when the bucket is
// empty.
func (l *Lister) List(ctx context.Context, prefix string) (*Listing, error) {
	var (
		objects  []provider.ObjectSummary
		children []string
		token    string
	)
	for {
		res, err := l.store.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
			Prefix:            prefix,
			Delimiter:         "/",
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}

		objects = append(objects, res.Objects...)
		children = append(children, res.CommonPrefixes...)

		if !res.IsTruncated {
			break
		}
		token = res.ContinuationToken
	}

	entries := make([]Entry, 0, len(objects)+len(children))

	var snap *folderstats.Snapshot
	var snapshotAt time.Time
	if l.snapshots != nil {
		snap = l.snapshots.Current()
		if snap != nil {
			snapshotAt = snap.GeneratedAt
		}
	}

	for _, child := range children {
		e := Entry{
			Name:     strings.TrimSuffix(strings.TrimPrefix(child, prefix), "/"),
			Key:      child,
			IsFolder: true,
		}
		if m, ok := snap.Lookup(child); ok {
			e.Size = m.TotalSizeBytes
			e.FileCount = m.FileCount
			e.LastModified = m.LastModified
			e.HasMetrics = true
		}
		entries = append(entries, e)
	}

	sawPlaceholder := false
	for _, obj := range objects {
		// The prefix's own placeholder key shows up as a direct object in
		// delimiter listings; it is not content, but it does prove the
		// folder exists.
		if obj.Key == prefix {
			sawPlaceholder = true
			continue
		}
		entries = append(entries, Entry{
			Name:         strings.TrimPrefix(obj.Key, prefix),
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	if prefix != "" && len(entries) == 0 && !sawPlaceholder {
		return nil, fmt.Errorf("list %q: %w", prefix, provider.ErrNotFound)
	}

	sortEntries(entries)

	return &Listing{Prefix: prefix, Entries: entries, SnapshotAt: snapshotAt}, nil
}

// sortEntries orders folders before files, case-insensitive by name, with
// the raw name breaking ties so the order is total.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}
		al, bl := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if al != bl {
			return al < bl
		}
		return a.Name < b.Name
	})
}
