package browse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/3leaps/bucketd/pkg/provider"
)

// DefaultExistenceTTL bounds how stale an existence answer may be. Kept in
// single-digit seconds so a freshly uploaded object is routable almost
// immediately.
const DefaultExistenceTTL = 5 * time.Second

// ExistenceStore is the store access existence checks need.
type ExistenceStore interface {
	Head(ctx context.Context, key string) (*provider.ObjectMeta, error)
	ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error)
}

// ExistenceChecker answers "does this key/prefix exist" with a short TTL
// cache in front of the store.
//
// Both positive and negative answers are cached for the same TTL. Safe for
// concurrent use.
type ExistenceChecker struct {
	store ExistenceStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]existEntry
}

type existEntry struct {
	exists    bool
	expiresAt time.Time
}

// NewExistenceChecker creates a checker over store. A non-positive ttl uses
// DefaultExistenceTTL.
func NewExistenceChecker(store ExistenceStore, ttl time.Duration) *ExistenceChecker {
	if ttl <= 0 {
		ttl = DefaultExistenceTTL
	}
	return &ExistenceChecker{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]existEntry),
	}
}

// ObjectExists reports whether key names a stored object.
func (c *ExistenceChecker) ObjectExists(ctx context.Context, key string) (bool, error) {
	return c.check(ctx, "o:"+key, func() (bool, error) {
		_, err := c.store.Head(ctx, key)
		if err != nil {
			if provider.IsNotFound(err) {
				return false, nil
			}
			return false, fmt.Errorf("head %q: %w", key, err)
		}
		return true, nil
	})
}

// PrefixExists reports whether prefix has at least one descendant object.
func (c *ExistenceChecker) PrefixExists(ctx context.Context, prefix string) (bool, error) {
	return c.check(ctx, "p:"+prefix, func() (bool, error) {
		res, err := c.store.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
			Prefix:    prefix,
			Delimiter: "/",
			MaxKeys:   1,
		})
		if err != nil {
			return false, fmt.Errorf("probe prefix %q: %w", prefix, err)
		}
		return len(res.Objects) > 0 || len(res.CommonPrefixes) > 0, nil
	})
}

func (c *ExistenceChecker) check(ctx context.Context, cacheKey string, probe func() (bool, error)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := c.now()
	c.mu.Lock()
	if e, ok := c.entries[cacheKey]; ok && now.Before(e.expiresAt) {
		c.mu.Unlock()
		return e.exists, nil
	}
	c.mu.Unlock()

	exists, err := probe()
	if err != nil {
		// Errors are not cached; the next request probes again.
		return false, err
	}

	c.mu.Lock()
	c.entries[cacheKey] = existEntry{exists: exists, expiresAt: now.Add(c.ttl)}
	// Opportunistic sweep keeps the map from growing without bound under
	// scanner traffic.
	if len(c.entries) > 4096 {
		for k, e := range c.entries {
			if !now.Before(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.mu.Unlock()

	return exists, nil
}
