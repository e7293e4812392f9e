package folderstats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/bucketd/pkg/provider"
)

// Source is the bucket access the builder needs: delimiter listing for
// prefix discovery and flat listing for full-depth aggregation.
type Source interface {
	List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error)
	ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error)
}

// BuildConfig controls a snapshot build.
type BuildConfig struct {
	// MaxDepth bounds prefix discovery. Depth 1 is the top-level folders.
	// Aggregation below a discovered prefix is always full depth; MaxDepth
	// only limits which prefixes get their own snapshot entry.
	MaxDepth int

	// Parallelism bounds concurrent aggregation workers.
	Parallelism int

	// RateLimit caps list requests per second across all workers.
	// Zero disables the limiter.
	RateLimit float64

	// Include restricts discovery to prefixes matching any of these glob
	// patterns (doublestar syntax, matched against the prefix without its
	// trailing slash). Empty means everything.
	Include []string

	// Exclude drops prefixes matching any of these glob patterns.
	// Exclude wins over Include.
	Exclude []string

	// MaxPrefixes aborts the build if discovery finds more than this many
	// prefixes. Zero uses DefaultMaxPrefixes.
	MaxPrefixes int
}

// Defaults for BuildConfig zero values.
const (
	DefaultMaxDepth    = 4
	DefaultParallelism = 8
	DefaultMaxPrefixes = 50000
)

func (c *BuildConfig) applyDefaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.MaxPrefixes <= 0 {
		c.MaxPrefixes = DefaultMaxPrefixes
	}
}

// Builder computes a Snapshot by walking a bucket.
//
// The build runs in two phases: breadth-first discovery of prefixes via
// delimiter listing down to MaxDepth, then a full-depth aggregation of each
// discovered prefix. Any listing error aborts the whole build; a partial
// snapshot is never returned, so a published generation is always complete.
type Builder struct {
	src     Source
	bucket  string
	cfg     BuildConfig
	scope   *scopeFilter
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewBuilder creates a builder over src for the named bucket.
func NewBuilder(src Source, bucket string, cfg BuildConfig, logger *zap.Logger) (*Builder, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	scope, err := newScopeFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("build scope: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Builder{
		src:     src,
		bucket:  bucket,
		cfg:     cfg,
		scope:   scope,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Build walks the bucket and returns a complete snapshot.
//
// Returns an error without a snapshot if any listing fails or the context
// is cancelled. The caller decides whether and where to publish.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	prefixes, err := b.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover prefixes: %w", err)
	}
	b.logger.Info("prefix discovery complete",
		zap.String("bucket", b.bucket),
		zap.Int("prefixes", len(prefixes)),
		zap.Duration("elapsed", time.Since(start)),
	)

	metrics, err := b.aggregate(ctx, prefixes)
	if err != nil {
		return nil, fmt.Errorf("aggregate prefixes: %w", err)
	}

	snap := &Snapshot{
		GeneratedAt: time.Now().UTC(),
		Bucket:      b.bucket,
		Prefixes:    metrics,
	}
	b.logger.Info("snapshot build complete",
		zap.String("bucket", b.bucket),
		zap.Int("prefixes", snap.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

// discover walks the prefix tree breadth-first down to MaxDepth.
func (b *Builder) discover(ctx context.Context) ([]string, error) {
	var (
		found   []string
		seen    = map[string]struct{}{}
		current = []string{""}
	)

	for depth := 1; depth <= b.cfg.MaxDepth && len(current) > 0; depth++ {
		next, err := b.discoverLevel(ctx, current, seen)
		if err != nil {
			return nil, err
		}

		for _, p := range next {
			if b.scope.match(p) {
				found = append(found, p)
			}
		}
		if len(found) > b.cfg.MaxPrefixes {
			return nil, fmt.Errorf("prefix count exceeds limit of %d", b.cfg.MaxPrefixes)
		}
		current = next
	}

	sort.Strings(found)
	return found, nil
}

// discoverLevel lists the children of each parent prefix in parallel.
func (b *Builder) discoverLevel(ctx context.Context, parents []string, seen map[string]struct{}) ([]string, error) {
	var (
		mu       sync.Mutex
		children []string
		firstErr error
	)

	sem := make(chan struct{}, b.cfg.Parallelism)
	var wg sync.WaitGroup

	for _, parent := range parents {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(parent string) {
			defer wg.Done()
			defer func() { <-sem }()

			found, err := b.listChildPrefixes(ctx, parent)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for _, child := range found {
				if _, dup := seen[child]; dup {
					continue
				}
				seen[child] = struct{}{}
				children = append(children, child)
			}
		}(parent)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return children, nil
}

// listChildPrefixes pages through delimiter listings of one parent and
// returns its immediate child prefixes.
func (b *Builder) listChildPrefixes(ctx context.Context, parent string) ([]string, error) {
	var (
		children []string
		token    string
	)
	for {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}

		res, err := b.src.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
			Prefix:            parent,
			Delimiter:         "/",
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", parent, err)
		}

		children = append(children, res.CommonPrefixes...)

		if !res.IsTruncated {
			return children, nil
		}
		token = res.ContinuationToken
	}
}

// aggregate computes full-depth metrics for each prefix in parallel.
func (b *Builder) aggregate(ctx context.Context, prefixes []string) (map[string]Metric, error) {
	var (
		mu       sync.Mutex
		metrics  = make(map[string]Metric, len(prefixes))
		firstErr error
	)

	sem := make(chan struct{}, b.cfg.Parallelism)
	var wg sync.WaitGroup

	for _, prefix := range prefixes {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(prefix string) {
			defer wg.Done()
			defer func() { <-sem }()

			m, err := b.aggregatePrefix(ctx, prefix)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			metrics[prefix] = m
		}(prefix)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return metrics, nil
}

// aggregatePrefix sums every descendant object of one prefix.
func (b *Builder) aggregatePrefix(ctx context.Context, prefix string) (Metric, error) {
	var (
		m     Metric
		token string
	)
	for {
		if err := b.wait(ctx); err != nil {
			return Metric{}, err
		}

		res, err := b.src.List(ctx, provider.ListOptions{
			Prefix:            prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return Metric{}, fmt.Errorf("aggregate %q: %w", prefix, err)
		}

		for _, obj := range res.Objects {
			// Zero-byte keys ending in the delimiter are folder placeholders,
			// not content.
			if strings.HasSuffix(obj.Key, "/") && obj.Size == 0 {
				continue
			}
			m.TotalSizeBytes += obj.Size
			m.FileCount++
			if obj.LastModified.After(m.LastModified) {
				m.LastModified = obj.LastModified
			}
		}

		if !res.IsTruncated {
			return m, nil
		}
		token = res.ContinuationToken
	}
}

func (b *Builder) wait(ctx context.Context) error {
	if b.limiter == nil {
		return ctx.Err()
	}
	return b.limiter.Wait(ctx)
}
