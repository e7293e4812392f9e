// Package memory implements an in-memory provider for tests.
//
// The provider holds objects in a map and fabricates deterministic signed
// URLs. It implements every capability interface so handler and service
// tests can exercise the full delivery path without a real bucket.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/bucketd/pkg/provider"
)

// Provider implements provider.Provider backed by an in-memory map.
//
// Safe for concurrent use. The zero value is not usable; call New.
type Provider struct {
	mu      sync.RWMutex
	objects map[string]object
	failErr error
}

type object struct {
	data         []byte
	lastModified time.Time
	contentType  string
}

// Ensure Provider implements the capability interfaces.
var (
	_ provider.Provider        = (*Provider)(nil)
	_ provider.DelimiterLister = (*Provider)(nil)
	_ provider.ObjectGetter    = (*Provider)(nil)
	_ provider.URLSigner       = (*Provider)(nil)
)

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{objects: make(map[string]object)}
}

// Put stores an object. Intended for test seeding.
func (p *Provider) Put(key string, data []byte, lastModified time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = object{data: data, lastModified: lastModified}
}

// PutWithContentType stores an object with an explicit content type.
func (p *Provider) PutWithContentType(key string, data []byte, lastModified time.Time, contentType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = object{data: data, lastModified: lastModified, contentType: contentType}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failErr = err
}

func (p *Provider) Close() error { return nil }

// List returns objects with the given prefix in key order.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.failErr != nil {
		return nil, p.wrapError("List", opts.Prefix)
	}

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	keys := p.sortedKeys(opts.Prefix)

	start := 0
	if opts.ContinuationToken != "" {
		// Resume strictly after the last returned key.
		start = sort.SearchStrings(keys, opts.ContinuationToken)
		for start < len(keys) && keys[start] <= opts.ContinuationToken {
			start++
		}
	}

	end := start + maxKeys
	if end > len(keys) {
		end = len(keys)
	}

	objects := make([]provider.ObjectSummary, 0, end-start)
	for _, k := range keys[start:end] {
		objects = append(objects, p.summary(k))
	}

	res := &provider.ListResult{Objects: objects}
	if end < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = keys[end-1]
	}
	return res, nil
}

// ListWithDelimiter groups keys under prefix into direct objects and
// immediate child prefixes, the way S3 delimiter listing does.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.failErr != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix)
	}

	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}

	var objects []provider.ObjectSummary
	childSet := make(map[string]struct{})

	for _, k := range p.sortedKeys(opts.Prefix) {
		rest := strings.TrimPrefix(k, opts.Prefix)
		if idx := strings.Index(rest, delimiter); idx >= 0 {
			childSet[opts.Prefix+rest[:idx+len(delimiter)]] = struct{}{}
			continue
		}
		objects = append(objects, p.summary(k))
	}

	children := make([]string, 0, len(childSet))
	for cp := range childSet {
		children = append(children, cp)
	}
	sort.Strings(children)

	return &provider.ListWithDelimiterResult{
		Objects:        objects,
		CommonPrefixes: children,
	}, nil
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.failErr != nil {
		return nil, p.wrapError("Head", key)
	}

	obj, ok := p.objects[key]
	if !ok {
		return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderMemory, Key: key, Err: provider.ErrNotFound}
	}

	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{Key: key, Size: int64(len(obj.data)), LastModified: obj.lastModified},
		ContentType:   obj.contentType,
	}, nil
}

// GetObject returns the stored bytes as a stream.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.failErr != nil {
		return nil, 0, p.wrapError("GetObject", key)
	}

	obj, ok := p.objects[key]
	if !ok {
		return nil, 0, &provider.ProviderError{Op: "GetObject", Provider: provider.ProviderMemory, Key: key, Err: provider.ErrNotFound}
	}

	return io.NopCloser(bytes.NewReader(obj.data)), int64(len(obj.data)), nil
}

// PresignGetObject fabricates a deterministic signed URL.
func (p *Provider) PresignGetObject(ctx context.Context, key string, ttl time.Duration) (*provider.SignedURL, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.failErr != nil {
		return nil, p.wrapError("PresignGetObject", key)
	}

	if _, ok := p.objects[key]; !ok {
		return nil, &provider.ProviderError{Op: "PresignGetObject", Provider: provider.ProviderMemory, Key: key, Err: provider.ErrNotFound}
	}

	expires := time.Now().Add(ttl)
	return &provider.SignedURL{
		URL:       fmt.Sprintf("https://memory.invalid/%s?expires=%d", key, expires.Unix()),
		ExpiresAt: expires,
	}, nil
}

// sortedKeys returns all keys with the given prefix in ascending order.
// Callers must hold at least the read lock.
func (p *Provider) sortedKeys(prefix string) []string {
	keys := make([]string, 0, len(p.objects))
	for k := range p.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// summary builds an ObjectSummary for key. Callers must hold the read lock.
func (p *Provider) summary(key string) provider.ObjectSummary {
	obj := p.objects[key]
	return provider.ObjectSummary{Key: key, Size: int64(len(obj.data)), LastModified: obj.lastModified}
}

func (p *Provider) wrapError(op, key string) error {
	return &provider.ProviderError{Op: op, Provider: provider.ProviderMemory, Key: key, Err: p.failErr}
}
