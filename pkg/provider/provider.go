// Package provider defines abstractions for read-only object storage access.
//
// Providers implement the minimal surface bucketd needs to browse a bucket:
// prefix listing, per-object metadata, streaming reads, and signed download
// URLs. Authentication uses SDK default credential chains - providers should
// not implement custom auth logic.
package provider

import (
	"context"
	"time"
)

// Provider abstracts object storage listing and metadata operations.
//
// Implementations should:
//   - Use SDK default credential chains (env, shared config, instance role)
//   - Support pagination via continuation tokens
//   - Be safe for concurrent use
type Provider interface {
	// List returns a page of objects with the given prefix.
	// Use ContinuationToken from ListResult for subsequent pages.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Head returns metadata for a single object.
	// Returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ListOptions configures a List operation.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	// Empty string lists all objects.
	Prefix string

	// ContinuationToken resumes listing from a previous ListResult.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxKeys limits the number of objects returned per page.
	// Zero uses provider default (typically 1000).
	MaxKeys int
}

// ListResult contains a page of objects from a List operation.
type ListResult struct {
	// Objects contains the object summaries for this page.
	Objects []ObjectSummary

	// ContinuationToken is used to retrieve the next page.
	// Empty string indicates no more pages.
	ContinuationToken string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// ObjectSummary contains basic metadata returned from List operations.
type ObjectSummary struct {
	// Key is the full object key (path) in the bucket.
	Key string

	// Size is the object size in bytes.
	Size int64

	// ETag is the entity tag, typically an MD5 hash of the object.
	ETag string

	// LastModified is when the object was last modified.
	LastModified time.Time
}

// ObjectMeta contains full metadata for a single object.
// Returned by Head operations.
type ObjectMeta struct {
	ObjectSummary

	// ContentType is the MIME type of the object.
	ContentType string
}

// SignedURL is a time-limited download URL for a single object.
//
// Signed URLs are ephemeral: they are generated per request and must not
// be cached beyond ExpiresAt.
type SignedURL struct {
	// URL grants temporary unauthenticated read access to one object.
	URL string

	// ExpiresAt is when the URL stops working.
	ExpiresAt time.Time
}

// ProviderType identifies an object storage provider.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"

	// ProviderMemory represents the in-memory provider used in tests.
	ProviderMemory ProviderType = "memory"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
