package provider

import (
	"context"
	"io"
	"time"
)

// Optional provider capability interfaces.
//
// These interfaces are used for feature detection (type assertions). The core
// Provider interface remains intentionally small.

// ObjectGetter can download objects as a stream.
//
// Used for inline delivery of viewable objects.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) (body io.ReadCloser, contentLength int64, err error)
}

// URLSigner can mint time-limited download URLs.
//
// Download handoff prefers a signed redirect over proxying bytes through
// the server.
type URLSigner interface {
	PresignGetObject(ctx context.Context, key string, ttl time.Duration) (*SignedURL, error)
}
