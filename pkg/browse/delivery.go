package browse

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/3leaps/bucketd/pkg/provider"
)

// SignedURLTTL is the validity window for signed download URLs.
const SignedURLTTL = time.Hour

// Delivery is the outcome of delivering one object: either inline bytes or
// a redirect to a signed URL, never both.
type Delivery struct {
	// Inline says the object body is returned directly.
	Inline bool

	// Body streams the object when Inline. The caller must close it.
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string

	// RedirectURL is the signed download URL when not Inline.
	RedirectURL string

	// ExpiresAt is when RedirectURL stops working.
	ExpiresAt time.Time
}

// DeliveryStore is the store access delivery needs.
type DeliveryStore interface {
	Head(ctx context.Context, key string) (*provider.ObjectMeta, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)
	PresignGetObject(ctx context.Context, key string, ttl time.Duration) (*provider.SignedURL, error)
}

// Deliverer serves single objects.
//
// JSON objects requested in view mode stream inline so the browser-side
// viewer can format them; everything else redirects to a signed URL and
// the store serves the bytes itself.
type Deliverer struct {
	store DeliveryStore
}

// NewDeliverer creates a deliverer over store.
func NewDeliverer(store DeliveryStore) *Deliverer {
	return &Deliverer{store: store}
}

// Deliver resolves key into an inline body or a signed redirect.
//
// Existence is checked live against the store, never from a cache, so a
// deleted object 404s immediately. Signed URLs are generated fresh per
// request and always carry the fixed one hour expiry.
func (d *Deliverer) Deliver(ctx context.Context, key string, viewMode bool) (*Delivery, error) {
	if _, err := d.store.Head(ctx, key); err != nil {
		return nil, fmt.Errorf("deliver %q: %w", key, err)
	}

	if viewMode && isJSONKey(key) {
		body, size, err := d.store.GetObject(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("deliver %q: %w", key, err)
		}
		return &Delivery{
			Inline:        true,
			Body:          body,
			ContentLength: size,
			ContentType:   "application/json",
		}, nil
	}

	signed, err := d.store.PresignGetObject(ctx, key, SignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign %q: %w", key, err)
	}
	return &Delivery{
		RedirectURL: signed.URL,
		ExpiresAt:   signed.ExpiresAt,
	}, nil
}

// isJSONKey infers JSON-ness from the key extension. Type inference is by
// extension only; object metadata content types are not consulted.
func isJSONKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".json")
}
