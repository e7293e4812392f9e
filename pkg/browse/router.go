// Package browse implements the public browsing core: classifying request
// paths into listing or object semantics, producing ordered folder listings
// annotated with precomputed statistics, and delivering objects inline or
// via signed URLs.
package browse

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DecisionKind says what a classified path should do.
type DecisionKind int

const (
	// KindListPrefix renders a one-level listing of Decision.Prefix.
	KindListPrefix DecisionKind = iota

	// KindServeObject delivers the object at Decision.Key.
	KindServeObject

	// KindRedirect sends a 302 to Decision.Location.
	KindRedirect

	// KindNotFound is a 404. Malformed paths classify here too; they are
	// deliberately indistinguishable from missing keys.
	KindNotFound
)

// Decision is the outcome of classifying one request path.
type Decision struct {
	Kind DecisionKind

	// Prefix is set for KindListPrefix. Empty string is the bucket root;
	// any other value ends in "/".
	Prefix string

	// Key is set for KindServeObject.
	Key string

	// ViewMode is set for KindServeObject when the view flag was present.
	ViewMode bool

	// Location is set for KindRedirect. Always a path-style URL with no
	// query string.
	Location string
}

// Legacy per-action route segments. The old server mounted views and
// downloads under these; the path namespace no longer carves them out, so
// they stay reserved and always 404 to keep old links from resolving to
// unrelated objects.
var reservedSegments = map[string]struct{}{
	"view":     {},
	"download": {},
}

// legacyPathParam is the old query-parameter browsing form.
const legacyPathParam = "path"

// viewFlag marks an object request for inline viewing. Its value is ignored.
const viewFlag = "view"

// Router classifies request paths.
//
// Classification is a pure function of the path plus existence checks
// against the store; it has no side effects and holds no per-request state.
type Router struct {
	exists *ExistenceChecker
}

// NewRouter creates a router using checker for object and prefix existence.
func NewRouter(checker *ExistenceChecker) *Router {
	return &Router{exists: checker}
}

// Classify maps a request path and query to a Decision.
//
// Returns an error only when the store cannot answer an existence check;
// everything else, including malformed paths, classifies to a Decision.
func (r *Router) Classify(ctx context.Context, rawPath string, query url.Values) (Decision, error) {
	// Legacy ?path= form redirects to the path-style URL before anything
	// else is considered, dropping the whole query string. The value passes
	// through the same normalization as a request path; anything it rejects
	// must never reach a Location header, where a scheme-relative value like
	// //host would send the client off-site.
	if legacy := query.Get(legacyPathParam); legacy != "" {
		rel, ok := normalizePath("/" + strings.TrimPrefix(legacy, "/"))
		if !ok {
			return Decision{Kind: KindNotFound}, nil
		}
		return Decision{Kind: KindRedirect, Location: "/" + rel}, nil
	}

	rel, ok := normalizePath(rawPath)
	if !ok {
		return Decision{Kind: KindNotFound}, nil
	}

	if first, _, _ := strings.Cut(rel, "/"); first != "" {
		if _, reserved := reservedSegments[first]; reserved {
			return Decision{Kind: KindNotFound}, nil
		}
	}

	// Trailing slash (or the root itself) is always a listing request.
	if rel == "" || strings.HasSuffix(rel, "/") {
		return Decision{Kind: KindListPrefix, Prefix: rel}, nil
	}

	exists, err := r.exists.ObjectExists(ctx, rel)
	if err != nil {
		return Decision{}, fmt.Errorf("classify %q: %w", rawPath, err)
	}
	if exists {
		return Decision{
			Kind:     KindServeObject,
			Key:      rel,
			ViewMode: query.Has(viewFlag),
		}, nil
	}

	exists, err = r.exists.PrefixExists(ctx, rel+"/")
	if err != nil {
		return Decision{}, fmt.Errorf("classify %q: %w", rawPath, err)
	}
	if exists {
		return Decision{Kind: KindRedirect, Location: "/" + rel + "/"}, nil
	}

	return Decision{Kind: KindNotFound}, nil
}

// normalizePath strips the leading slash and rejects paths that cannot name
// a stored key: dot segments, doubled separators, control bytes. Rejected
// paths report not-ok and the caller treats them as not found.
func normalizePath(rawPath string) (string, bool) {
	if !strings.HasPrefix(rawPath, "/") {
		return "", false
	}
	rel := rawPath[1:]

	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		if seg == "." || seg == ".." {
			return "", false
		}
		// An empty segment anywhere but the end is a doubled separator or a
		// second leading slash; only a trailing slash may leave one.
		if seg == "" && i != len(segs)-1 {
			return "", false
		}
	}
	for i := 0; i < len(rel); i++ {
		if rel[i] < 0x20 || rel[i] == 0x7f {
			return "", false
		}
	}
	return rel, true
}
