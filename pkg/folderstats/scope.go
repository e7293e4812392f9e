package folderstats

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// scopeFilter decides which discovered prefixes get snapshot entries.
// Patterns use doublestar glob syntax and are matched against the prefix
// without its trailing slash, so "logs/**" covers everything under logs/.
type scopeFilter struct {
	include []string
	exclude []string
}

func newScopeFilter(include, exclude []string) (*scopeFilter, error) {
	for _, pat := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid glob pattern %q", pat)
		}
	}
	return &scopeFilter{include: include, exclude: exclude}, nil
}

func (f *scopeFilter) match(prefix string) bool {
	name := strings.TrimSuffix(prefix, "/")

	for _, pat := range f.exclude {
		if ok, _ := doublestar.Match(pat, name); ok {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, pat := range f.include {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}
