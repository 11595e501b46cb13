// Package query compiles a Series/Crawl's tag filters into a matcher
// over Target, the Go realisation of spec.md's "filter (structured
// query over Target)".
package query

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/kluhan/kraken/pkg/types"
)

// Filter evaluates whether a Target is within a Series/Crawl's scope.
type Filter interface {
	Match(t types.Target) bool
}

// TagFilter matches a Target if at least one of its tags matches at
// least one of the configured doublestar glob patterns — the same OR-
// across-patterns, OR-across-tags semantics the Static allocator needs
// to express "crawl.filter" over the backlog.
//
// An empty pattern set matches every Target, mirroring a Series with
// no tag_filters configured (the original's empty MongoDB filter dict).
type TagFilter struct {
	patterns []string
}

// NewTagFilter copies patterns; Match evaluates each one against a
// Target's tags on every call. An invalid glob pattern never matches any tag
// rather than erroring, since Match has no error return; callers that
// need validation up front should use Validate.
func NewTagFilter(patterns []string) *TagFilter {
	return &TagFilter{patterns: append([]string{}, patterns...)}
}

// Match reports whether t carries at least one tag matching at least
// one pattern.
func (f *TagFilter) Match(t types.Target) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, tag := range t.Tags {
		for _, pattern := range f.patterns {
			if ok, _ := doublestar.Match(pattern, tag); ok {
				return true
			}
		}
	}
	return false
}

// Patterns returns a copy of the configured pattern set.
func (f *TagFilter) Patterns() []string {
	return append([]string{}, f.patterns...)
}

// Validate checks every pattern is a well-formed doublestar glob,
// surfacing compile errors at config-load time instead of silently
// failing to match at scan time.
func Validate(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := doublestar.Match(pattern, ""); err != nil {
			return err
		}
	}
	return nil
}

// MatchTags reports whether tags contains at least one tag matching at
// least one of patterns. It is the functional core TagFilter wraps,
// exposed directly for callers (store implementations compiling a SQL
// pre-filter, for instance) that only have a raw tag slice in hand.
func MatchTags(tags, patterns []string) bool {
	return NewTagFilter(patterns).Match(types.Target{Tags: tags})
}
