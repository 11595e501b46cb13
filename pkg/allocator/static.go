package allocator

import (
	"context"
	"time"

	"github.com/kluhan/kraken/pkg/types"
)

// StaticSource is the subset of the Metadata Store the Static
// allocator needs: one page at a time of targets belonging to
// seriesID that either have never been queued for this series, or
// whose most recent queued timestamp for it predates since (the
// crawl's start). Ordered ascending by that timestamp (never-queued
// first), so the oldest backlog drains first. Mirrors the $or/$and
// filter StaticResourceAllocator compiles in its constructor.
type StaticSource interface {
	FetchUnqueuedBatch(ctx context.Context, seriesID string, since time.Time, tagFilters []string, limit int) ([]types.Target, error)
}

// Static allocates by draining, once, every target of a series that
// hasn't been queued since the crawl started - a simple backlog walk
// with no weighting. Mirrors static_resource_allocator.py.
type Static struct {
	source   StaticSource
	crawl    types.Crawl
	seriesID string
	stepSize int
}

// NewStatic constructs a Static allocator. stepSize defaults to 1000,
// matching StaticResourceAllocator's constructor default.
func NewStatic(source StaticSource, crawl types.Crawl, seriesID string, stepSize int) *Static {
	if stepSize <= 0 {
		stepSize = 1000
	}
	return &Static{source: source, crawl: crawl, seriesID: seriesID, stepSize: stepSize}
}

// Next fetches the next page of unqueued-or-stale targets. It reports
// ok=false once a page comes back empty, the same signal the
// original's generator uses to break out of its while True loop.
func (s *Static) Next(ctx context.Context) ([]types.Target, bool, error) {
	targets, err := s.source.FetchUnqueuedBatch(ctx, s.seriesID, s.crawl.StartedAt, s.crawl.TagFilters, s.stepSize)
	if err != nil {
		return nil, false, err
	}
	if len(targets) == 0 {
		return nil, false, nil
	}
	return targets, true, nil
}
