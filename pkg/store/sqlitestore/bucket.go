package sqlitestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kluhan/kraken/pkg/query"
	"github.com/kluhan/kraken/pkg/types"
)

// bucketIndex returns the half-open-interval index boundaries[i] <=
// weight < boundaries[i+1] falls into, or -1 if weight is outside every
// interval (below the first boundary, or at/above the last).
func bucketIndex(boundaries []float64, weight float64) int {
	for i := 0; i < len(boundaries)-1; i++ {
		if weight >= boundaries[i] && weight < boundaries[i+1] {
			return i
		}
	}
	return -1
}

// aggregateByBoundary groups every target matching tagFilters by
// weightPath into boundaries' half-open intervals, sizing each
// non-empty bucket with sizeOf(target, weight). Buckets with no
// matching targets are simply absent from the result, mirroring
// MongoDB's $bucket.
func (s *Store) aggregateByBoundary(ctx context.Context, weightPath string, boundaries []float64, tagFilters []string, sizeOf func(weight float64) float64) (map[int]float64, error) {
	all, err := s.loadAllTargets(ctx)
	if err != nil {
		return nil, err
	}

	sizes := map[int]float64{}
	for _, target := range all {
		if !query.MatchTags(target.Tags, tagFilters) {
			continue
		}
		weight, ok := resolveWeight(target, weightPath)
		if !ok {
			continue
		}
		idx := bucketIndex(boundaries, weight)
		if idx < 0 {
			continue
		}
		sizes[idx] += sizeOf(weight)
	}
	return sizes, nil
}

// allocateBucket returns up to allocatedResources targets matching
// tagFilters whose weightPath value falls in [lowerBound, upperBound),
// ordered so targets never queued for crawlName come first, then the
// ones queued longest ago for it.
func (s *Store) allocateBucket(ctx context.Context, weightPath string, lowerBound, upperBound float64, tagFilters []string, crawlName string, allocatedResources int) ([]types.Target, error) {
	if allocatedResources <= 0 {
		return nil, nil
	}
	all, err := s.loadAllTargets(ctx)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		target     types.Target
		lastQueued time.Time
	}
	var candidates []candidate
	for _, target := range all {
		if !query.MatchTags(target.Tags, tagFilters) {
			continue
		}
		weight, ok := resolveWeight(target, weightPath)
		if !ok || weight < lowerBound || weight >= upperBound {
			continue
		}
		last, _ := target.LastQueuedByCrawl(crawlName)
		candidates = append(candidates, candidate{target: target, lastQueued: last})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].lastQueued.Before(candidates[j].lastQueued)
	})

	if len(candidates) > allocatedResources {
		candidates = candidates[:allocatedResources]
	}
	out := make([]types.Target, len(candidates))
	for i, c := range candidates {
		out[i] = c.target
	}
	return out, nil
}

// markQueued implements allocator.BucketSource.MarkQueued, appending
// now to every given target's QueuedByCrawl[crawlName] sequence.
func (s *Store) markQueued(ctx context.Context, crawlName string, targets []types.Target) error {
	now := time.Now().UTC()
	for _, t := range targets {
		target, err := s.loadTargetByID(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("sqlitestore: mark queued: %w", err)
		}
		if target.QueuedByCrawl == nil {
			target.QueuedByCrawl = map[string][]time.Time{}
		}
		target.QueuedByCrawl[crawlName] = append(target.QueuedByCrawl[crawlName], now)
		if err := s.saveTarget(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

// UniformSource is an allocator.BucketSource that sizes each bucket by
// target count, the sizing rule uniform_resource_allocator.py uses.
type UniformSource struct {
	store *Store
}

// NewUniformSource wraps store for the Uniform allocator.
func NewUniformSource(store *Store) *UniformSource {
	return &UniformSource{store: store}
}

func (u *UniformSource) AggregateByBoundary(ctx context.Context, weightPath string, boundaries []float64, tagFilters []string) (map[int]float64, error) {
	return u.store.aggregateByBoundary(ctx, weightPath, boundaries, tagFilters, func(float64) float64 { return 1 })
}

func (u *UniformSource) AllocateBucket(ctx context.Context, weightPath string, lowerBound, upperBound float64, tagFilters []string, crawlName string, allocatedResources int) ([]types.Target, error) {
	return u.store.allocateBucket(ctx, weightPath, lowerBound, upperBound, tagFilters, crawlName, allocatedResources)
}

func (u *UniformSource) MarkQueued(ctx context.Context, crawlName string, targets []types.Target) error {
	return u.store.markQueued(ctx, crawlName, targets)
}

// ProportionalSource is an allocator.BucketSource that sizes each
// bucket by the sum of its targets' own weight values, per this
// repository's Proportional allocator design (see DESIGN.md's Open
// Question decision on proportional_resource_allocator.py).
type ProportionalSource struct {
	store *Store
}

// NewProportionalSource wraps store for the Proportional allocator.
func NewProportionalSource(store *Store) *ProportionalSource {
	return &ProportionalSource{store: store}
}

func (p *ProportionalSource) AggregateByBoundary(ctx context.Context, weightPath string, boundaries []float64, tagFilters []string) (map[int]float64, error) {
	return p.store.aggregateByBoundary(ctx, weightPath, boundaries, tagFilters, func(weight float64) float64 { return weight })
}

func (p *ProportionalSource) AllocateBucket(ctx context.Context, weightPath string, lowerBound, upperBound float64, tagFilters []string, crawlName string, allocatedResources int) ([]types.Target, error) {
	return p.store.allocateBucket(ctx, weightPath, lowerBound, upperBound, tagFilters, crawlName, allocatedResources)
}

func (p *ProportionalSource) MarkQueued(ctx context.Context, crawlName string, targets []types.Target) error {
	return p.store.markQueued(ctx, crawlName, targets)
}
