package allocator

import (
	"context"
	"fmt"

	"github.com/kluhan/kraken/pkg/types"
)

// BucketSource is the subset of the Metadata Store the bucketed
// allocators need. AggregateByBoundary groups every target matching
// tagFilters by weightPath into the half-open intervals
// [boundaries[i], boundaries[i+1]) and reports each interval's size -
// for Uniform that's a target count, for Proportional the sum of the
// targets' own weight values, so that a bucket full of a few
// heavyweight targets draws as many resources as one full of many
// lightweight ones. Indices with no targets are simply absent from
// the result, mirroring MongoDB's $bucket, which only emits non-empty
// groups.
//
// AllocateBucket returns up to allocatedResources targets whose
// weightPath value falls in [lowerBound, upperBound), matching
// tagFilters, prioritising targets never queued for crawlName and
// then the ones queued longest ago for it. MarkQueued records that
// every target in a drawn chunk was just queued for crawlName.
type BucketSource interface {
	AggregateByBoundary(ctx context.Context, weightPath string, boundaries []float64, tagFilters []string) (sizeByIndex map[int]float64, err error)
	AllocateBucket(ctx context.Context, weightPath string, lowerBound, upperBound float64, tagFilters []string, crawlName string, allocatedResources int) ([]types.Target, error)
	MarkQueued(ctx context.Context, crawlName string, targets []types.Target) error
}

// BucketedConfig parameterises a Uniform or Proportional allocator.
// Boundaries/ImportanceFactors default to DefaultBoundaries(N)/
// DefaultImportanceFactors(N) (N = BucketCount, default 64) when left
// nil, matching the original's constructor defaults.
type BucketedConfig struct {
	WeightPath        string
	StepSize          int
	BucketTTL         int
	BucketCount       int
	MinAllocation     int
	Boundaries        []float64
	ImportanceFactors []float64
	TagFilters        []string
}

func (c *BucketedConfig) fillDefaults() {
	if c.StepSize <= 0 {
		c.StepSize = 1000
	}
	if c.BucketTTL <= 0 {
		c.BucketTTL = 10
	}
	if c.BucketCount <= 0 {
		c.BucketCount = 64
	}
	if c.MinAllocation <= 0 {
		c.MinAllocation = 1
	}
	if c.Boundaries == nil {
		c.Boundaries = DefaultBoundaries(c.BucketCount)
	}
	if c.ImportanceFactors == nil {
		c.ImportanceFactors = DefaultImportanceFactors(c.BucketCount)
	}
}

// bucketedAllocator drives the recompute-every-bucket_ttl-iterations
// loop shared by Uniform and Proportional. Unlike Static it never
// reports exhaustion - the original's allocate() is an unbounded
// itertools.count(0) generator; something above it (the Scheduler,
// watching the Crawl's own termination) decides when to stop pulling.
type bucketedAllocator struct {
	source    BucketSource
	crawl     types.Crawl
	cfg       BucketedConfig
	iteration int
	buckets   []types.Bucket
}

func newBucketedAllocator(source BucketSource, crawl types.Crawl, cfg BucketedConfig) *bucketedAllocator {
	cfg.fillDefaults()
	return &bucketedAllocator{source: source, crawl: crawl, cfg: cfg}
}

func (a *bucketedAllocator) Next(ctx context.Context) ([]types.Target, bool, error) {
	if a.iteration%a.cfg.BucketTTL == 0 {
		sizes, err := a.source.AggregateByBoundary(ctx, a.cfg.WeightPath, a.cfg.Boundaries, a.cfg.TagFilters)
		if err != nil {
			return nil, false, fmt.Errorf("allocator: recompute buckets: %w", err)
		}
		a.buckets = buildBuckets(a.cfg.Boundaries, a.cfg.ImportanceFactors, sizes)
	}

	var chunk []types.Target
	for _, bucket := range a.buckets {
		n := allocationSize(a.cfg.StepSize, bucket.Weight, a.cfg.MinAllocation)
		targets, err := a.source.AllocateBucket(ctx, a.cfg.WeightPath, bucket.LowerBound, bucket.UpperBound, a.cfg.TagFilters, a.crawl.Name, n)
		if err != nil {
			return nil, false, fmt.Errorf("allocator: allocate bucket %d: %w", bucket.Index, err)
		}
		chunk = append(chunk, targets...)
	}

	if err := a.source.MarkQueued(ctx, a.crawl.Name, chunk); err != nil {
		return nil, false, fmt.Errorf("allocator: mark queued: %w", err)
	}

	a.iteration++
	return chunk, true, nil
}
