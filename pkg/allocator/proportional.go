package allocator

import "github.com/kluhan/kraken/pkg/types"

// Proportional shares Uniform's exponential-bucket, recompute-every-
// bucket_ttl-iterations structure, but each bucket's size is the SUM
// of its targets' weight values rather than their count - so a bucket
// holding fewer, heavier targets still draws resources proportional
// to the weight it actually represents, not just how many targets
// fall in its range. The original's proportional_resource_allocator.py
// wasn't present in the retrieved source; this is built from
// AbstractResourceAllocator's contract plus UniformResourceAllocator's
// bucketing mechanics, generalised the way the __init__.py export
// implies: a sibling strategy sharing the same bucket/importance-factor
// machinery with a different sizing rule. The distinction is entirely
// in what the BucketSource sums into AggregateByBoundary - give
// Proportional a source that aggregates weight sums instead of counts.
type Proportional struct {
	*bucketedAllocator
}

// NewProportional constructs a Proportional allocator.
func NewProportional(source BucketSource, crawl types.Crawl, cfg BucketedConfig) *Proportional {
	return &Proportional{bucketedAllocator: newBucketedAllocator(source, crawl, cfg)}
}
