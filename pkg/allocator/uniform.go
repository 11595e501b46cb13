package allocator

import "github.com/kluhan/kraken/pkg/types"

// Uniform partitions targets into exponential-size buckets by a
// weight field and draws from each bucket in proportion to
// importance_factor * target_count, so a handful of buckets holding
// most of the mass don't starve the rest. Mirrors
// uniform_resource_allocator.py; the BucketSource it's given should
// size each bucket by target count.
type Uniform struct {
	*bucketedAllocator
}

// NewUniform constructs a Uniform allocator.
func NewUniform(source BucketSource, crawl types.Crawl, cfg BucketedConfig) *Uniform {
	return &Uniform{bucketedAllocator: newBucketedAllocator(source, crawl, cfg)}
}
