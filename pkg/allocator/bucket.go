package allocator

import (
	"math"

	"github.com/kluhan/kraken/pkg/types"
)

// DefaultBoundaries reproduces UniformResourceAllocator's default
// bucket edges: 0, then powers of two up to 2^(bucketCount-2). A
// bucketCount of 64 (the original's default) yields boundaries from 0
// up to 2^62 (about 4.6e18).
func DefaultBoundaries(bucketCount int) []float64 {
	bounds := make([]float64, 0, bucketCount)
	bounds = append(bounds, 0)
	for x := 0; x < bucketCount-1; x++ {
		bounds = append(bounds, math.Pow(2, float64(x)))
	}
	return bounds
}

// DefaultImportanceFactors reproduces the default [sqrt(1)..sqrt(n)]
// weighting that favours larger (heavier) buckets without letting
// them dominate linearly.
func DefaultImportanceFactors(bucketCount int) []float64 {
	factors := make([]float64, bucketCount)
	for k := 0; k < bucketCount; k++ {
		factors[k] = math.Sqrt(float64(k + 1))
	}
	return factors
}

func maxOf(values []float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// buildBuckets turns per-boundary sizes into the ordered, normalised
// bucket list the allocator draws from. Empty boundary intervals are
// dropped, the same way MongoDB's $bucket only emits non-empty
// groups - so importance factors and upper bounds are assigned by
// position among the SURVIVING buckets, not by boundary index,
// exactly as uniform_resource_allocator.py's
// zip(enumerate(db_buckets), importance_factors) does.
func buildBuckets(boundaries, importanceFactors []float64, sizeByIndex map[int]float64) []types.Bucket {
	kept := make([]int, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		if sizeByIndex[i] > 0 {
			kept = append(kept, i)
		}
	}

	buckets := make([]types.Bucket, 0, len(kept))
	for k, i := range kept {
		upper := maxOf(boundaries)
		if k+1 < len(kept) {
			upper = boundaries[kept[k+1]]
		}
		factor := 1.0
		if k < len(importanceFactors) {
			factor = importanceFactors[k]
		}
		size := sizeByIndex[i]
		buckets = append(buckets, types.Bucket{
			Index:            k,
			LowerBound:       boundaries[i],
			UpperBound:       upper,
			ImportanceFactor: factor,
			AbsoluteSize:     size,
			Weight:           factor * size,
		})
	}

	normaliseBuckets(buckets)
	return buckets
}

// normaliseBuckets divides every bucket's weight by the sum across
// all of them, mirroring Bucket.normalise(sum(weights)). A nil or
// all-zero-weight set is left untouched to avoid dividing by zero.
func normaliseBuckets(buckets []types.Bucket) {
	var total float64
	for _, b := range buckets {
		total += b.Weight
	}
	if total == 0 {
		return
	}
	for i := range buckets {
		buckets[i].Weight /= total
		buckets[i].Normalised = true
	}
}

// allocationSize returns how many targets a normalised bucket should
// draw this step: step_size * allocated_resources, rounded, floored
// at minAllocation so a thin bucket never starves entirely. Mirrors
// Bucket.allocate's `max(min_allocation, round(step_size *
// self.allocated_resources))`.
func allocationSize(stepSize int, weight float64, minAllocation int) int {
	n := int(math.Round(float64(stepSize) * weight))
	if n < minAllocation {
		n = minAllocation
	}
	return n
}
