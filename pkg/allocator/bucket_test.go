package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBoundaries(t *testing.T) {
	bounds := DefaultBoundaries(4)
	assert.Equal(t, []float64{0, 1, 2, 4}, bounds)
}

func TestDefaultImportanceFactors(t *testing.T) {
	factors := DefaultImportanceFactors(3)
	assert.InDelta(t, 1.0, factors[0], 1e-9)
	assert.InDelta(t, 1.4142135, factors[1], 1e-6)
	assert.InDelta(t, 1.7320508, factors[2], 1e-6)
}

func TestBuildBuckets_SkipsEmptyIntervalsAndNormalises(t *testing.T) {
	boundaries := []float64{0, 1, 2, 4, 8}
	factors := DefaultImportanceFactors(4)
	// Interval index 1 ([1,2)) is empty and should be skipped; upper
	// bounds/importance factors are assigned by position among the
	// surviving buckets, not by boundary index.
	sizes := map[int]float64{0: 10, 2: 5, 3: 1}

	buckets := buildBuckets(boundaries, factors, sizes)
	if assert.Len(t, buckets, 3) {
		assert.Equal(t, 0.0, buckets[0].LowerBound)
		assert.Equal(t, 2.0, buckets[0].UpperBound)
		assert.Equal(t, 2.0, buckets[1].LowerBound)
		assert.Equal(t, 4.0, buckets[1].UpperBound)
		assert.Equal(t, 4.0, buckets[2].LowerBound)
		assert.Equal(t, 8.0, buckets[2].UpperBound)

		var total float64
		for _, b := range buckets {
			total += b.Weight
			assert.True(t, b.Normalised)
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
}

func TestAllocationSize_FloorsAtMinAllocation(t *testing.T) {
	assert.Equal(t, 1, allocationSize(1000, 0.0001, 1))
	assert.Equal(t, 500, allocationSize(1000, 0.5, 1))
}
