package types

// Bucket is one size-range partition of the Uniform/Proportional
// Resource Allocator's bucketing scheme: a lower bound (the exponent
// boundary), an importance factor, and the weight derived from it.
type Bucket struct {
	Index            int     `json:"index"`
	LowerBound       float64 `json:"lower_bound"`
	UpperBound       float64 `json:"upper_bound"`
	ImportanceFactor float64 `json:"importance_factor"`

	// AbsoluteSize is the sum of whatever the allocator's weighting
	// function assigns to every target currently in this bucket.
	AbsoluteSize float64 `json:"absolute_size"`

	// Weight is ImportanceFactor * AbsoluteSize, populated once per
	// recompute and consumed by the one-shot normalisation pass.
	Weight float64 `json:"weight"`

	// Normalised is true once this bucket's Weight has been divided by
	// the total across all buckets; normalising twice is an error.
	Normalised bool `json:"-"`
}
