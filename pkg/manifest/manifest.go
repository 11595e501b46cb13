// Package manifest provides loading and validation of Series and Stage
// manifests.
//
// A Series manifest is a YAML or JSON file that declares a crawl template:
// its Resource Allocator strategy, the tag filters bounding which targets
// it considers, and the ordered stages every target passes through each
// crawl. A Stage manifest declares one stage in isolation: the request
// signature dispatched per target, and the pipelines/terminators/callbacks
// that process its result.
//
// Manifests are validated against a JSON Schema to ensure correctness
// before a Series or Stage is registered. The schema enforces strict
// typing and disallows unknown properties.
//
// Example Series manifest (YAML):
//
//	version: "1.0"
//	name: play-store-daily
//	tag_filters:
//	  - "android/**"
//	allocator:
//	  kind: proportional
//	  step_size: 200
//	  step_period: 5m
//	  weight_path: "statistics__play-store-daily__fetch__weight"
//	stages:
//	  - fetch
//	  - detail
package manifest

import "time"

// SeriesManifest represents a validated Series declaration.
//
// A Series manifest configures everything a Series needs before its first
// Crawl can start: Version, Name, Allocator, and a non-empty Stages list are
// required. TagFilters defaults to empty, meaning "unfiltered".
type SeriesManifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	// Example: "https://schemas.kraken.dev/v1.0.0/series-manifest.schema.json"
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Name is the Series' human-readable name, used to derive each Crawl's
	// name ("<name>_<iteration>").
	Name string `json:"name" yaml:"name"`

	// Description documents the Series' purpose. Optional.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// TagFilters are doublestar glob patterns a Target's tags must match at
	// least one of to be considered by this Series. Empty matches every
	// Target.
	TagFilters []string `json:"tag_filters,omitempty" yaml:"tag_filters,omitempty"`

	// Allocator configures the Resource Allocator strategy this Series uses
	// to pick which targets to queue on each scheduling step.
	Allocator AllocatorManifestConfig `json:"allocator" yaml:"allocator"`

	// Stages names the Stage manifests (by name, resolved against the
	// caller's stage directory) that make up this Series' pipeline, in
	// execution order.
	Stages []string `json:"stages" yaml:"stages"`
}

// AllocatorManifestConfig configures whichever Resource Allocator a Series
// selects.
type AllocatorManifestConfig struct {
	// Kind selects the allocator strategy. Values: "static", "uniform",
	// "proportional".
	Kind string `json:"kind" yaml:"kind"`

	// StepSize is the number of targets queued per scheduling step.
	// Default: 100.
	StepSize int `json:"step_size,omitempty" yaml:"step_size,omitempty"`

	// StepPeriod is the interval between scheduling steps, as a Go
	// duration string (e.g. "30s", "5m"). Default: "1m".
	StepPeriod string `json:"step_period,omitempty" yaml:"step_period,omitempty"`

	// BucketCount is the number of weight buckets Uniform/Proportional
	// allocators divide the backlog into. Default: 10.
	BucketCount int `json:"bucket_count,omitempty" yaml:"bucket_count,omitempty"`

	// BucketTTL controls how long a bucket's boundaries are cached before
	// being recomputed, as a Go duration string. Only meaningful for
	// Uniform/Proportional. Default: "10m".
	BucketTTL string `json:"bucket_ttl,omitempty" yaml:"bucket_ttl,omitempty"`

	// MinAllocation is the minimum number of targets drawn from any
	// non-empty bucket, even if its proportional share rounds to zero.
	// Only meaningful for Uniform/Proportional. Default: 1.
	MinAllocation int `json:"min_allocation,omitempty" yaml:"min_allocation,omitempty"`

	// WeightPath is the mongokey-style dotted path (e.g.
	// "statistics__<series>__<stage>__weight" or "kwargs__price") resolved
	// against each Target to size Uniform/Proportional buckets. Required
	// for those two kinds; ignored for "static".
	WeightPath string `json:"weight_path,omitempty" yaml:"weight_path,omitempty"`
}

// Default values for optional Series manifest fields.
const (
	// DefaultSeriesVersion is the current Series manifest schema version.
	DefaultSeriesVersion = "1.0"

	// DefaultStepSize is the default number of targets queued per step.
	DefaultStepSize = 100

	// DefaultStepPeriod is the default interval between scheduling steps.
	DefaultStepPeriod = "1m"

	// DefaultBucketCount is the default number of weight buckets.
	DefaultBucketCount = 10

	// DefaultBucketTTL is the default bucket-boundary cache lifetime.
	DefaultBucketTTL = "10m"

	// DefaultMinAllocation is the default floor on targets drawn from a
	// non-empty bucket.
	DefaultMinAllocation = 1
)

// ApplyDefaults fills in default values for optional fields.
//
// This should be called after loading and validating the manifest to
// ensure all optional fields have sensible values.
func (m *SeriesManifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = DefaultSeriesVersion
	}
	if m.Allocator.StepSize == 0 {
		m.Allocator.StepSize = DefaultStepSize
	}
	if m.Allocator.StepPeriod == "" {
		m.Allocator.StepPeriod = DefaultStepPeriod
	}
	if m.Allocator.Kind == "uniform" || m.Allocator.Kind == "proportional" {
		if m.Allocator.BucketCount == 0 {
			m.Allocator.BucketCount = DefaultBucketCount
		}
		if m.Allocator.BucketTTL == "" {
			m.Allocator.BucketTTL = DefaultBucketTTL
		}
		if m.Allocator.MinAllocation == 0 {
			m.Allocator.MinAllocation = DefaultMinAllocation
		}
	}
}

// StepPeriodDuration parses StepPeriod, falling back to DefaultStepPeriod
// on an empty or malformed value.
func (a AllocatorManifestConfig) StepPeriodDuration() time.Duration {
	d, err := time.ParseDuration(a.StepPeriod)
	if err != nil {
		d, _ = time.ParseDuration(DefaultStepPeriod)
	}
	return d
}

// BucketTTLDuration parses BucketTTL, falling back to DefaultBucketTTL on
// an empty or malformed value.
func (a AllocatorManifestConfig) BucketTTLDuration() time.Duration {
	d, err := time.ParseDuration(a.BucketTTL)
	if err != nil {
		d, _ = time.ParseDuration(DefaultBucketTTL)
	}
	return d
}
