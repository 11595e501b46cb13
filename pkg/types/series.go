package types

import "time"

// AllocatorKind names the Resource Allocator strategy a Series uses to
// pick which targets to queue on each scheduling step.
type AllocatorKind string

const (
	AllocatorStatic       AllocatorKind = "static"
	AllocatorUniform      AllocatorKind = "uniform"
	AllocatorProportional AllocatorKind = "proportional"
)

// AllocatorConfig parameterises whichever Resource Allocator a Series
// selects. StepSize/StepPeriod drive the Scheduler's pacing loop;
// BucketTTL (a count of scheduling iterations, not a time span) and
// MinAllocation only matter for Uniform/Proportional.
type AllocatorConfig struct {
	Kind          AllocatorKind `json:"kind"`
	StepSize      int           `json:"step_size"`
	StepPeriod    time.Duration `json:"step_period"`
	BucketCount   int           `json:"bucket_count,omitempty"`
	BucketTTL     int           `json:"bucket_ttl,omitempty"`
	MinAllocation int           `json:"min_allocation,omitempty"`
}

// Series is the crawl template: the allocator strategy, the ordered
// stages every target passes through each crawl, and the filters that
// bound which targets this series considers.
type Series struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Allocator   AllocatorConfig `json:"allocator"`
	Stages      []Stage         `json:"stages"`

	// TagFilters are doublestar glob patterns a Target's tags must match
	// at least one of to be considered by this Series' allocator.
	TagFilters []string `json:"tag_filters,omitempty"`

	// CrawlSequence is the count of crawls ever started for this series,
	// used to derive each new Crawl's name.
	CrawlSequence int `json:"crawl_sequence"`
}

// NewCrawl starts the next Crawl for this series, incrementing the
// series' crawl sequence the way the original's Series.new_crawl does.
func (s *Series) NewCrawl() *Crawl {
	s.CrawlSequence++
	return NewCrawl(*s, s.CrawlSequence)
}

// StageByName returns the named stage definition, if present.
func (s Series) StageByName(name string) (Stage, bool) {
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return Stage{}, false
}
