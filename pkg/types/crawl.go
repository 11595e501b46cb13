package types

import (
	"fmt"
	"time"
)

// CrawlStatus is the lifecycle state of a Crawl.
type CrawlStatus string

const (
	CrawlStatusRunning   CrawlStatus = "running"
	CrawlStatusFinished  CrawlStatus = "finished"
	CrawlStatusAborted   CrawlStatus = "aborted"
)

// Crawl is one iteration of a Series: a point-in-time run over whatever
// targets the Series' allocator selects, with its own counters and
// naming derived from the parent Series.
type Crawl struct {
	ID         string      `json:"id"`
	SeriesID   string      `json:"series_id"`
	Name       string      `json:"name"`
	Iteration  int         `json:"iteration"`
	Status     CrawlStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    *time.Time  `json:"ended_at,omitempty"`

	// Stages is a snapshot of the parent Series' stage definitions taken
	// at crawl creation, so a Series edited mid-crawl doesn't retroactively
	// change a crawl already in flight.
	Stages []Stage `json:"stages"`

	// TagFilters is a snapshot of the parent Series' filters, for the
	// same reason Stages is snapshotted.
	TagFilters []string `json:"tag_filters,omitempty"`

	// Expectations carries whatever seed statistics the Scheduler copied
	// in from Target.LatestStatistics when queuing, for progress
	// comparisons against this crawl's actual results.
	Expectations map[string]any `json:"expectations,omitempty"`

	// Counters, incremented atomically by the store as work completes.
	Submitted int64 `json:"submitted"`
	Finished  int64 `json:"finished"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
}

// NewCrawl derives a Crawl from its parent Series, naming it
// "<series.Name>_<iteration>" the way the original's Series.new_crawl
// derives a human-readable, monotonically distinguishable crawl name.
func NewCrawl(series Series, iteration int) *Crawl {
	now := time.Now().UTC()
	return &Crawl{
		SeriesID:   series.ID,
		Name:       fmt.Sprintf("%s_%d", series.Name, iteration),
		Iteration:  iteration,
		Status:     CrawlStatusRunning,
		CreatedAt:  now,
		StartedAt:  now,
		Stages:     append([]Stage{}, series.Stages...),
		TagFilters: append([]string{}, series.TagFilters...),
	}
}

// Backpressure is the count of submitted tasks that have neither
// finished nor failed. The Scheduler does not read it; its pacing comes
// from StepPeriod and RateLimit.
func (c Crawl) Backpressure() int64 {
	return c.Submitted - c.Finished - c.Failed
}

// Finish marks the crawl ended, recording the end timestamp and final
// status.
func (c *Crawl) Finish(status CrawlStatus) {
	now := time.Now().UTC()
	c.EndedAt = &now
	c.Status = status
}
