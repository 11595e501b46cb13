// Package types holds the plain data model shared across the scheduling,
// execution, and historisation engine: Target, Series, Crawl, Stage,
// ExecutionToken, RequestResult, PipelineResult and Bucket.
package types

import "time"

// HistoricValue is one timestamped observation of a statistic field.
type HistoricValue struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Statistic holds the current values of one Stage's progress for one
// Target, plus the append-only history behind each field.
type Statistic struct {
	Cost    int64          `json:"cost"`
	Gain    int64          `json:"gain"`
	Weight  float64        `json:"weight"`
	Metrics map[string]int `json:"metrics"`
	Result  map[string]any `json:"result"`

	CostHistory    []HistoricValue              `json:"cost_history,omitempty"`
	GainHistory    []HistoricValue              `json:"gain_history,omitempty"`
	WeightHistory  []HistoricValue              `json:"weight_history,omitempty"`
	MetricsHistory map[string][]HistoricValue   `json:"metrics_history,omitempty"`
	ResultHistory  []HistoricValue              `json:"result_history,omitempty"`
}

// Latest returns the current (non-history) values of the statistic, the
// Go equivalent of the original's Statistic.latest().
func (s Statistic) Latest() Statistic {
	return Statistic{
		Cost:    s.Cost,
		Gain:    s.Gain,
		Weight:  s.Weight,
		Metrics: s.Metrics,
		Result:  s.Result,
	}
}

// Target is a crawlable entity uniquely identified by its Kwargs.
type Target struct {
	ID           string         `json:"id"`
	Tags         []string       `json:"tags"`
	Kwargs       map[string]any `json:"kwargs"`
	DiscoveredBy string         `json:"discovered_by,omitempty"`
	DiscoveredAt time.Time      `json:"discovered_at"`

	// Statistics[seriesID][stageName] holds the running statistic for
	// that Stage of that Series.
	Statistics map[string]map[string]Statistic `json:"statistics"`

	// Queued[seriesID] and Processed[seriesID] are append-only timestamp
	// sequences, one per Series the Target participates in.
	Queued    map[string][]time.Time `json:"queued"`
	Processed map[string][]time.Time `json:"processed"`

	// QueuedByCrawl[crawlName] is the Uniform/Proportional allocators'
	// own append-only queued timestamp sequence, keyed by crawl name
	// rather than series ID - kept as a distinct field from Queued per
	// this repository's Open Question decision that both path
	// conventions are maintained in parallel rather than reconciled.
	QueuedByCrawl map[string][]time.Time `json:"queued_by_crawl,omitempty"`
}

// NewTarget constructs a Target with initialised maps, mirroring the
// mongoengine document's zero-value defaults.
func NewTarget(kwargs map[string]any, tags []string) *Target {
	return &Target{
		Tags:         append([]string{}, tags...),
		Kwargs:       kwargs,
		DiscoveredAt: time.Now().UTC(),
		Statistics:   map[string]map[string]Statistic{},
		Queued:        map[string][]time.Time{},
		Processed:     map[string][]time.Time{},
		QueuedByCrawl: map[string][]time.Time{},
	}
}

// Slim projects the Target down to a SlimTarget for crossing task
// boundaries without metadata.
func (t *Target) Slim() SlimTarget {
	tags := make([]string, len(t.Tags))
	copy(tags, t.Tags)
	kwargs := make(map[string]any, len(t.Kwargs))
	for k, v := range t.Kwargs {
		kwargs[k] = v
	}
	id := t.ID
	return SlimTarget{ID: &id, Tags: tags, Kwargs: kwargs}
}

// LatestStatistics returns the current (non-history) statistic for one
// stage of one series, mirroring Target.latest_statistics(series_id,
// stage_name) in the original source.
func (t *Target) LatestStatistics(seriesID, stageName string) (Statistic, bool) {
	stage, ok := t.Statistics[seriesID]
	if !ok {
		return Statistic{}, false
	}
	stat, ok := stage[stageName]
	if !ok {
		return Statistic{}, false
	}
	return stat.Latest(), true
}

// LatestStatisticsForSeries returns the current statistics for every
// stage of one series, mirroring Target.latest_statistics(series_id)
// without a stage_name.
func (t *Target) LatestStatisticsForSeries(seriesID string) map[string]Statistic {
	out := map[string]Statistic{}
	for name, stat := range t.Statistics[seriesID] {
		out[name] = stat.Latest()
	}
	return out
}

// LastQueued returns the most recent queued timestamp for a series, and
// whether the Target has ever been queued for it.
func (t *Target) LastQueued(seriesID string) (time.Time, bool) {
	ts := t.Queued[seriesID]
	if len(ts) == 0 {
		return time.Time{}, false
	}
	return ts[len(ts)-1], true
}

// LastQueuedByCrawl returns the most recent queued-by-crawl timestamp
// for crawlName, and whether the Target has ever been queued under it.
func (t *Target) LastQueuedByCrawl(crawlName string) (time.Time, bool) {
	ts := t.QueuedByCrawl[crawlName]
	if len(ts) == 0 {
		return time.Time{}, false
	}
	return ts[len(ts)-1], true
}

// SlimTarget is the transport projection of a Target used to pass
// identity across task boundaries without its metadata.
type SlimTarget struct {
	ID     *string        `json:"id,omitempty"`
	Tags   []string       `json:"tags"`
	Kwargs map[string]any `json:"kwargs"`
}

// Update merges other into t in place: tags union, kwargs right-biased.
// Mirrors SlimTarget.update in the original source. It is an error for
// other to carry an ID, since update is for enriching a target with
// untrusted additional data, not for re-identifying it.
func (t *SlimTarget) Update(other SlimTarget) error {
	if other.ID != nil {
		return errSlimTargetUpdateWithID
	}
	t.Tags = unionStrings(t.Tags, other.Tags)
	if t.Kwargs == nil {
		t.Kwargs = map[string]any{}
	}
	for k, v := range other.Kwargs {
		t.Kwargs[k] = v
	}
	return nil
}

// MergeSlimTargets combines a and b into a new SlimTarget. kwargs keys
// in b override a; tag sets union; IDs must agree when both are set.
func MergeSlimTargets(a, b SlimTarget) (SlimTarget, error) {
	if a.ID != nil && b.ID != nil && *a.ID != *b.ID {
		return SlimTarget{}, errSlimTargetMergeConflictingIDs
	}
	id := a.ID
	if id == nil {
		id = b.ID
	}
	kwargs := make(map[string]any, len(a.Kwargs)+len(b.Kwargs))
	for k, v := range a.Kwargs {
		kwargs[k] = v
	}
	for k, v := range b.Kwargs {
		kwargs[k] = v
	}
	return SlimTarget{
		ID:     id,
		Tags:   unionStrings(a.Tags, b.Tags),
		Kwargs: kwargs,
	}, nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
