package types

// TerminatorKey names used in StageResult.TerminatedBy for natural
// (non-predicate) terminations, per spec.md §4.4 step 2d.
const (
	TerminatorKeyTargetNotFound  = "target_not_found"
	TerminatorKeyTargetExhausted = "target_exhausted"
)

// StageResult is the running progress of a Stage: accumulated cost and
// gain, the per-pipeline results aggregated by name, and which
// terminators (if any) have fired.
type StageResult struct {
	Cost             int64                     `json:"cost"`
	Gain             int64                     `json:"gain"`
	PipelineResults  map[string]PipelineResult `json:"pipeline_results"`
	TerminatedBy     map[string]bool           `json:"terminated_by"`
}

// NewStageResult returns a zero-value StageResult with initialised maps.
func NewStageResult() StageResult {
	return StageResult{
		PipelineResults: map[string]PipelineResult{},
		TerminatedBy:    map[string]bool{},
	}
}

// Terminated reports whether any terminator (predicate or natural) has
// fired for this stage's progress.
func (r StageResult) Terminated() bool {
	for _, v := range r.TerminatedBy {
		if v {
			return true
		}
	}
	return false
}

// Stage is one unit of work per target: a request signature, the
// target injected by the Scheduler, the pipelines/terminators/callbacks
// to run, and the Stage's running progress.
type Stage struct {
	Name        string      `json:"name"`
	Request     Signature   `json:"request"`
	Target      SlimTarget  `json:"target"`
	Pipelines   []Signature `json:"pipelines"`
	Terminators []Signature `json:"terminators"`
	Callbacks   []Signature `json:"callbacks"`
	Progress    StageResult `json:"progress"`
}

// Clone returns a deep-enough copy of the Stage suitable for injecting
// a per-target SlimTarget without mutating the Series/Crawl blueprint.
func (s Stage) Clone() Stage {
	clone := s
	clone.Pipelines = append([]Signature{}, s.Pipelines...)
	clone.Terminators = append([]Signature{}, s.Terminators...)
	clone.Callbacks = append([]Signature{}, s.Callbacks...)
	clone.Progress = NewStageResult()
	return clone
}
