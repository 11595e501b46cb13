package types

// RequestResult is one item yielded by a Spider: the payload fetched
// for a target (Result), optional continuation kwargs for the next
// request to the same target, and bookkeeping the Stage Processor and
// Target Discovery Pipeline need (cost/gain accounting, adjacent
// targets discovered along the way, and not-found/exhausted signals).
type RequestResult struct {
	// Result is the raw result of the request: either a single object
	// or a batch of them, distinguished by Batch.
	Result any `json:"result"`

	// SubsequentKwargs, if non-nil, are the updated kwargs the Spider
	// should merge in and use for the next request to the same target -
	// typically a pagination cursor. A nil value ends the sequence.
	SubsequentKwargs map[string]any `json:"subsequent_kwargs,omitempty"`

	// Batch reports whether Result is a slice of result objects rather
	// than a single one.
	Batch bool `json:"batch"`

	// Gain is usually the number of documents retrieved by the request;
	// Cost is usually the number of requests performed, win or lose.
	Gain int `json:"gain"`
	Cost int `json:"cost"`

	// TargetNotFound signals the target itself no longer resolves
	// (e.g. a 404), distinct from TargetExhausted (pagination ended).
	TargetNotFound bool `json:"target_not_found"`

	// TargetExhausted signals the last page of a paginated collection
	// was reached. nil means "not applicable" as opposed to false
	// meaning "known not exhausted".
	TargetExhausted *bool `json:"target_exhausted,omitempty"`

	// AdjacentTargets are SlimTargets the Target Discovery Pipeline can
	// construct from this result, fed into the pipeline's merge step.
	AdjacentTargets []SlimTarget `json:"adjacent_targets,omitempty"`
}

// Done reports whether this result is the last one for its target: the
// target was not found, or no further continuation kwargs were given.
func (r RequestResult) Done() bool {
	return r.TargetNotFound || r.SubsequentKwargs == nil
}
