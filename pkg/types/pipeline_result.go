package types

// PipelineResult is the output of one pipeline invocation: an optional
// weight, plus statistics and metrics maps. Addition of PipelineResults
// must be associative and commutative (see invariant 4 in spec.md §8);
// None/absent is identity.
type PipelineResult struct {
	Weight     *float64       `json:"weight,omitempty"`
	Statistics map[string]any `json:"statistics"`
	Metrics    map[string]any `json:"metrics"`
}

// AddPipelineResults combines two PipelineResults using the addition
// law from spec.md §4.5: statistics/metrics add recursively per-key
// (nil is identity, numeric+numeric otherwise), weight is nil+x=x else
// numeric sum.
func AddPipelineResults(a, b PipelineResult) PipelineResult {
	return PipelineResult{
		Statistics: combineByAddition(a.Statistics, b.Statistics),
		Metrics:    combineByAddition(a.Metrics, b.Metrics),
		Weight:     addWeights(a.Weight, b.Weight),
	}
}

// CombineByAddition exposes the same per-key recursive addition
// PipelineResult.Statistics/Metrics use, for callers (the Scheduler's
// expectations aggregation) that add together plain maps rather than
// whole PipelineResults.
func CombineByAddition(a, b map[string]any) map[string]any {
	return combineByAddition(a, b)
}

func addWeights(a, b *float64) *float64 {
	if a == nil && b == nil {
		return nil
	}
	var sum float64
	if a != nil {
		sum += *a
	}
	if b != nil {
		sum += *b
	}
	return &sum
}

// combineByAddition recursively adds two maps per-key. A missing key or
// a nil value is identity; two nested maps add recursively; two numbers
// add; otherwise the right-hand value wins (matching the original's
// permissive combine_dicts_by_addition on non-numeric leaves).
func combineByAddition(a, b map[string]any) map[string]any {
	if a == nil && b == nil {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, exists := out[k]
		if !exists || av == nil {
			out[k] = bv
			continue
		}
		if bv == nil {
			continue
		}
		out[k] = addValues(av, bv)
	}
	return out
}

func addValues(a, b any) any {
	if am, ok := a.(map[string]any); ok {
		if bm, ok := b.(map[string]any); ok {
			return combineByAddition(am, bm)
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af + bf
	}
	// Non-numeric, non-map leaves: last writer wins, as in the source's
	// dict.update fallback.
	return b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
