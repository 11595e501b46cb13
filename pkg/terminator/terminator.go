// Package terminator implements the pure predicates that decide when a
// Stage Processor should stop driving a target's Spider further:
// Static (processed-count ceiling), Overlap (re-seen-document
// ceiling), and Budget (a freshness-model-weighted spend ceiling).
// Grounded on original_source/kraken/core/tasks/terminators/*.py.
package terminator

import (
	"github.com/kluhan/kraken/pkg/pipeline"
	"github.com/kluhan/kraken/pkg/types"
)

// Terminator is a predicate over a Stage's running progress. It
// returns true once the stage should stop issuing further requests.
type Terminator func(progress types.StageResult) bool

// Static terminates a stage once the data storage pipeline has
// processed at least limit documents. Mirrors static_terminator.py.
func Static(limit int) Terminator {
	return func(progress types.StageResult) bool {
		processed := statisticInt(progress, pipeline.DataStoragePipelineName, "processed_documents")
		return processed >= limit
	}
}

// Overlap terminates a stage once the number of re-seen (not-new)
// documents reaches overlap, signalling the crawl has caught up with
// previously known state. Mirrors overlap_terminator.py.
func Overlap(overlap int) Terminator {
	return func(progress types.StageResult) bool {
		newDocs := statisticInt(progress, pipeline.DataStoragePipelineName, "new_documents")
		processed := statisticInt(progress, pipeline.DataStoragePipelineName, "processed_documents")
		return (processed - newDocs) >= overlap
	}
}

// Budget terminates a stage once its spent budget (processed documents
// times budgetDec) exceeds its acquired budget (a base allowance plus
// budgetInc for every unit of the named freshness model's observed
// value). Mirrors budget_terminator.py; model defaults to "bfm" there,
// callers pass whichever model name their historic metrics use.
func Budget(budget, budgetInc, budgetDec int, model string) Terminator {
	return func(progress types.StageResult) bool {
		modelValue := statisticFloat(progress, pipeline.DataStoragePipelineName, model)
		acquired := float64(budget) + modelValue*float64(budgetInc)
		processed := statisticInt(progress, pipeline.DataStoragePipelineName, "processed_documents")
		spent := float64(processed) * float64(budgetDec)
		return spent > acquired
	}
}

func statisticInt(progress types.StageResult, pipelineName, key string) int {
	return int(statisticFloat(progress, pipelineName, key))
}

func statisticFloat(progress types.StageResult, pipelineName, key string) float64 {
	result, ok := progress.PipelineResults[pipelineName]
	if !ok {
		return 0
	}
	v, ok := result.Statistics[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
