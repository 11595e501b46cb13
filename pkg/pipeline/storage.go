package pipeline

import (
	"context"
	"fmt"

	"github.com/kluhan/kraken/pkg/historic"
	"github.com/kluhan/kraken/pkg/types"
)

// DocumentFactory builds a historic.Document out of one raw result
// object. Mirrors the original's factory_task, which the data storage
// pipeline invokes synchronously (Signature.clone().apply(...).get())
// rather than submitting through the broker - so here it's a direct Go
// call, not a Dispatcher round trip.
type DocumentFactory func(ctx context.Context, raw map[string]any) (historic.Document, error)

// Weighted is implemented by documents that contribute to a stage's
// total weight beyond the default of zero. Mirrors
// HistoricDocument.weight() in the original, which subclasses override.
type Weighted interface {
	Weight() float64
}

// DataStorage runs the Data Storage Pipeline: it saves every document
// in result (unwrapping a batch if result.Batch is set) through
// historic.Save, retrying any factory failure up to three times, and
// aggregates new/updated/processed counts, per-model
// metrics, and total weight. Grounded on
// original_source/kraken/core/tasks/pipelines/data_storage_pipeline.py.
func DataStorage(ctx context.Context, store historic.Store, factory DocumentFactory, result types.RequestResult, crawl types.Crawl, models []historic.Model) (types.PipelineResult, error) {
	items := unwrapBatch(result)

	var newDocuments, updatedDocuments, totalChanges int
	metrics := map[string]any{}
	var weight float64

	for _, raw := range items {
		doc, err := buildDocumentWithRetry(ctx, factory, raw, 3)
		if err != nil {
			return types.PipelineResult{}, fmt.Errorf("pipeline: build document: %w", err)
		}

		isNew, changes, docMetrics, err := historic.Save(ctx, store, doc, crawl, models)
		if err != nil {
			return types.PipelineResult{}, fmt.Errorf("pipeline: save document: %w", err)
		}

		if isNew {
			newDocuments++
		}
		if changes > 0 {
			updatedDocuments++
		}
		totalChanges += changes
		metrics = addMetrics(metrics, docMetrics)

		if w, ok := doc.(Weighted); ok {
			weight += w.Weight()
		}
	}

	weightCopy := weight
	return types.PipelineResult{
		Statistics: map[string]any{
			"new_documents":       newDocuments,
			"updated_documents":   updatedDocuments,
			"processed_documents": len(items),
			"total_changes":       totalChanges,
		},
		Metrics: metrics,
		Weight:  &weightCopy,
	}, nil
}

func unwrapBatch(result types.RequestResult) []map[string]any {
	if !result.Batch {
		if m, ok := result.Result.(map[string]any); ok {
			return []map[string]any{m}
		}
		return nil
	}
	list, ok := result.Result.([]map[string]any)
	if ok {
		return list
	}
	if anyList, ok := result.Result.([]any); ok {
		out := make([]map[string]any, 0, len(anyList))
		for _, item := range anyList {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func buildDocumentWithRetry(ctx context.Context, factory DocumentFactory, raw map[string]any, maxRetries int) (historic.Document, error) {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var doc historic.Document
		doc, err = factory(ctx, raw)
		if err == nil {
			return doc, nil
		}
	}
	return nil, err
}

func addMetrics(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		if av, ok := out[k]; ok {
			out[k] = sumAny(av, bv)
		} else {
			out[k] = bv
		}
	}
	return out
}

func sumAny(a, b any) any {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af + bf
	}
	return b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
