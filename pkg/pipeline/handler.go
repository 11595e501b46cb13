package pipeline

import (
	"context"
	"encoding/json"

	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/historic"
	"github.com/kluhan/kraken/pkg/types"
)

// DataStorageHandler adapts DataStorage into a dispatch.Handler
// registered under a pipeline.* task name, decoding the request_result/
// crawl_id kwargs the Stage Processor's __execute_pipelines clones onto
// every pipeline Signature it submits.
func DataStorageHandler(store historic.Store, factory DocumentFactory, models []historic.Model) dispatch.Handler {
	return func(ctx context.Context, sig types.Signature) (map[string]any, error) {
		result, err := decodeRequestResult(sig.Kwargs["request_result"])
		if err != nil {
			return nil, err
		}
		crawl := decodeCrawl(sig.Kwargs["crawl_id"])
		pr, err := DataStorage(ctx, store, factory, result, crawl, models)
		if err != nil {
			return nil, err
		}
		return encodePipelineResult(pr)
	}
}

// TargetDiscoveryHandler adapts TargetDiscovery into a dispatch.Handler
// the same way.
func TargetDiscoveryHandler(store TargetStore, defaults []types.SlimTarget) dispatch.Handler {
	return func(ctx context.Context, sig types.Signature) (map[string]any, error) {
		result, err := decodeRequestResult(sig.Kwargs["request_result"])
		if err != nil {
			return nil, err
		}
		crawlID, _ := sig.Kwargs["crawl_id"].(string)
		pr, err := TargetDiscovery(ctx, store, result, defaults, crawlID)
		if err != nil {
			return nil, err
		}
		return encodePipelineResult(pr)
	}
}

func decodeCrawl(crawlID any) types.Crawl {
	id, _ := crawlID.(string)
	return types.Crawl{ID: id}
}

func decodeRequestResult(v any) (types.RequestResult, error) {
	if rr, ok := v.(types.RequestResult); ok {
		return rr, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return types.RequestResult{}, err
	}
	var rr types.RequestResult
	if err := json.Unmarshal(raw, &rr); err != nil {
		return types.RequestResult{}, err
	}
	return rr, nil
}

func encodePipelineResult(pr types.PipelineResult) (map[string]any, error) {
	raw, err := json.Marshal(pr)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
