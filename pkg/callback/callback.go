// Package callback implements the Target Monitor Callback: after a
// Stage finishes, it folds the Stage's accumulated progress into the
// corresponding Target's series/stage-scoped statistics bundle.
// Grounded on
// original_source/kraken/core/tasks/callbacks/target_monitor_callback.py.
package callback

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/types"
)

// Store is the subset of the Metadata Store the Target Monitor
// Callback needs: resolving a Crawl's parent Series, and folding a
// finished Stage's progress into its Target.
type Store interface {
	LoadCrawl(ctx context.Context, id string) (*types.Crawl, error)
	UpdateTargetStatistics(ctx context.Context, targetID, seriesID, stageName string, progress types.StageResult, at time.Time) error
}

// Handler adapts the Target Monitor Callback into a dispatch.Handler,
// registered under the callback.* prefix. It decodes the stage/crawl_id
// kwargs the Stage Processor's executeCallbacks clones onto every
// callback Signature, resolves the owning series through the Crawl, and
// persists the update. final_stage is accepted but unused, mirroring
// the original task's own unused parameter.
func Handler(store Store) dispatch.Handler {
	return func(ctx context.Context, sig types.Signature) (map[string]any, error) {
		stage, err := decodeStage(sig.Kwargs["stage"])
		if err != nil {
			return nil, err
		}
		crawlID, _ := sig.Kwargs["crawl_id"].(string)

		crawl, err := store.LoadCrawl(ctx, crawlID)
		if err != nil {
			return nil, err
		}

		targetID := ""
		if stage.Target.ID != nil {
			targetID = *stage.Target.ID
		}

		if err := store.UpdateTargetStatistics(ctx, targetID, crawl.SeriesID, stage.Name, stage.Progress, time.Now().UTC()); err != nil {
			return nil, err
		}
		return map[string]any{"updated": true}, nil
	}
}

func decodeStage(v any) (types.Stage, error) {
	if stage, ok := v.(types.Stage); ok {
		return stage, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return types.Stage{}, err
	}
	var stage types.Stage
	if err := json.Unmarshal(raw, &stage); err != nil {
		return types.Stage{}, err
	}
	return stage, nil
}
