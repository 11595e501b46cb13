package pipeline

import (
	"context"
	"fmt"

	"github.com/kluhan/kraken/internal/kerrors"
	"github.com/kluhan/kraken/pkg/types"
)

// TargetStore is the subset of the Metadata Store the Target Discovery
// Pipeline needs: check whether a target with the given kwargs already
// exists, and insert a newly discovered one. Insert is expected to
// enforce the kwargs uniqueness constraint and return a
// kerrors.UniquenessRaceError (not a hard failure) when a concurrent
// writer won the race for the same kwargs.
type TargetStore interface {
	Exists(ctx context.Context, kwargs map[string]any) (bool, error)
	Insert(ctx context.Context, target *types.Target) error
}

// TargetDiscovery runs the Target Discovery Pipeline's SlimTarget
// variant: every adjacent target carried on result is merged against
// every entry in defaults (the Cartesian product the original's
// itertools.product(targets_kwargs, target_defaults) produces), deduped
// by kwargs, and inserted if not already known. A losing uniqueness
// race is not an error - it just means another worker discovered the
// same target first, so the pipeline's counts are an overestimate by
// design: checked_targets counts candidates considered, not targets
// that ended up unique. Only the SlimTarget/adjacent_targets contract
// is implemented; the original's dict-based target_field variant
// (target_discovery_pipeline.py's raw_document[target_field] path) is
// not ported, per this repository's Open Question decision.
func TargetDiscovery(ctx context.Context, store TargetStore, result types.RequestResult, defaults []types.SlimTarget, crawlID string) (types.PipelineResult, error) {
	if len(defaults) == 0 {
		defaults = []types.SlimTarget{{}}
	}

	merged := make([]types.SlimTarget, 0, len(result.AdjacentTargets)*len(defaults))
	for _, adjacent := range result.AdjacentTargets {
		for _, def := range defaults {
			candidate, err := types.MergeSlimTargets(def, adjacent)
			if err != nil {
				return types.PipelineResult{}, fmt.Errorf("pipeline: merge adjacent target: %w", err)
			}
			merged = append(merged, candidate)
		}
	}
	deduped := dedupeByKwargs(merged)

	newTargets := 0
	for _, candidate := range deduped {
		exists, err := store.Exists(ctx, candidate.Kwargs)
		if err != nil {
			return types.PipelineResult{}, fmt.Errorf("pipeline: check target existence: %w", err)
		}
		if exists {
			continue
		}

		target := types.NewTarget(candidate.Kwargs, candidate.Tags)
		target.DiscoveredBy = crawlID
		if err := store.Insert(ctx, target); err != nil {
			if kerrors.IsUniquenessRace(err) {
				continue
			}
			return types.PipelineResult{}, fmt.Errorf("pipeline: insert target: %w", err)
		}
		newTargets++
	}

	return types.PipelineResult{
		Statistics: map[string]any{
			"new_targets":     newTargets,
			"checked_targets": len(result.AdjacentTargets) * len(defaults),
		},
	}, nil
}

func dedupeByKwargs(targets []types.SlimTarget) []types.SlimTarget {
	seen := make(map[string]struct{}, len(targets))
	out := make([]types.SlimTarget, 0, len(targets))
	for _, t := range targets {
		key := fmt.Sprintf("%v", t.Kwargs)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
