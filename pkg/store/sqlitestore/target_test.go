package sqlitestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kluhan/kraken/pkg/types"
)

func insertTarget(t *testing.T, s *Store, appID string, tags []string) *types.Target {
	t.Helper()
	target := types.NewTarget(map[string]any{"app_id": appID}, tags)
	require.NoError(t, s.Insert(context.Background(), target))
	return target
}

func TestFetchUnqueuedBatch_NeverQueuedFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := insertTarget(t, s, "old", nil)
	require.NoError(t, s.MarkTargetQueued(ctx, "series-1", old.ID, time.Now().UTC().Add(-time.Hour)))
	fresh := insertTarget(t, s, "fresh", nil)
	require.NoError(t, s.MarkTargetQueued(ctx, "series-1", fresh.ID, time.Now().UTC()))
	neverQueued := insertTarget(t, s, "never", nil)

	since := time.Now().UTC().Add(-30 * time.Minute)
	batch, err := s.FetchUnqueuedBatch(ctx, "series-1", since, nil, 10)
	require.NoError(t, err)

	ids := make([]string, len(batch))
	for i, target := range batch {
		ids[i] = target.ID
	}
	assert.Contains(t, ids, old.ID, "queued before the crawl started must be included")
	assert.Contains(t, ids, neverQueued.ID)
	assert.NotContains(t, ids, fresh.ID, "queued after since must be excluded")
	assert.Equal(t, neverQueued.ID, ids[0], "never-queued targets come first")
}

func TestFetchUnqueuedBatch_RespectsTagFiltersAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertTarget(t, s, "a", []string{"android/com.a"})
	insertTarget(t, s, "b", []string{"android/com.b"})
	insertTarget(t, s, "c", []string{"ios/com.c"})

	batch, err := s.FetchUnqueuedBatch(ctx, "series-1", time.Now(), []string{"android/*"}, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	limited, err := s.FetchUnqueuedBatch(ctx, "series-1", time.Now(), []string{"android/*"}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFetchUnqueuedBatch_EmptyWhenBacklogDrained(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch, err := s.FetchUnqueuedBatch(ctx, "series-1", time.Now(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestMergeTargetTags_AddsNewTagsOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target := insertTarget(t, s, "merge", []string{"daily"})
	require.NoError(t, s.MergeTargetTags(ctx, target.Kwargs, []string{"daily", "weekly"}))

	reloaded, err := s.loadTargetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"daily", "weekly"}, reloaded.Tags)
}

func TestMergeTargetTags_NotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.MergeTargetTags(context.Background(), map[string]any{"app_id": "missing"}, []string{"x"})
	assert.Error(t, err)
}

func TestUpdateTargetStatistics_FoldsProgressAndAppendsHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target := insertTarget(t, s, "stats", nil)
	weight := 1.5
	progress := types.StageResult{
		Cost: 4,
		Gain: 9,
		PipelineResults: map[string]types.PipelineResult{
			"storage": {
				Weight:  &weight,
				Metrics: map[string]any{"new_documents": 3},
			},
		},
	}
	at := time.Now().UTC()
	require.NoError(t, s.UpdateTargetStatistics(ctx, target.ID, "series-1", "detail", progress, at))

	reloaded, err := s.loadTargetByID(ctx, target.ID)
	require.NoError(t, err)
	stat := reloaded.Statistics["series-1"]["detail"]
	assert.Equal(t, int64(4), stat.Cost)
	assert.Equal(t, int64(9), stat.Gain)
	assert.Equal(t, 1.5, stat.Weight)
	assert.Equal(t, 3, stat.Metrics["new_documents"])
	assert.Len(t, stat.CostHistory, 1)
	assert.Len(t, reloaded.Processed["series-1"], 1)

	require.NoError(t, s.UpdateTargetStatistics(ctx, target.ID, "series-1", "detail", progress, at.Add(time.Minute)))
	reloaded, err = s.loadTargetByID(ctx, target.ID)
	require.NoError(t, err)
	stat = reloaded.Statistics["series-1"]["detail"]
	assert.Len(t, stat.CostHistory, 2)
	assert.Len(t, reloaded.Processed["series-1"], 2)
}
