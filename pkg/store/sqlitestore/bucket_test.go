package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kluhan/kraken/pkg/types"
)

func insertWeightedTarget(t *testing.T, s *Store, appID string, weight float64) *types.Target {
	t.Helper()
	target := types.NewTarget(map[string]any{"app_id": appID}, nil)
	target.Statistics = map[string]map[string]types.Statistic{
		"series-1": {"fetch": {Weight: weight}},
	}
	require.NoError(t, s.Insert(context.Background(), target))
	return target
}

const weightPath = "statistics__series-1__fetch__weight"

func TestUniformSource_AggregateCountsTargetsPerBucket(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	src := NewUniformSource(s)

	insertWeightedTarget(t, s, "a", 0.5)
	insertWeightedTarget(t, s, "b", 0.5)
	insertWeightedTarget(t, s, "c", 2.5)

	boundaries := []float64{0, 1, 2, 4}
	sizes, err := src.AggregateByBoundary(ctx, weightPath, boundaries, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(2), sizes[0])
	assert.Equal(t, float64(1), sizes[2])
	assert.NotContains(t, sizes, 1, "empty interval must be absent, not zero")
}

func TestProportionalSource_AggregateSumsWeight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	src := NewProportionalSource(s)

	insertWeightedTarget(t, s, "a", 0.5)
	insertWeightedTarget(t, s, "b", 0.75)

	boundaries := []float64{0, 1, 2}
	sizes, err := src.AggregateByBoundary(ctx, weightPath, boundaries, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, sizes[0], 1e-9)
}

func TestAllocateBucket_FiltersRangeAndOrdersByLastQueued(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	src := NewUniformSource(s)

	inRange := insertWeightedTarget(t, s, "in", 0.5)
	outOfRange := insertWeightedTarget(t, s, "out", 3.0)
	require.NoError(t, src.MarkQueued(ctx, "crawl-1", []types.Target{*inRange}))

	notQueued := insertWeightedTarget(t, s, "not-queued", 0.6)

	targets, err := src.AllocateBucket(ctx, weightPath, 0, 1, nil, "crawl-1", 10)
	require.NoError(t, err)

	ids := make([]string, len(targets))
	for i, target := range targets {
		ids[i] = target.ID
	}
	assert.Contains(t, ids, inRange.ID)
	assert.Contains(t, ids, notQueued.ID)
	assert.NotContains(t, ids, outOfRange.ID)
	assert.Equal(t, notQueued.ID, ids[0], "never-queued-for-this-crawl target drawn before the already-queued one")
}

func TestMarkQueued_RecordsPerCrawlTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	src := NewUniformSource(s)

	target := insertWeightedTarget(t, s, "a", 0.5)
	require.NoError(t, src.MarkQueued(ctx, "crawl-1", []types.Target{*target}))

	loaded, err := s.loadTargetByID(ctx, target.ID)
	require.NoError(t, err)
	_, ok := loaded.LastQueuedByCrawl("crawl-1")
	assert.True(t, ok)
}
