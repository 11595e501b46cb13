package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kluhan/kraken/pkg/types"
)

func TestSaveAndLoadSeries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	series := &types.Series{ID: "series-1", Name: "play-store-daily"}
	require.NoError(t, s.SaveSeries(ctx, series))

	loaded, err := s.LoadSeries(ctx, "series-1")
	require.NoError(t, err)
	assert.Equal(t, "play-store-daily", loaded.Name)

	byName, err := s.LoadSeriesByName(ctx, "play-store-daily")
	require.NoError(t, err)
	assert.Equal(t, "series-1", byName.ID)
}

func TestSaveSeries_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	series := &types.Series{ID: "series-1", Name: "play-store-daily"}
	require.NoError(t, s.SaveSeries(ctx, series))

	series.Description = "updated"
	require.NoError(t, s.SaveSeries(ctx, series))

	loaded, err := s.LoadSeries(ctx, "series-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", loaded.Description)
}

func TestLoadCrawl(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	series := types.Series{ID: "series-1", Name: "play-store-daily"}
	crawl := series.NewCrawl()
	crawl.ID = "crawl-1"
	require.NoError(t, s.SaveCrawl(ctx, crawl))

	loaded, err := s.LoadCrawl(ctx, "crawl-1")
	require.NoError(t, err)
	assert.Equal(t, "series-1", loaded.SeriesID)
}

func TestLoadCrawl_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadCrawl(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestLoadSeries_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadSeries(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestSaveAndLoadLatestCrawl(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	series := types.Series{ID: "series-1", Name: "play-store-daily"}
	first := series.NewCrawl()
	first.ID = "crawl-1"
	require.NoError(t, s.SaveCrawl(ctx, first))

	second := series.NewCrawl()
	second.ID = "crawl-2"
	require.NoError(t, s.SaveCrawl(ctx, second))

	latest, err := s.LoadLatestCrawl(ctx, "series-1")
	require.NoError(t, err)
	assert.Equal(t, "crawl-2", latest.ID)
}
