package allocator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kluhan/kraken/pkg/types"
)

type fakeStaticSource struct {
	pages [][]types.Target
	calls int
}

func (s *fakeStaticSource) FetchUnqueuedBatch(_ context.Context, _ string, _ time.Time, _ []string, _ int) ([]types.Target, error) {
	defer func() { s.calls++ }()
	if s.calls >= len(s.pages) {
		return nil, nil
	}
	return s.pages[s.calls], nil
}

func TestStatic_DrainsPagesThenStops(t *testing.T) {
	source := &fakeStaticSource{pages: [][]types.Target{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "c"}},
	}}
	crawl := types.Crawl{Name: "series_1", StartedAt: time.Now()}
	alloc := NewStatic(source, crawl, "series-1", 2)

	batch, ok, err := alloc.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, batch, 2)

	batch, ok, err = alloc.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, batch, 1)

	batch, ok, err = alloc.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, batch)
}

func TestStatic_DefaultsStepSize(t *testing.T) {
	alloc := NewStatic(&fakeStaticSource{}, types.Crawl{}, "s1", 0)
	assert.Equal(t, 1000, alloc.stepSize)
}
