package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kluhan/kraken/pkg/historic"
	"github.com/kluhan/kraken/pkg/types"
)

func TestDataStorageHandler_DecodesKwargsAndEncodesResult(t *testing.T) {
	store := newMemHistoricStore()
	factory := func(_ context.Context, raw map[string]any) (historic.Document, error) {
		return &testDoc{key: raw["id"].(string), fields: raw}, nil
	}
	h := DataStorageHandler(store, factory, nil)

	raw, err := h(context.Background(), types.Signature{Kwargs: map[string]any{
		"request_result": map[string]any{"result": map[string]any{"id": "a", "title": "x"}},
		"crawl_id":       "crawl-1",
	}})
	require.NoError(t, err)
	assert.Equal(t, float64(1), raw["statistics"].(map[string]any)["new_documents"])
}

func TestTargetDiscoveryHandler_DecodesKwargsAndEncodesResult(t *testing.T) {
	store := &memTargetStore{existing: map[string]bool{}}
	h := TargetDiscoveryHandler(store, nil)

	raw, err := h(context.Background(), types.Signature{Kwargs: map[string]any{
		"request_result": map[string]any{
			"adjacent_targets": []any{map[string]any{"kwargs": map[string]any{"handle": "alice"}}},
		},
		"crawl_id": "crawl-1",
	}})
	require.NoError(t, err)
	assert.Equal(t, float64(1), raw["statistics"].(map[string]any)["new_targets"])
}
