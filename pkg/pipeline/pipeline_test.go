package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kluhan/kraken/internal/kerrors"
	"github.com/kluhan/kraken/pkg/historic"
	"github.com/kluhan/kraken/pkg/types"
)

type memHistoricStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newMemHistoricStore() *memHistoricStore {
	return &memHistoricStore{data: map[string]json.RawMessage{}}
}

func (m *memHistoricStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	return raw, ok, nil
}

func (m *memHistoricStore) Put(_ context.Context, key string, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

type testDoc struct {
	key     string
	fields  map[string]any
	history historic.History
}

func (d *testDoc) Key() string                    { return d.key }
func (d *testDoc) Payload() (json.RawMessage, error) { return json.Marshal(d.fields) }
func (d *testDoc) History() *historic.History      { return &d.history }
func (d *testDoc) Weight() float64                 { return 2 }

func TestDataStorage_AggregatesAcrossBatch(t *testing.T) {
	store := newMemHistoricStore()
	factory := func(_ context.Context, raw map[string]any) (historic.Document, error) {
		return &testDoc{key: raw["id"].(string), fields: raw}, nil
	}

	result := types.RequestResult{
		Batch: true,
		Result: []any{
			map[string]any{"id": "a", "title": "one"},
			map[string]any{"id": "b", "title": "two"},
		},
	}
	crawl := types.Crawl{ID: "c1"}

	pr, err := DataStorage(context.Background(), store, factory, result, crawl, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, pr.Statistics["new_documents"])
	assert.Equal(t, 2, pr.Statistics["processed_documents"])
	require.NotNil(t, pr.Weight)
	assert.Equal(t, float64(4), *pr.Weight)
}

func TestDataStorage_RetriesFactoryFailures(t *testing.T) {
	store := newMemHistoricStore()
	attempts := 0
	factory := func(_ context.Context, raw map[string]any) (historic.Document, error) {
		attempts++
		if attempts < 2 {
			return nil, assertErr("transient build failure")
		}
		return &testDoc{key: "a", fields: raw}, nil
	}

	result := types.RequestResult{Result: map[string]any{"id": "a"}}
	_, err := DataStorage(context.Background(), store, factory, result, types.Crawl{ID: "c1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

type memTargetStore struct {
	mu      sync.Mutex
	existing map[string]bool
	inserted []*types.Target
	raceOn   string
}

func (s *memTargetStore) Exists(_ context.Context, kwargs map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[keyOf(kwargs)], nil
}

func (s *memTargetStore) Insert(_ context.Context, target *types.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(target.Kwargs)
	if k == s.raceOn {
		return kerrors.NewUniquenessRaceError(k, assertErr("dup"))
	}
	s.existing[k] = true
	s.inserted = append(s.inserted, target)
	return nil
}

func keyOf(kwargs map[string]any) string {
	raw, _ := json.Marshal(kwargs)
	return string(raw)
}

func TestTargetDiscovery_InsertsNewMergedTargets(t *testing.T) {
	store := &memTargetStore{existing: map[string]bool{}}
	result := types.RequestResult{
		AdjacentTargets: []types.SlimTarget{
			{Kwargs: map[string]any{"handle": "alice"}},
			{Kwargs: map[string]any{"handle": "bob"}},
		},
	}

	pr, err := TargetDiscovery(context.Background(), store, result, nil, "crawl-1")
	require.NoError(t, err)

	assert.Equal(t, 2, pr.Statistics["new_targets"])
	assert.Equal(t, 2, pr.Statistics["checked_targets"])
	assert.Len(t, store.inserted, 2)
}

func TestTargetDiscovery_SkipsUniquenessRaceLosers(t *testing.T) {
	store := &memTargetStore{existing: map[string]bool{}, raceOn: keyOf(map[string]any{"handle": "alice"})}
	result := types.RequestResult{
		AdjacentTargets: []types.SlimTarget{
			{Kwargs: map[string]any{"handle": "alice"}},
		},
	}

	pr, err := TargetDiscovery(context.Background(), store, result, nil, "crawl-1")
	require.NoError(t, err)
	assert.Equal(t, 0, pr.Statistics["new_targets"])
	assert.Equal(t, 1, pr.Statistics["checked_targets"])
}

func TestTargetDiscovery_SkipsAlreadyKnownTargets(t *testing.T) {
	store := &memTargetStore{existing: map[string]bool{keyOf(map[string]any{"handle": "alice"}): true}}
	result := types.RequestResult{
		AdjacentTargets: []types.SlimTarget{
			{Kwargs: map[string]any{"handle": "alice"}},
		},
	}

	pr, err := TargetDiscovery(context.Background(), store, result, nil, "crawl-1")
	require.NoError(t, err)
	assert.Equal(t, 0, pr.Statistics["new_targets"])
	assert.Len(t, store.inserted, 0)
}

func TestTargetDiscovery_CheckedTargetsIsCartesianProductEvenWhenMergesCollide(t *testing.T) {
	store := &memTargetStore{existing: map[string]bool{}}
	result := types.RequestResult{
		AdjacentTargets: []types.SlimTarget{
			// The adjacent target's own "region" kwarg always wins the
			// merge (MergeSlimTargets is right-biased), so both defaults
			// below produce the exact same merged kwargs - one adjacent
			// target times two defaults collapses to a single distinct
			// candidate after dedup.
			{Kwargs: map[string]any{"handle": "alice", "region": "override"}},
		},
	}
	defaults := []types.SlimTarget{
		{Kwargs: map[string]any{"region": "us"}},
		{Kwargs: map[string]any{"region": "eu"}},
	}

	pr, err := TargetDiscovery(context.Background(), store, result, defaults, "crawl-1")
	require.NoError(t, err)

	// checked_targets must report the full |adjacent|x|defaults| product
	// (1 x 2 = 2), not the deduped candidate count the Exists/Insert
	// loop actually iterates over.
	assert.Equal(t, 2, pr.Statistics["checked_targets"])
	assert.Equal(t, 1, pr.Statistics["new_targets"])
	assert.Len(t, store.inserted, 1)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertErr(msg string) error { return simpleErr(msg) }
