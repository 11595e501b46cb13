package historic

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kluhan/kraken/pkg/types"
)

// memStore is a trivial in-memory Store for exercising Save without a
// real database.
type memStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newMemStore() *memStore {
	return &memStore{data: map[string]json.RawMessage{}}
}

func (m *memStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	return raw, ok, nil
}

func (m *memStore) Put(_ context.Context, key string, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

// fakeDoc is a minimal Document used purely for testing Save/models.
type fakeDoc struct {
	key     string
	fields  map[string]any
	history History
	weights map[string]float64
}

func (d *fakeDoc) Key() string { return d.key }

func (d *fakeDoc) Payload() (json.RawMessage, error) {
	return json.Marshal(d.fields)
}

func (d *fakeDoc) History() *History { return &d.history }

func (d *fakeDoc) WCFWeights() map[string]float64 { return d.weights }

func newCrawl(id string) types.Crawl {
	return types.Crawl{ID: id, SeriesID: "series-1"}
}

func TestSave_NewDocument(t *testing.T) {
	store := newMemStore()
	doc := &fakeDoc{key: "k1", fields: map[string]any{"title": "hello"}}

	isNew, changes, metrics, err := Save(context.Background(), store, doc, newCrawl("c1"), nil)
	require.NoError(t, err)

	assert.True(t, isNew)
	assert.Equal(t, 0, changes)
	assert.Equal(t, float64(1), metrics["bfm"])
	assert.Equal(t, float64(1), metrics["cfm"])
	assert.Len(t, doc.History().Witnesses, 1)
	assert.Empty(t, doc.History().Updates)
}

func TestSave_UnchangedReobservation(t *testing.T) {
	store := newMemStore()

	doc1 := &fakeDoc{key: "k1", fields: map[string]any{"title": "hello"}}
	_, _, _, err := Save(context.Background(), store, doc1, newCrawl("c1"), nil)
	require.NoError(t, err)

	doc2 := &fakeDoc{key: "k1", fields: map[string]any{"title": "hello"}}
	isNew, changes, metrics, err := Save(context.Background(), store, doc2, newCrawl("c2"), nil)
	require.NoError(t, err)

	assert.False(t, isNew)
	assert.Equal(t, 0, changes)
	assert.Equal(t, float64(0), metrics["bfm"])
	assert.Equal(t, float64(0), metrics["cfm"])
	assert.Len(t, doc2.History().Witnesses, 2)
}

func TestSave_ChangedPayloadGeneratesBackwardPatch(t *testing.T) {
	store := newMemStore()

	doc1 := &fakeDoc{key: "k1", fields: map[string]any{"title": "hello"}}
	_, _, _, err := Save(context.Background(), store, doc1, newCrawl("c1"), nil)
	require.NoError(t, err)

	doc2 := &fakeDoc{key: "k1", fields: map[string]any{"title": "world"}}
	isNew, changes, metrics, err := Save(context.Background(), store, doc2, newCrawl("c2"), nil)
	require.NoError(t, err)

	assert.False(t, isNew)
	assert.Greater(t, changes, 0)
	assert.Equal(t, float64(1), metrics["bfm"])
	require.Len(t, doc2.History().Updates, 1)

	// The stored patch is the backward delta: applying it to the new
	// ("world") state should walk back to the old ("hello") state. We
	// don't apply it here (that's evanphx/json-patch's job at read time),
	// but we assert it actually references the changed path.
	assert.Contains(t, string(doc2.History().Updates[0].Changes), "/title")
}

func TestSave_UpdatesPrependsNewestPatchFirst(t *testing.T) {
	store := newMemStore()

	doc1 := &fakeDoc{key: "k1", fields: map[string]any{"title": "v1"}}
	_, _, _, err := Save(context.Background(), store, doc1, newCrawl("c1"), nil)
	require.NoError(t, err)

	doc2 := &fakeDoc{key: "k1", fields: map[string]any{"title": "v2"}}
	_, _, _, err = Save(context.Background(), store, doc2, newCrawl("c2"), nil)
	require.NoError(t, err)

	doc3 := &fakeDoc{key: "k1", fields: map[string]any{"title": "v3"}}
	_, _, _, err = Save(context.Background(), store, doc3, newCrawl("c3"), nil)
	require.NoError(t, err)

	require.Len(t, doc3.History().Updates, 2)

	// updates[0] must be the newest backward delta (v3 -> v2); applying
	// it to the current payload must reconstruct the v2 observation, not
	// the oldest (v1) one.
	v3Payload, err := doc3.Payload()
	require.NoError(t, err)

	patch0, err := jsonpatch.DecodePatch(doc3.History().Updates[0].Changes)
	require.NoError(t, err)
	v2Payload, err := patch0.Apply(v3Payload)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(v2Payload, &got))
	assert.Equal(t, "v2", got["title"])

	patch1, err := jsonpatch.DecodePatch(doc3.History().Updates[1].Changes)
	require.NoError(t, err)
	v1Payload, err := patch1.Apply(v2Payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(v1Payload, &got))
	assert.Equal(t, "v1", got["title"])
}

func TestSave_CFMScalesWithElapsedTime(t *testing.T) {
	store := newMemStore()

	doc1 := &fakeDoc{key: "k1", fields: map[string]any{"title": "hello"}}
	_, _, _, err := Save(context.Background(), store, doc1, newCrawl("c1"), nil)
	require.NoError(t, err)

	doc2 := &fakeDoc{key: "k1", fields: map[string]any{"title": "world"}}
	_, _, _, err = Save(context.Background(), store, doc2, newCrawl("c2"), nil)
	require.NoError(t, err)

	// Backdate the most recent witness so the elapsed time between it and
	// the third save's new witness is a known, deterministic fraction of
	// CFMMaxAge.
	doc2.History().Witnesses[len(doc2.History().Witnesses)-1].Timestamp = time.Now().UTC().Add(-CFMMaxAge / 2)

	raw, err := json.Marshal(struct {
		History History        `json:"history"`
		Payload json.RawMessage `json:"payload"`
	}{History: doc2.history, Payload: mustPayload(doc2)})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "k1", raw))

	doc3 := &fakeDoc{key: "k1", fields: map[string]any{"title": "changed-again"}}
	_, _, metrics, err := Save(context.Background(), store, doc3, newCrawl("c3"), nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, metrics["cfm"], 0.05)
}

func mustPayload(d *fakeDoc) json.RawMessage {
	raw, err := d.Payload()
	if err != nil {
		panic(err)
	}
	return raw
}

func TestWCF_WeightsChangedPathsByPrefix(t *testing.T) {
	store := newMemStore()

	doc1 := &fakeDoc{
		key:     "k1",
		fields:  map[string]any{"title": "hello", "body": "x"},
		weights: map[string]float64{"title": 1, "body": 3},
	}
	_, _, _, err := Save(context.Background(), store, doc1, newCrawl("c1"), nil)
	require.NoError(t, err)

	doc2 := &fakeDoc{
		key:     "k1",
		fields:  map[string]any{"title": "hello", "body": "y"},
		weights: map[string]float64{"title": 1, "body": 3},
	}
	_, _, metrics, err := Save(context.Background(), store, doc2, newCrawl("c2"), []Model{WCF{}})
	require.NoError(t, err)

	assert.Equal(t, float64(3)/float64(4), metrics["wcf"])
}
