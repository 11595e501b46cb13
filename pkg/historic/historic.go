// Package historic implements HistoricDocument persistence: merging a
// freshly-fetched document with whatever version is already on file,
// recording a backward-delta patch and a witness timestamp, and scoring
// the observed change against one or more freshness models.
package historic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/kluhan/kraken/pkg/types"
)

// CFMMaxAge bounds the Continuous Freshness Model's time-decay term, per
// the original's CFM_MAX_AGE = timedelta(days=356).
const CFMMaxAge = 356 * 24 * time.Hour

// Witness marks the crawl and time at which a document's current state
// was observed.
type Witness struct {
	CrawlID   string    `json:"crawl_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Patch is one backward delta: applying Changes to the document as it
// existed at Timestamp reconstructs the document as it existed one
// observation earlier.
type Patch struct {
	CrawlID   string          `json:"crawl_id"`
	Timestamp time.Time       `json:"timestamp"`
	Changes   json.RawMessage `json:"changes"`
}

// History is the version-control information every HistoricDocument
// carries: an append-only witness log and an append-only patch log.
type History struct {
	Witnesses []Witness `json:"witnesses,omitempty"`
	Updates   []Patch   `json:"updates,omitempty"`
}

// Document is anything that can be saved through the historisation
// pipeline: it knows its own store key, and can render its comparable
// business-field payload separately from its History.
type Document interface {
	// Key returns the store key this document is persisted under. Two
	// saves with the same Key are treated as two observations of the
	// same underlying entity.
	Key() string

	// Payload returns the canonical JSON encoding of the document's
	// business fields, excluding History. Equal payload bytes mean no
	// change was observed between two saves.
	Payload() (json.RawMessage, error)

	// History returns a pointer to the document's embedded History so
	// Save can read and append to it in place.
	History() *History
}

// WeightedDocument is a Document that additionally exposes path-prefix
// weights for the Weighted Change Frequency model. Documents that don't
// implement this interface simply never participate in WCF scoring.
type WeightedDocument interface {
	Document
	WCFWeights() map[string]float64
}

// Store is the minimal persistence contract Save needs: look up the
// previously stored raw document by key, and persist the new one.
// pkg/store/sqlitestore provides the reference implementation.
type Store interface {
	Get(ctx context.Context, key string) (raw json.RawMessage, found bool, err error)
	Put(ctx context.Context, key string, raw json.RawMessage) error
}

// Model scores one observed save against a freshness definition. Models
// are pure functions of the save's outcome; they never see the store.
type Model interface {
	Name() string
	Compute(doc Document, newDocument bool, changesObserved int, patch *Patch) float64
}

// DefaultModels returns the models registered by default: BFM and CFM.
// WCF is excluded - it scores only documents that implement
// WeightedDocument, so it is exported for callers who want to opt in
// but is not wired into Save's defaults.
func DefaultModels() []Model {
	return []Model{BFM{}, CFM{}}
}

// BFM is the Binary Freshness Model: 1 for a new document or any
// observed change, 0 for an unchanged re-observation.
type BFM struct{}

func (BFM) Name() string { return "bfm" }

func (BFM) Compute(_ Document, newDocument bool, changesObserved int, _ *Patch) float64 {
	if newDocument {
		return 1
	}
	if changesObserved == 0 {
		return 0
	}
	return 1
}

// CFM is the Continuous Freshness Model: 1 for a new document, 0 for an
// unchanged re-observation, otherwise the elapsed time since the
// previous witness as a fraction of CFMMaxAge, capped at 1.
type CFM struct{}

func (CFM) Name() string { return "cfm" }

func (CFM) Compute(doc Document, newDocument bool, changesObserved int, patch *Patch) float64 {
	if newDocument {
		return 1
	}
	if patch == nil {
		return 0
	}
	witnesses := doc.History().Witnesses
	if len(witnesses) < 2 {
		return 0
	}
	latest := witnesses[len(witnesses)-1].Timestamp
	previous := witnesses[len(witnesses)-2].Timestamp
	elapsed := latest.Sub(previous)
	frac := elapsed.Seconds() / CFMMaxAge.Seconds()
	if frac > 1 {
		return 1
	}
	if frac < 0 {
		return 0
	}
	return frac
}

// WCF is the Weighted Change Frequency model: changed paths are scored
// by how much weight their owning document assigns to that path
// prefix, normalised against the document's total declared weight.
// Exported but not part of DefaultModels; see the note there.
type WCF struct{}

func (WCF) Name() string { return "wcf" }

func (WCF) Compute(doc Document, newDocument bool, changesObserved int, patch *Patch) float64 {
	if newDocument {
		return 1
	}
	if patch == nil {
		return 0
	}
	weighted, ok := doc.(WeightedDocument)
	if !ok {
		return 0
	}
	weights := weighted.WCFWeights()
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return 0
	}

	var ops []patchOp
	if err := json.Unmarshal(patch.Changes, &ops); err != nil {
		return 0
	}

	var wcf float64
	for key, weight := range weights {
		prefix := "/" + key
		for _, op := range ops {
			if hasPathPrefix(op.Path, prefix) {
				wcf += weight / total
				break
			}
		}
	}
	return wcf
}

type patchOp struct {
	Op   string `json:"op"`
	Path string `json:"path"`
}

func hasPathPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

// Save merges doc with whatever is already stored under doc.Key(),
// records a backward-delta patch and a witness for this crawl, persists
// the result, and scores the save against models. It mirrors the
// original HistoricDocument.save / history() pair: the patch is
// generated live-document-first so that applying it to the saved state
// reconstructs the prior observation, not the new one.
func Save(ctx context.Context, store Store, doc Document, crawl types.Crawl, models []Model) (newDocument bool, changesObserved int, metrics map[string]float64, err error) {
	livePayload, err := doc.Payload()
	if err != nil {
		return false, 0, nil, fmt.Errorf("historic: encode live payload: %w", err)
	}

	storedRaw, found, err := store.Get(ctx, doc.Key())
	if err != nil {
		return false, 0, nil, fmt.Errorf("historic: load persistent document: %w", err)
	}

	var patch *Patch
	if !found {
		newDocument = true
	} else {
		var stored struct {
			History History         `json:"history"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(storedRaw, &stored); err != nil {
			return false, 0, nil, fmt.Errorf("historic: decode persistent document: %w", err)
		}

		*doc.History() = stored.History

		if !bytes.Equal(livePayload, stored.Payload) {
			// CreatePatch(a, b) returns the RFC6902 operations that turn a
			// into b. We pass (live, stored) so the resulting patch, applied
			// to the live document we are about to persist, reconstructs the
			// prior observation rather than the new one - the backward
			// delta the original's history() function produces.
			ops, perr := jsonpatch.CreatePatch(livePayload, stored.Payload)
			if perr != nil {
				return false, 0, nil, fmt.Errorf("historic: create patch: %w", perr)
			}
			encodedOps, perr := json.Marshal(ops)
			if perr != nil {
				return false, 0, nil, fmt.Errorf("historic: encode patch: %w", perr)
			}
			patch = &Patch{
				CrawlID:   crawl.ID,
				Timestamp: time.Now().UTC(),
				Changes:   encodedOps,
			}
			changesObserved = len(ops)
			doc.History().Updates = append([]Patch{*patch}, doc.History().Updates...)
		}
	}

	doc.History().Witnesses = append(doc.History().Witnesses, Witness{
		CrawlID:   crawl.ID,
		Timestamp: time.Now().UTC(),
	})

	toStore := struct {
		History History         `json:"history"`
		Payload json.RawMessage `json:"payload"`
	}{History: *doc.History(), Payload: livePayload}
	encoded, err := json.Marshal(toStore)
	if err != nil {
		return false, 0, nil, fmt.Errorf("historic: encode document for storage: %w", err)
	}
	if err := store.Put(ctx, doc.Key(), encoded); err != nil {
		return false, 0, nil, fmt.Errorf("historic: persist document: %w", err)
	}

	if models == nil {
		models = DefaultModels()
	}
	metrics = make(map[string]float64, len(models))
	for _, m := range models {
		metrics[m.Name()] = m.Compute(doc, newDocument, changesObserved, patch)
	}

	return newDocument, changesObserved, metrics, nil
}
