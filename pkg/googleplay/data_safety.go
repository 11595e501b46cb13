package googleplay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kluhan/kraken/pkg/historic"
)

// DataSafety is a snapshot of a Play Store app's "Data safety" section.
type DataSafety struct {
	ID                 string                       `json:"id"`
	AppID              string                       `json:"app_id"`
	Lang               string                       `json:"lang"`
	DataCollected      map[string][]map[string]any  `json:"data_collected,omitempty"`
	DataShared         map[string][]map[string]any  `json:"data_shared,omitempty"`
	SecurityPractices  []map[string]any              `json:"security_practices,omitempty"`

	history historic.History
}

// NewDataSafety constructs a DataSafety keyed by "<appID>:<lang>".
func NewDataSafety(appID, lang string) *DataSafety {
	return &DataSafety{ID: appID + ":" + lang, AppID: appID, Lang: lang}
}

func (d *DataSafety) Key() string { return d.ID }

func (d *DataSafety) Payload() (json.RawMessage, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("googleplay: marshal data safety payload: %w", err)
	}
	return raw, nil
}

func (d *DataSafety) History() *historic.History { return &d.history }

// Weight is always 1; the original marks this a TODO rather than a
// considered design.
func (d *DataSafety) Weight() float64 { return 1 }

func (d *DataSafety) WCFWeights() map[string]float64 {
	return map[string]float64{
		"data_collected":     1,
		"data_shared":        1,
		"security_practices": 1,
	}
}

// Compress does nothing; kept only for parity with the other document
// types, matching DataSafety.compress().
func (d *DataSafety) Compress() {}

// DataSafetyFromResponse builds a DataSafety from a Request Task's raw
// result.
func DataSafetyFromResponse(_ context.Context, raw map[string]any) (historic.Document, error) {
	appID, _ := raw["app_id"].(string)
	lang, _ := raw["lang"].(string)
	if appID == "" || lang == "" {
		return nil, fmt.Errorf("googleplay: data safety response missing app_id/lang")
	}

	d := NewDataSafety(appID, lang)
	d.DataCollected = nestedField(raw, "dataCollected")
	d.DataShared = nestedField(raw, "dataShared")
	d.SecurityPractices = listOfMapsField(raw, "securityPractices")

	return d, nil
}

func nestedField(m map[string]any, key string) map[string][]map[string]any {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	outer, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]map[string]any, len(outer))
	for k, inner := range outer {
		list, ok := inner.([]any)
		if !ok {
			continue
		}
		entries := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if entry, ok := item.(map[string]any); ok {
				entries = append(entries, entry)
			}
		}
		out[k] = entries
	}
	return out
}

func listOfMapsField(m map[string]any, key string) []map[string]any {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if entry, ok := item.(map[string]any); ok {
			out = append(out, entry)
		}
	}
	return out
}

var (
	_ historic.Document         = (*DataSafety)(nil)
	_ historic.WeightedDocument = (*DataSafety)(nil)
)
