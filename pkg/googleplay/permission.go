package googleplay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kluhan/kraken/pkg/historic"
)

// Permission is the set of permissions an app declares on its Play
// Store permission page.
type Permission struct {
	ID      string         `json:"id"`
	AppID   string         `json:"app_id"`
	Lang    string         `json:"lang"`
	Content map[string]any `json:"content,omitempty"`

	history historic.History
}

// NewPermission constructs a Permission keyed by "<appID>:<lang>".
func NewPermission(appID, lang string) *Permission {
	return &Permission{ID: appID + ":" + lang, AppID: appID, Lang: lang}
}

func (p *Permission) Key() string { return p.ID }

func (p *Permission) Payload() (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("googleplay: marshal permission payload: %w", err)
	}
	return raw, nil
}

func (p *Permission) History() *historic.History { return &p.history }

// Weight is always 1; the original marks this a TODO rather than a
// considered design.
func (p *Permission) Weight() float64 { return 1 }

func (p *Permission) WCFWeights() map[string]float64 {
	return map[string]float64{"content": 1}
}

// Compress does nothing; kept only for parity with the other document
// types, matching Permission.compress().
func (p *Permission) Compress() {}

// PermissionFromResponse builds a Permission from a Request Task's raw
// result, keyed by document_type PERMISSION.
func PermissionFromResponse(_ context.Context, raw map[string]any) (historic.Document, error) {
	appID, _ := raw["app_id"].(string)
	lang, _ := raw["lang"].(string)
	if appID == "" || lang == "" {
		return nil, fmt.Errorf("googleplay: permission response missing app_id/lang")
	}

	p := NewPermission(appID, lang)
	content := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "app_id" || k == "lang" || v == nil {
			continue
		}
		content[k] = v
	}
	p.Content = content

	return p, nil
}

var (
	_ historic.Document         = (*Permission)(nil)
	_ historic.WeightedDocument = (*Permission)(nil)
)
