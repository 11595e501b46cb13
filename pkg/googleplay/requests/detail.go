package requests

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kluhan/kraken/pkg/types"
)

// DetailHandler adapts Client into a dispatch.Handler that fetches a
// single app's detail page, matching detail_request.py's
// request_details. Unlike the original it does not follow
// moreByDeveloperPage/similarAppsPage collection links with additional
// requests; it reports the similarApps/moreByDeveloper app IDs already
// present on the detail response as AdjacentTargets, same as the
// original does once a collection page has been resolved.
type DetailHandler struct {
	Client *Client
}

// NewDetailHandler builds a DetailHandler against client.
func NewDetailHandler(client *Client) *DetailHandler {
	return &DetailHandler{Client: client}
}

// Handle implements dispatch.Handler, matching the kwargs
// request_details accepts: app_id, lang.
func (h *DetailHandler) Handle(ctx context.Context, sig types.Signature) (map[string]any, error) {
	appID, _ := sig.Kwargs["app_id"].(string)
	if appID == "" {
		return nil, fmt.Errorf("requests: detail request missing app_id kwarg")
	}
	lang, _ := sig.Kwargs["lang"].(string)
	if lang == "" {
		lang = "en"
	}

	raw, err := h.Client.get(ctx, "/detail", url.Values{"app_id": {appID}, "lang": {lang}})
	if err != nil {
		if err == errNotFound {
			found := false
			return encodeRequestResult(types.RequestResult{TargetNotFound: true, Gain: 0, TargetExhausted: &found})
		}
		return nil, err
	}

	raw["lang"] = lang
	raw["document_type"] = "DETAIL"

	adjacent := adjacentTargetsFromDetail(raw, lang)

	exhausted := true
	return encodeRequestResult(types.RequestResult{
		Result:          raw,
		Cost:            1,
		AdjacentTargets: adjacent,
		TargetExhausted: &exhausted,
	})
}

func adjacentTargetsFromDetail(raw map[string]any, lang string) []types.SlimTarget {
	seen := map[string]bool{}
	var out []types.SlimTarget

	appendAppIDs := func(key string) {
		list, ok := raw[key].([]any)
		if !ok {
			return
		}
		for _, item := range list {
			id, ok := item.(string)
			if !ok || id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, types.SlimTarget{Kwargs: map[string]any{"app_id": id, "lang": lang}})
		}
	}

	appendAppIDs("similarApps")
	appendAppIDs("moreByDeveloper")
	return out
}
