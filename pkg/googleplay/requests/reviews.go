package requests

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kluhan/kraken/pkg/types"
)

// resultsPerRequest mirrors review_request.py's RESULTS_PER_REQUEST,
// used to turn a page's review count into a request-cost estimate.
const resultsPerRequest = 200

// ReviewsHandler adapts Client into a dispatch.Handler that fetches one
// page of reviews for an app, matching review_request.py's
// request_reviews: batched results, a continuation token carried
// through SubsequentKwargs, and a per-page Gain/Cost.
type ReviewsHandler struct {
	Client *Client
}

// NewReviewsHandler builds a ReviewsHandler against client.
func NewReviewsHandler(client *Client) *ReviewsHandler {
	return &ReviewsHandler{Client: client}
}

// Handle implements dispatch.Handler, matching the kwargs
// request_reviews accepts: app_id, lang, continuation_token, count.
func (h *ReviewsHandler) Handle(ctx context.Context, sig types.Signature) (map[string]any, error) {
	appID, _ := sig.Kwargs["app_id"].(string)
	if appID == "" {
		return nil, fmt.Errorf("requests: reviews request missing app_id kwarg")
	}
	lang, _ := sig.Kwargs["lang"].(string)
	if lang == "" {
		lang = "en"
	}
	count := resultsPerRequest
	if v, ok := sig.Kwargs["count"]; ok {
		if n, ok := v.(float64); ok && n > 0 {
			count = int(n)
		}
	}

	query := url.Values{"app_id": {appID}, "lang": {lang}, "count": {strconv.Itoa(count)}}
	if token, ok := sig.Kwargs["continuation_token"]; ok && token != nil {
		if m, ok := token.(map[string]any); ok {
			if tok, ok := m["token"].(string); ok {
				query.Set("continuation_token", tok)
			}
		}
	}

	raw, err := h.Client.get(ctx, "/reviews", query)
	if err != nil {
		if err == errNotFound {
			return encodeRequestResult(types.RequestResult{TargetNotFound: true, Gain: 0})
		}
		return nil, err
	}

	reviews, _ := raw["reviews"].([]any)
	for _, item := range reviews {
		review, ok := item.(map[string]any)
		if !ok {
			continue
		}
		review["lang"] = lang
		review["app_id"] = appID
		review["document_type"] = "REVIEW"
	}

	var subsequent map[string]any
	if nextToken, ok := raw["continuation_token"].(string); ok && nextToken != "" {
		subsequent = map[string]any{
			"continuation_token": map[string]any{"token": nextToken},
		}
	}

	cost := (len(reviews) + resultsPerRequest - 1) / resultsPerRequest
	if cost < 1 {
		cost = 1
	}

	return encodeRequestResult(types.RequestResult{
		Result:           reviews,
		SubsequentKwargs: subsequent,
		Batch:            true,
		Gain:             len(reviews),
		Cost:             cost,
	})
}
