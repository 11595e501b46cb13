package googleplay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kluhan/kraken/pkg/historic"
)

const reviewUserImagePrefix = "https://play-lh.googleusercontent.com"

// reviewTrivialUserNames are Google's default anonymous display names
// across locales; Compress nils them out rather than storing noise.
var reviewTrivialUserNames = map[string]bool{
	"Ein Google-Nutzer":     true,
	"A Google user":         true,
	"Un usuario de Google":  true,
	"Un utilisateur de Google": true,
}

// Review is one user review of a Play Store app.
type Review struct {
	ReviewID             string    `json:"review_id"`
	RepliedAt            time.Time `json:"replied_at,omitempty"`
	ReplyContent         *string   `json:"reply_content,omitempty"`
	AppID                string    `json:"app_id"`
	Lang                 string    `json:"lang"`
	At                   time.Time `json:"at,omitempty"`
	Content              *string   `json:"content,omitempty"`
	ReviewCreatedVersion *string   `json:"review_created_version,omitempty"`
	Score                float64   `json:"score"`
	ThumbsUpCount        int       `json:"thumbs_up_count"`
	UserImage            *string   `json:"user_image,omitempty"`
	UserName             *string   `json:"user_name,omitempty"`

	history historic.History
}

// NewReview constructs a Review keyed by reviewID.
func NewReview(reviewID string) *Review {
	return &Review{ReviewID: reviewID}
}

func (r *Review) Key() string { return r.ReviewID }

func (r *Review) Payload() (json.RawMessage, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("googleplay: marshal review payload: %w", err)
	}
	return raw, nil
}

func (r *Review) History() *historic.History { return &r.history }

// Weight is ThumbsUpCount, matching Review.weight().
func (r *Review) Weight() float64 { return float64(r.ThumbsUpCount) }

func (r *Review) WCFWeights() map[string]float64 {
	return map[string]float64{
		"at":              1,
		"content":         5,
		"replied_at":      25,
		"reply_content":   25,
		"score":           10,
		"thumbs_up_count": 10,
	}
}

// Compress hashes ReviewID (the Play Store's review IDs are long and
// opaque), strips the shared CDN prefix from UserImage, and nils
// UserName when it is one of Google's trivial anonymous placeholders.
// Mirrors Review.compress().
func (r *Review) Compress() {
	sum := sha256.Sum256([]byte(r.ReviewID))
	r.ReviewID = hex.EncodeToString(sum[:])

	if r.UserImage != nil {
		trimmed := strings.TrimPrefix(*r.UserImage, reviewUserImagePrefix)
		r.UserImage = &trimmed
	}
	if r.UserName != nil && reviewTrivialUserNames[*r.UserName] {
		r.UserName = nil
	}
}

// ReviewFromResponse builds a Review from a Request Task's raw result.
func ReviewFromResponse(_ context.Context, raw map[string]any) (historic.Document, error) {
	reviewID, _ := raw["reviewId"].(string)
	if reviewID == "" {
		return nil, fmt.Errorf("googleplay: review response missing reviewId")
	}

	r := NewReview(reviewID)
	r.AppID, _ = raw["app_id"].(string)
	r.Lang, _ = raw["lang"].(string)
	if v, ok := raw["at"]; ok {
		r.At = parseTimestamp(v)
	}
	r.Content = escapeString(stringField(raw, "content"))
	if v, ok := raw["repliedAt"]; ok {
		r.RepliedAt = parseTimestamp(v)
	}
	r.ReplyContent = escapeString(stringField(raw, "replyContent"))
	r.ReviewCreatedVersion = stringField(raw, "reviewCreatedVersion")
	r.Score = floatField(raw, "score")
	r.ThumbsUpCount = intField(raw, "thumbsUpCount")
	r.UserImage = stringField(raw, "userImage")
	r.UserName = escapeString(stringField(raw, "userName"))

	return r, nil
}

var (
	_ historic.Document         = (*Review)(nil)
	_ historic.WeightedDocument = (*Review)(nil)
)
