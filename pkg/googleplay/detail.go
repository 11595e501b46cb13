package googleplay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kluhan/kraken/pkg/historic"
)

// Image URL prefixes Detail.Compress strips, mirroring the constants in
// original_source/kraken/google_play_store/documents/detail.py.
const (
	detailIconPrefix       = "https://play-lh.googleusercontent.com"
	detailHeaderImagePrefix = "https://play-lh.googleusercontent.com"
	detailVideoImagePrefix  = "https://play-lh.googleusercontent.com"
	detailScreenshotPrefix  = "https://play-lh.googleusercontent.com"
)

// Detail is a snapshot of a Google Play Store app's detail page.
type Detail struct {
	ID    string `json:"id"`
	AppID string `json:"app_id"`
	Lang  string `json:"lang"`

	Title                    *string        `json:"title,omitempty"`
	Description              *string        `json:"description,omitempty"`
	Summary                  *string        `json:"summary,omitempty"`
	Installs                 *string        `json:"installs,omitempty"`
	RealInstalls             int            `json:"real_installs"`
	Score                    float64        `json:"score"`
	Ratings                  int            `json:"ratings"`
	Reviews                  int            `json:"reviews"`
	Histogram                []int          `json:"histogram,omitempty"`
	Price                    int            `json:"price"`
	Free                     bool           `json:"free"`
	Currency                 *string        `json:"currency,omitempty"`
	Sale                     bool           `json:"sale"`
	SaleTime                 time.Time      `json:"sale_time,omitempty"`
	OffersIAP                bool           `json:"offers_iap"`
	InAppProductPrice        *string        `json:"in_app_product_price,omitempty"`
	Size                     *string        `json:"size,omitempty"`
	AndroidVersion           *string        `json:"android_version,omitempty"`
	AndroidVersionText       *string        `json:"android_version_text,omitempty"`
	DeveloperInternalID      *string        `json:"developer_internal_id,omitempty"`
	Developer                *string        `json:"developer,omitempty"`
	DeveloperID              *string        `json:"developer_id,omitempty"`
	DeveloperEmail           *string        `json:"developer_email,omitempty"`
	DeveloperWebsite         *string        `json:"developer_website,omitempty"`
	DeveloperAddress         *string        `json:"developer_address,omitempty"`
	PrivacyPolicy            *string        `json:"privacy_policy,omitempty"`
	Genre                    *string        `json:"genre,omitempty"`
	GenreID                  *string        `json:"genre_id,omitempty"`
	Icon                     *string        `json:"icon,omitempty"`
	HeaderImage              *string        `json:"header_image,omitempty"`
	Screenshots              []string       `json:"screenshots,omitempty"`
	Video                    *string        `json:"video,omitempty"`
	VideoImage               *string        `json:"video_image,omitempty"`
	ContentRating            *string        `json:"content_rating,omitempty"`
	ContentRatingDescription *string        `json:"content_rating_description,omitempty"`
	AdSupported              bool           `json:"ad_supported"`
	ContainsAds              bool           `json:"contains_ads"`
	Released                 *string        `json:"released,omitempty"`
	Updated                  time.Time      `json:"updated,omitempty"`
	Version                  *string        `json:"version,omitempty"`
	RecentChanges            *string        `json:"recent_changes,omitempty"`
	SimilarApps              []string       `json:"similar_apps,omitempty"`
	MoreByDeveloper          []string       `json:"more_by_developer,omitempty"`
	OtherLanguages           []string       `json:"other_languages,omitempty"`
	DataSafetyShort          []map[string]any `json:"data_safety_short,omitempty"`

	history historic.History
}

// NewDetail constructs a Detail keyed by "<appID>:<lang>", matching
// Detail.__init__'s default id.
func NewDetail(appID, lang string) *Detail {
	return &Detail{ID: appID + ":" + lang, AppID: appID, Lang: lang}
}

func (d *Detail) Key() string { return d.ID }

func (d *Detail) Payload() (json.RawMessage, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("googleplay: marshal detail payload: %w", err)
	}
	return raw, nil
}

func (d *Detail) History() *historic.History { return &d.history }

// Weight is RealInstalls, matching Detail.weight().
func (d *Detail) Weight() float64 { return float64(d.RealInstalls) }

// WCFWeights covers the fields spec.md's Google Play expansion calls
// out explicitly (title, description, price, score-as-rating), plus
// the rest of the original's wcf_weights() table.
func (d *Detail) WCFWeights() map[string]float64 {
	return map[string]float64{
		"title":                  10,
		"description":            10,
		"summary":                10,
		"installs":               10,
		"score":                  10,
		"ratings":                1,
		"reviews":                1,
		"price":                  5,
		"free":                   5,
		"currency":               1,
		"sale":                   10,
		"offers_iap":             10,
		"size":                   5,
		"developer_internal_id":  10,
		"privacy_policy":         5,
		"genre_id":               10,
		"content_rating":         10,
		"ad_supported":           10,
		"contains_ads":           10,
		"updated":                30,
		"version":                10,
		"recent_changes":         10,
		"data_safety_short":      10,
	}
}

// Compress strips the shared CDN prefix from image URLs and drops
// static boilerplate from DataSafetyShort summaries, reducing the
// stored payload size. Mirrors Detail.compress().
func (d *Detail) Compress() {
	if d.Icon != nil {
		trimmed := strings.TrimPrefix(*d.Icon, detailIconPrefix)
		d.Icon = &trimmed
	}
	if d.HeaderImage != nil {
		trimmed := strings.TrimPrefix(*d.HeaderImage, detailHeaderImagePrefix)
		d.HeaderImage = &trimmed
	}
	if d.VideoImage != nil {
		trimmed := strings.TrimPrefix(*d.VideoImage, detailVideoImagePrefix)
		d.VideoImage = &trimmed
	}
	for i, shot := range d.Screenshots {
		d.Screenshots[i] = strings.TrimPrefix(shot, detailScreenshotPrefix)
	}
	for _, entry := range d.DataSafetyShort {
		if summary, ok := entry["summary"].(string); ok && strings.Contains(summary, "</a>") {
			entry["summary"] = nil
		}
	}
}

// DetailFromResponse builds a Detail from a Request Task's raw result,
// matching pipeline.DocumentFactory's signature so it can be registered
// directly in a DocumentFactory keyed on document_type. Mirrors
// Detail.from_response.
func DetailFromResponse(_ context.Context, raw map[string]any) (historic.Document, error) {
	appID, _ := raw["appId"].(string)
	lang, _ := raw["lang"].(string)
	if appID == "" || lang == "" {
		return nil, fmt.Errorf("googleplay: detail response missing appId/lang")
	}

	d := NewDetail(appID, lang)
	d.Title = escapeString(stringField(raw, "title"))
	d.Description = escapeString(stringField(raw, "description"))
	d.Summary = escapeString(stringField(raw, "summary"))
	d.Installs = stringField(raw, "installs")
	d.RealInstalls = intField(raw, "realInstalls")
	d.Score = floatField(raw, "score")
	d.Ratings = intField(raw, "ratings")
	d.Reviews = intField(raw, "reviews")
	d.Histogram = intSliceField(raw, "histogram")
	d.Price = intField(raw, "price")
	d.Free = boolField(raw, "free")
	d.Currency = stringField(raw, "currency")
	d.Sale = boolField(raw, "sale")
	if v, ok := raw["saleTime"]; ok {
		d.SaleTime = parseTimestamp(v)
	}
	d.OffersIAP = boolField(raw, "offersIAP")
	d.InAppProductPrice = stringField(raw, "inAppProductPrice")
	d.Size = stringField(raw, "size")
	d.AndroidVersion = stringField(raw, "androidVersion")
	d.AndroidVersionText = stringField(raw, "androidVersionText")
	d.DeveloperInternalID = stringField(raw, "developerInternalID")
	d.Developer = escapeString(stringField(raw, "developer"))
	d.DeveloperID = stringField(raw, "developerId")
	d.DeveloperEmail = escapeString(stringField(raw, "developerEmail"))
	d.DeveloperWebsite = escapeString(stringField(raw, "developerWebsite"))
	d.DeveloperAddress = escapeString(stringField(raw, "developerAddress"))
	d.PrivacyPolicy = escapeString(stringField(raw, "privacyPolicy"))
	d.Genre = stringField(raw, "genre")
	d.GenreID = stringField(raw, "genreId")
	d.Icon = stringField(raw, "icon")
	d.HeaderImage = stringField(raw, "headerImage")
	d.Screenshots = stringSliceField(raw, "screenshots")
	d.Video = stringField(raw, "video")
	d.VideoImage = stringField(raw, "videoImage")
	d.ContentRating = stringField(raw, "contentRating")
	d.ContentRatingDescription = stringField(raw, "contentRatingDescription")
	d.AdSupported = boolField(raw, "adSupported")
	d.ContainsAds = boolField(raw, "containsAds")
	d.Released = stringField(raw, "released")
	if v, ok := raw["updated"]; ok {
		d.Updated = parseTimestamp(v)
	}
	d.Version = stringField(raw, "version")
	d.RecentChanges = escapeString(stringField(raw, "recentChanges"))
	d.SimilarApps = stringSliceField(raw, "similarApps")
	d.MoreByDeveloper = stringSliceField(raw, "moreByDeveloper")
	d.OtherLanguages = stringSliceField(raw, "otherLanguages")

	return d, nil
}

var (
	_ historic.Document         = (*Detail)(nil)
	_ historic.WeightedDocument = (*Detail)(nil)
)
