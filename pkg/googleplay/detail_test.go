package googleplay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailFromResponse(t *testing.T) {
	raw := map[string]any{
		"appId":        "com.example.app",
		"lang":         "en",
		"title":        "Example App",
		"description":  "does things",
		"realInstalls": float64(1000),
		"score":        float64(4.5),
		"icon":         "https://play-lh.googleusercontent.com/abc123",
		"screenshots": []any{
			"https://play-lh.googleusercontent.com/s1",
			"https://play-lh.googleusercontent.com/s2",
		},
	}

	doc, err := DetailFromResponse(context.Background(), raw)
	require.NoError(t, err)

	d, ok := doc.(*Detail)
	require.True(t, ok)

	assert.Equal(t, "com.example.app:en", d.Key())
	assert.Equal(t, "Example App", *d.Title)
	assert.Equal(t, "does things", *d.Description)
	assert.Equal(t, 1000, d.RealInstalls)
	assert.Equal(t, 4.5, d.Score)
	assert.Equal(t, "https://play-lh.googleusercontent.com/abc123", *d.Icon)
	assert.Len(t, d.Screenshots, 2)
}

func TestDetailFromResponse_MissingKeyFields(t *testing.T) {
	_, err := DetailFromResponse(context.Background(), map[string]any{"lang": "en"})
	assert.Error(t, err)
}

func TestDetail_Compress(t *testing.T) {
	icon := "https://play-lh.googleusercontent.com/abc123"
	header := "https://play-lh.googleusercontent.com/hdr"
	video := "https://play-lh.googleusercontent.com/vid"

	d := NewDetail("com.example.app", "en")
	d.Icon = &icon
	d.HeaderImage = &header
	d.VideoImage = &video
	d.Screenshots = []string{"https://play-lh.googleusercontent.com/s1"}
	d.DataSafetyShort = []map[string]any{
		{"summary": `See our <a href="x">policy</a>`},
		{"summary": "plain text"},
	}

	d.Compress()

	assert.Equal(t, "/abc123", *d.Icon)
	assert.Equal(t, "/hdr", *d.HeaderImage)
	assert.Equal(t, "/vid", *d.VideoImage)
	assert.Equal(t, "/s1", d.Screenshots[0])
	assert.Nil(t, d.DataSafetyShort[0]["summary"])
	assert.Equal(t, "plain text", d.DataSafetyShort[1]["summary"])
}

func TestDetail_Weight(t *testing.T) {
	d := NewDetail("com.example.app", "en")
	d.RealInstalls = 42
	assert.Equal(t, float64(42), d.Weight())
}

func TestDetail_PayloadRoundTrip(t *testing.T) {
	d := NewDetail("com.example.app", "en")
	title := "Example"
	d.Title = &title

	payload, err := d.Payload()
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Example")
}

func TestDetail_WCFWeights(t *testing.T) {
	weights := NewDetail("a", "en").WCFWeights()
	assert.Equal(t, float64(10), weights["title"])
	assert.Equal(t, float64(30), weights["updated"])
}
