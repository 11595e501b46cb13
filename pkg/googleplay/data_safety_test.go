package googleplay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSafetyFromResponse(t *testing.T) {
	raw := map[string]any{
		"app_id": "com.example.app",
		"lang":   "en",
		"dataCollected": map[string]any{
			"Location": []any{
				map[string]any{"data": "Approximate location", "optional": false},
			},
		},
		"dataShared": map[string]any{},
		"securityPractices": []any{
			map[string]any{"practice": "Data is encrypted in transit"},
		},
	}

	doc, err := DataSafetyFromResponse(context.Background(), raw)
	require.NoError(t, err)

	d, ok := doc.(*DataSafety)
	require.True(t, ok)

	assert.Equal(t, "com.example.app:en", d.Key())
	require.Contains(t, d.DataCollected, "Location")
	assert.Equal(t, "Approximate location", d.DataCollected["Location"][0]["data"])
	assert.Len(t, d.SecurityPractices, 1)
	assert.Equal(t, "Data is encrypted in transit", d.SecurityPractices[0]["practice"])
}

func TestDataSafetyFromResponse_MissingKeyFields(t *testing.T) {
	_, err := DataSafetyFromResponse(context.Background(), map[string]any{"lang": "en"})
	assert.Error(t, err)
}

func TestDataSafety_Weight(t *testing.T) {
	d := NewDataSafety("com.example.app", "en")
	assert.Equal(t, float64(1), d.Weight())
}

func TestDataSafety_CompressIsNoOp(t *testing.T) {
	d := NewDataSafety("com.example.app", "en")
	d.SecurityPractices = []map[string]any{{"practice": "x"}}
	d.Compress()
	assert.Equal(t, "x", d.SecurityPractices[0]["practice"])
}

func TestDataSafety_WCFWeights(t *testing.T) {
	weights := NewDataSafety("a", "en").WCFWeights()
	assert.Equal(t, float64(1), weights["data_collected"])
	assert.Equal(t, float64(1), weights["data_shared"])
	assert.Equal(t, float64(1), weights["security_practices"])
}
