package sqlitestore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kluhan/kraken/pkg/types"
)

func TestResolveWeight_KwargsPath(t *testing.T) {
	target := types.Target{Kwargs: map[string]any{"price": 12.5}}
	got, ok := resolveWeight(target, "kwargs__price")
	assert.True(t, ok)
	assert.Equal(t, 12.5, got)
}

func TestResolveWeight_StatisticsPath(t *testing.T) {
	target := types.Target{
		Statistics: map[string]map[string]types.Statistic{
			"series-1": {
				"fetch": {Weight: 3.0},
			},
		},
	}
	got, ok := resolveWeight(target, "statistics__series-1__fetch__weight")
	assert.True(t, ok)
	assert.Equal(t, 3.0, got)
}

func TestResolveWeight_MissingPath(t *testing.T) {
	target := types.Target{Kwargs: map[string]any{}}
	_, ok := resolveWeight(target, "kwargs__missing")
	assert.False(t, ok)
}

func TestResolveWeight_NonNumeric(t *testing.T) {
	target := types.Target{Kwargs: map[string]any{"name": "x"}}
	_, ok := resolveWeight(target, "kwargs__name")
	assert.False(t, ok, "string not parseable as float must fail")
}

func TestToFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(2), 2, true},
		{true, 1, true},
		{false, 0, true},
		{"3.5", 3.5, true},
		{"notanumber", 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := toFloat(tc.in)
		assert.Equal(t, tc.ok, ok)
		if tc.ok {
			assert.Equal(t, tc.want, got)
		}
	}
}
