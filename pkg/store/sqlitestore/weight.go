package sqlitestore

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kluhan/kraken/pkg/mongokey"
	"github.com/kluhan/kraken/pkg/types"
)

// resolveWeight walks a mongokey.Separator-joined path
// (e.g. "statistics__<series_id>__<stage_name>__weight" or
// "kwargs__price") through a Target's JSON projection and returns the
// numeric value found there. It returns ok=false for a missing or
// non-numeric path; callers skip such a target rather than treating it
// as an error, so it is counted in no bucket and never allocated - a
// target simply hasn't reached the stage the weight path references yet.
func resolveWeight(t types.Target, path string) (float64, bool) {
	raw, err := json.Marshal(t)
	if err != nil {
		return 0, false
	}
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return 0, false
	}

	var cur any = root
	for _, seg := range strings.Split(path, mongokey.Separator) {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, false
		}
		cur, ok = m[seg]
		if !ok {
			return 0, false
		}
	}
	return toFloat(cur)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
