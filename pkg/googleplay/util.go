package googleplay

import (
	"html"
	"strconv"
	"strings"
	"time"
)

// escapeString mirrors original_source/kraken/utils/escape.py's escape:
// ASCII NUL is replaced with the Unicode replacement character before
// HTML-escaping, so stored review/description text can't smuggle NUL
// bytes into the store or render as raw HTML if ever surfaced in a UI.
func escapeString(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := strings.ReplaceAll(*s, "\x00", "�")
	escaped := html.EscapeString(cleaned)
	return &escaped
}

// parseTimestamp mirrors original_source/kraken/utils/hacky_datetime_parser.py:
// a raw value from a Request Task's JSON result may already be absent
// (nil), a Unix timestamp (decoded as float64 by encoding/json), or an
// RFC3339-ish string - accept all three, reject anything else by
// returning the zero time.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case float64:
		return time.Unix(int64(t), 0).UTC()
	case int64:
		return time.Unix(t, 0).UTC()
	case string:
		if t == "" {
			return time.Time{}
		}
		if unix, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Unix(unix, 0).UTC()
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

func stringField(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func intField(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func floatField(m map[string]any, key string) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func boolField(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func stringSliceField(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intSliceField(m map[string]any, key string) []int {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		switch n := item.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		}
	}
	return out
}
