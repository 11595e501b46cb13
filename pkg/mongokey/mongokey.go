// Package mongokey sanitises arbitrary strings for use as MongoDB
// document field keys, and builds the dotted-but-escaped paths the
// Metadata Store uses for per-series/per-stage statistics fields.
package mongokey

import "strings"

// Sanitize rewrites s so it is safe to use as a MongoDB field name:
// dots become colons, NUL bytes are stripped, and any leading '$'
// characters are stripped. It is idempotent — Sanitize(Sanitize(s)) ==
// Sanitize(s).
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, ".", ":")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimLeft(s, "$")
	return s
}

// Segment separator used when joining sanitised path components into a
// single dotted MongoDB field path, e.g.
// statistics__<series_id>__<stage_name>__<field>.
const Separator = "__"

// Path sanitises each segment and joins them with Separator, producing
// a single field key safe for $set/$push/$inc operators.
func Path(segments ...string) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = Sanitize(seg)
	}
	return strings.Join(parts, Separator)
}

// StatisticsPath builds the conventional
// statistics__<seriesID>__<stageName>__<field> path.
func StatisticsPath(seriesID, stageName, field string) string {
	return Path("statistics", seriesID, stageName, field)
}
