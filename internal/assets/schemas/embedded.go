// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time to ensure the CLI and library work
// correctly regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// SeriesManifestSchema is the embedded series-manifest JSON schema.
//
// This allows Series manifest validation to work in installed binaries and
// library consumers without requiring the schema files to be present on
// disk.
//
//go:embed series-manifest.schema.json
var SeriesManifestSchema []byte

// StageManifestSchema is the embedded stage-manifest JSON schema.
//
// This allows Stage manifest validation to work in installed binaries and
// library consumers without requiring the schema files to be present on
// disk.
//
//go:embed stage-manifest.schema.json
var StageManifestSchema []byte
