package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	schemasassets "github.com/kluhan/kraken/internal/assets/schemas"
	"github.com/fulmenhq/gofulmen/schema"
	"gopkg.in/yaml.v3"
)

// StageSchemaID is the schema identifier for Stage manifests.
const StageSchemaID = "kraken/v1.0.0/stage-manifest"

// Stage validation errors.
var (
	// ErrStageSchemaNotFound indicates the stage schema file could not be located.
	ErrStageSchemaNotFound = errors.New("stage manifest schema not found")

	// ErrStageValidationFailed indicates the manifest failed schema validation.
	ErrStageValidationFailed = errors.New("stage manifest validation failed")
)

// StageManifest represents a validated Stage declaration.
//
// A Stage manifest is the standalone declaration of one Stage: the
// request signature dispatched per target, and the pipelines,
// terminators, and callbacks that process its result. A Series manifest
// references Stage manifests by name.
type StageManifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Name is the stage's name, referenced by a Series manifest's Stages
	// list and used as the stage_name segment of statistics field paths.
	Name string `json:"name" yaml:"name"`

	// Request is the task signature dispatched once per target on entry
	// to this stage.
	Request SignatureManifest `json:"request" yaml:"request"`

	// Pipelines are the task signatures whose results are aggregated into
	// this stage's progress after Request completes.
	Pipelines []SignatureManifest `json:"pipelines,omitempty" yaml:"pipelines,omitempty"`

	// Terminators are the task signatures evaluated against this stage's
	// progress after every pipeline result, deciding whether the stage
	// has finished for this target.
	Terminators []SignatureManifest `json:"terminators,omitempty" yaml:"terminators,omitempty"`

	// Callbacks are fire-and-forget task signatures dispatched once this
	// stage terminates for a target.
	Callbacks []SignatureManifest `json:"callbacks,omitempty" yaml:"callbacks,omitempty"`
}

// SignatureManifest is the manifest-level counterpart of types.Signature:
// a dotted task name plus static kwargs merged with the per-target kwargs
// the Stage Processor injects at dispatch time.
type SignatureManifest struct {
	// TaskName is the dotted task name routed through the Dispatcher.
	TaskName string `json:"task_name" yaml:"task_name"`

	// Kwargs are static keyword arguments merged into every dispatch of
	// this signature. Optional.
	Kwargs map[string]any `json:"kwargs,omitempty" yaml:"kwargs,omitempty"`
}

const (
	// DefaultStageVersion is the current Stage manifest schema version.
	DefaultStageVersion = "1.0"
)

// ApplyDefaults fills in default values for optional fields.
func (m *StageManifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = DefaultStageVersion
	}
}

// ValidateStageRaw checks raw JSON data against the stage manifest schema.
func ValidateStageRaw(jsonData []byte) error {
	v, err := getStageValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if len(diags) == 0 {
		return nil
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{
				Path:    d.Pointer,
				Message: d.Message,
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return stageValidationErrors(errs)
}

// ValidateStage validates a typed StageManifest by round-tripping to JSON.
func ValidateStage(m *StageManifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize stage manifest for validation: %w", err)
	}
	return ValidateStageRaw(data)
}

// LoadStageFromBytes parses and validates a Stage manifest from raw bytes.
func LoadStageFromBytes(data []byte, path string) (*StageManifest, error) {
	if len(data) == 0 {
		return nil, errors.New("stage manifest file is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateStageRaw(jsonData); err != nil {
		return nil, err
	}

	manifest, err := parseStageManifest(data, path)
	if err != nil {
		return nil, err
	}

	manifest.ApplyDefaults()
	return manifest, nil
}

func parseStageManifest(data []byte, path string) (*StageManifest, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		var m StageManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid JSON in stage manifest: %w", err)
		}
		return &m, nil
	case ".yaml", ".yml":
		var m StageManifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid YAML in stage manifest: %w", err)
		}
		return &m, nil
	default:
		var m StageManifest
		yamlErr := yaml.Unmarshal(data, &m)
		if yamlErr == nil {
			return &m, nil
		}
		jsonErr := json.Unmarshal(data, &m)
		if jsonErr == nil {
			return &m, nil
		}
		return nil, fmt.Errorf("failed to parse stage manifest (tried YAML and JSON): %w", yamlErr)
	}
}

// getStageValidator returns a cached validator compiled from the embedded
// stage schema.
func getStageValidator() (*schema.Validator, error) {
	stageValidatorOnce.Do(func() {
		if len(schemasassets.StageManifestSchema) == 0 {
			stageValidatorErr = fmt.Errorf("%w: embedded stage-manifest schema is empty", ErrStageSchemaNotFound)
			return
		}
		stageValidator, stageValidatorErr = schema.NewValidator(schemasassets.StageManifestSchema)
		if stageValidatorErr != nil {
			stageValidatorErr = fmt.Errorf("failed to compile stage manifest schema: %w", stageValidatorErr)
		}
	})
	return stageValidator, stageValidatorErr
}

var (
	stageValidatorOnce sync.Once
	stageValidator     *schema.Validator
	stageValidatorErr  error
)

// stageValidationErrors wraps ValidationErrors with stage-specific unwrap
// semantics.
type stageValidationErrors ValidationErrors

func (e stageValidationErrors) Error() string {
	return ValidationErrors(e).Error()
}

func (e stageValidationErrors) Unwrap() error {
	return ErrStageValidationFailed
}
