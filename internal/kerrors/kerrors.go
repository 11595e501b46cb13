// Package kerrors classifies the errors this engine's tasks and stores
// can raise, so the Dispatcher, Stage Processor, and CLI each know how
// to react without inspecting string messages. It wraps
// gofulmen/errors for the underlying exit-code/message plumbing and
// adds the taxonomy this engine needs on top: NotFound, Transient,
// Terminal, UniquenessRace, and Validation.
package kerrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	fulmenerrors "github.com/fulmenhq/gofulmen/errors"
)

// NotFoundError signals the thing a task was looking for doesn't (or
// no longer does) exist: a missing target, a 404 from a Request Task.
// The Dispatcher never retries a NotFoundError.
type NotFoundError struct {
	Subject string
	Err     error
}

func NewNotFoundError(subject string, err error) *NotFoundError {
	return &NotFoundError{Subject: subject, Err: err}
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: not found: %v", e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: not found", e.Subject)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TransientError signals a retryable failure: a timed-out request, a
// rate-limited upstream, a momentarily unavailable store. The
// Dispatcher retries these with backoff and jitter up to the task's
// configured retry budget.
type TransientError struct {
	Err error
}

func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// TerminalError signals a failure that will never resolve on retry: a
// malformed response shape, a permanently revoked credential. A
// TransientError that exhausts the retry budget also fails the task
// (the ExecutionToken moves to FAILED), but it is returned as the
// original TransientError, not rewrapped as a TerminalError.
type TerminalError struct {
	Err error
}

func NewTerminalError(err error) *TerminalError {
	return &TerminalError{Err: err}
}

func (e *TerminalError) Error() string { return fmt.Sprintf("terminal: %v", e.Err) }
func (e *TerminalError) Unwrap() error { return e.Err }

// UniquenessRaceError signals that a unique-constraint write lost a
// race with a concurrent writer - expected under the Target Discovery
// Pipeline's overestimate-by-design concurrency model. Callers
// downgrade this to a per-item upsert and silently drop the loser
// rather than treating it as a failure.
type UniquenessRaceError struct {
	Key string
	Err error
}

func NewUniquenessRaceError(key string, err error) *UniquenessRaceError {
	return &UniquenessRaceError{Key: key, Err: err}
}

func (e *UniquenessRaceError) Error() string {
	return fmt.Sprintf("uniqueness race on %q: %v", e.Key, e.Err)
}
func (e *UniquenessRaceError) Unwrap() error { return e.Err }

// ValidationError signals a malformed CLI argument or Series/Stage
// definition file. It never reaches the Dispatcher; it's a boundary
// error raised directly by internal/cmd and pkg/manifest.
type ValidationError struct {
	Message string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string { return e.Message }

// IsRetryable reports whether the Dispatcher should retry the task that
// produced err: true for TransientError, false for everything else
// (including an unclassified error, which is treated conservatively as
// non-retryable so unexpected failures fail fast instead of looping).
func IsRetryable(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsNotFound reports whether err (or anything it wraps) is a
// NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUniquenessRace reports whether err (or anything it wraps) is a
// UniquenessRaceError.
func IsUniquenessRace(err error) bool {
	var race *UniquenessRaceError
	return errors.As(err, &race)
}

// Envelope renders err as a gofulmen ErrorEnvelope, the shape the
// daemon's HTTP error responses (internal/server/handlers) use. The
// envelope code reflects this package's taxonomy.
func Envelope(err error) *fulmenerrors.ErrorEnvelope {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return fulmenerrors.NewErrorEnvelope("NOT_FOUND", err.Error())
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return fulmenerrors.NewErrorEnvelope("VALIDATION_ERROR", err.Error())
	}
	var race *UniquenessRaceError
	if errors.As(err, &race) {
		return fulmenerrors.NewErrorEnvelope("UNIQUENESS_RACE", err.Error())
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return fulmenerrors.NewErrorEnvelope("TRANSIENT_ERROR", err.Error())
	}
	var terminal *TerminalError
	if errors.As(err, &terminal) {
		return fulmenerrors.NewErrorEnvelope("TERMINAL_ERROR", err.Error())
	}
	return fulmenerrors.NewErrorEnvelope("INTERNAL_ERROR", err.Error())
}

// HTTPErrorResponse is the wire shape every HTTP error response across
// the daemon decodes into, matching ErrorResponse in
// internal/server/middleware.
type HTTPErrorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// StatusForCode maps this package's envelope codes (and the router-level
// codes internal/server raises directly, like NOT_FOUND and
// METHOD_NOT_ALLOWED) to an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "METHOD_NOT_ALLOWED":
		return http.StatusMethodNotAllowed
	case "VALIDATION_ERROR":
		return http.StatusBadRequest
	case "UNIQUENESS_RACE":
		return http.StatusConflict
	case "TRANSIENT_ERROR":
		return http.StatusServiceUnavailable
	case "TERMINAL_ERROR":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError writes code/message as an HTTPErrorResponse with the
// status StatusForCode(code) resolves to.
func RespondWithError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForCode(code))

	resp := HTTPErrorResponse{}
	resp.Error.Code = code
	resp.Error.Message = message
	_ = json.NewEncoder(w).Encode(resp)
}
