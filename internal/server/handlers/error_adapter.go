package handlers

import (
	"net/http"

	"github.com/kluhan/kraken/internal/kerrors"
)

// ErrorResponderFunc writes err to w in response to r. SetHTTPErrorResponder
// lets callers (chiefly tests) substitute this for assertions without
// going through the real kerrors envelope/status mapping.
type ErrorResponderFunc func(w http.ResponseWriter, r *http.Request, err error)

var httpErrorResponder ErrorResponderFunc = defaultErrorResponder

// SetHTTPErrorResponder overrides the responder used by respondWithError.
// Passing nil resets to the default.
func SetHTTPErrorResponder(fn ErrorResponderFunc) {
	if fn == nil {
		ResetHTTPErrorResponder()
		return
	}
	httpErrorResponder = fn
}

// ResetHTTPErrorResponder restores the default kerrors-backed responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultErrorResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}

func defaultErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	envelope := kerrors.Envelope(err)
	kerrors.RespondWithError(w, envelope.Code, envelope.Message)
}
