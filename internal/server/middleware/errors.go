// Package middleware holds the daemon's chi middleware: request-ID
// propagation and panic recovery, both rendering errors as the same
// JSON envelope shape the rest of the HTTP surface uses.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// ErrorResponse is the wire shape of every error the daemon returns.
type ErrorResponse struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		RequestID string         `json:"request_id,omitempty"`
		Details   map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// RequestID ensures every request carries an ID, taken from the
// X-Request-ID header if present or generated otherwise, and makes it
// available to downstream handlers (notably Recovery) via context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// Recovery recovers panics raised by next, logging nothing itself
// (callers wire a logging middleware separately) and responding with a
// 500 INTERNAL_ERROR envelope rather than letting net/http's default
// recoverer close the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				var msg string
				if err, ok := rec.(error); ok {
					msg = fmt.Sprintf("panic: %v", err)
				} else {
					msg = fmt.Sprintf("panic: %v", rec)
				}
				envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", msg).
					WithCorrelationID(requestIDFrom(r))
				writeErrorResponse(w, envelope, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is an alias for Recovery, named for readers wiring it as
// a generic "handle errors from this subtree" middleware rather than
// specifically a panic recoverer.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{}
	resp.Error.Code = envelope.Code
	resp.Error.Message = envelope.Message
	resp.Error.RequestID = envelope.CorrelationID
	resp.Error.Details = envelope.Details

	_ = json.NewEncoder(w).Encode(resp)
}
