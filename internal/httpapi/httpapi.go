// Package httpapi defines the error taxonomy and response envelopes shared by
// every handler, plus the request-scoped middleware around them.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bowlsbackend/internal/logger"
)

// Kind classifies an API error. Callable endpoints return it verbatim so
// clients can branch on it without parsing messages.
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindNotFound         Kind = "not-found"
	KindInvalidArgument  Kind = "invalid-argument"
	KindAlreadyExists    Kind = "already-exists"
	KindInvalidSignature Kind = "invalid-signature"
	KindInternal         Kind = "internal"
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument, KindInvalidSignature:
		return http.StatusBadRequest
	case KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified API error. The wrapped cause is logged at the
// boundary but never serialized to the caller.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds an Error of the given kind.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that carries an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind from an error, downgrading anything unclassified
// to internal.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

type contextKey string

const requestIDKey contextKey = "request_id"

// errorBody is the structured error returned to callable-endpoint callers.
type errorBody struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type successEnvelope struct {
	Result    interface{} `json:"result"`
	RequestID string      `json:"request_id,omitempty"`
}

// WriteError logs err and writes its structured form. Unclassified errors
// surface as a generic internal message so processor and database detail
// never leaks to the caller.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := KindOf(err)
	message := "internal error"

	var apiErr *Error
	if errors.As(err, &apiErr) {
		message = apiErr.Message
	}

	logger.LogHTTPError(r, kind.Status(), err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.Status())
	json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Kind:      kind,
		Message:   message,
		RequestID: RequestID(r.Context()),
	}})
}

// WriteSuccess writes a successful callable result.
func WriteSuccess(w http.ResponseWriter, r *http.Request, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(successEnvelope{
		Result:    result,
		RequestID: RequestID(r.Context()),
	})
}

// ParseJSONRequest decodes a JSON request body. Unknown fields are ignored,
// not rejected: clients send extra properties and expect them dropped.
func ParseJSONRequest(r *http.Request, v interface{}) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "application/json") {
		return E(KindInvalidArgument, "content-type must be application/json")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return Wrap(KindInvalidArgument, "invalid JSON body", err)
	}
	return nil
}

// RequestID returns the request's correlation ID, if any.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID tags every request with a correlation ID and echoes it back
// in the X-Request-ID header.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LogRequests records method, path and duration for every request.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.LogInfo("%s %s took %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// Recover turns handler panics into internal errors instead of dropping the
// connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				WriteError(w, r, Wrap(KindInternal, "internal error", fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
