package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Sentinel errors for view registration and server lifecycle.
var (
	// ErrInvalidView is returned when a view lacks a URL, a name or handlers.
	ErrInvalidView = errors.New("api: invalid view")

	// ErrRouteExists is returned when a method and URL are already bound.
	ErrRouteExists = errors.New("api: route already registered")

	// ErrRoutesFrozen is returned when registering while the server is started.
	ErrRoutesFrozen = errors.New("api: routes are frozen while the server is running")

	// ErrAlreadyStarted is returned by Start unless the server is stopped.
	ErrAlreadyStarted = errors.New("api: server already started")

	// ErrNotRunning is returned by HealthCheck when the server is not serving.
	ErrNotRunning = errors.New("api: server not running")

	// ErrCertificate is returned when the TLS key pair cannot be loaded.
	ErrCertificate = errors.New("api: could not load TLS certificate")

	// ErrBind is returned when the listening socket cannot be created.
	ErrBind = errors.New("api: could not bind listening socket")
)

// Error represents a structured error response. A view handler may return
// an *Error to answer with its status instead of 500.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

func writeNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
}

func writeMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
}
