// Package response writes JSON API responses and typed error bodies.
//
// Error bodies always carry a human-readable "error" and a machine-readable
// "code" so that clients branch on the code, never on the prose:
//
//	{"error": "Active subscription required", "code": "subscription_required", "needsSubscription": true}
package response

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPError pairs a status code with a stable machine-readable key.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e HTTPError) Error() string { return e.Code }

// WithMessage returns a copy of e with a different human-readable message.
func (e HTTPError) WithMessage(msg string) HTTPError {
	e.Message = msg
	return e
}

var (
	ErrBadRequest      = HTTPError{Status: http.StatusBadRequest, Code: "bad_request", Message: "Bad request"}
	ErrUnauthorized    = HTTPError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "Authentication required"}
	ErrForbidden       = HTTPError{Status: http.StatusForbidden, Code: "forbidden", Message: "Forbidden"}
	ErrNotFound        = HTTPError{Status: http.StatusNotFound, Code: "not_found", Message: "Not found"}
	ErrConflict        = HTTPError{Status: http.StatusConflict, Code: "conflict", Message: "Conflict"}
	ErrTooManyRequests = HTTPError{Status: http.StatusTooManyRequests, Code: "too_many_requests", Message: "Too many requests"}
	ErrInternal        = HTTPError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "Internal server error"}
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes e as an error body. Extra fields are merged at the top level,
// which is how remediation flags such as needsUpgrade reach the client.
func Error(w http.ResponseWriter, e HTTPError, extra map[string]any) {
	body := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		body[k] = v
	}
	body["error"] = e.Message
	body["code"] = e.Code
	JSON(w, e.Status, body)
}

// FromError writes err if it is an HTTPError, or a generic 500 otherwise.
func FromError(w http.ResponseWriter, err error) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		Error(w, httpErr, nil)
		return
	}
	Error(w, ErrInternal, nil)
}
