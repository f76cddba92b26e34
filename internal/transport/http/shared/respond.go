// Package shared holds the response helpers every handler uses, so the JSON
// envelope and the error-to-status translation live in one place.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "gesservorconv/pkg/domain-errors"
)

type errorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates a coded domain error into its HTTP response. Errors
// without a code come out as 500 with a generic message so internals never
// leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := err.Error()
	if code == dErrors.CodeInternal {
		message = "internal error"
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), errorEnvelope{
		Error: message,
		Code:  string(code),
	})
}
