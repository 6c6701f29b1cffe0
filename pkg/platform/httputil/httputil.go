// Package httputil holds the JSON response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "rollcall/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	Errors           []string `json:"errors,omitempty"`
}

// ToHTTPStatus maps a domain error code to its HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as the JSON error envelope. Internal errors never
// expose their description.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err, false)
}

// WriteErrorVerbose is WriteError but keeps the description of internal
// errors; used only in development mode.
func WriteErrorVerbose(w http.ResponseWriter, err error) {
	writeError(w, err, true)
}

func writeError(w http.ResponseWriter, err error, verbose bool) {
	resp := ErrorResponse{Error: string(dErrors.CodeInternal)}
	status := http.StatusInternalServerError

	if de, ok := dErrors.As(err); ok {
		status = ToHTTPStatus(de.Code)
		resp.Error = string(de.Code)
		resp.Errors = de.Details
		if status != http.StatusInternalServerError {
			resp.ErrorDescription = de.Message
		}
	}
	if status == http.StatusInternalServerError && verbose && err != nil {
		resp.ErrorDescription = err.Error()
	}

	WriteJSON(w, status, resp)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
