package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "rollcall/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})

	t.Run("validation error lists every detail", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.NewValidation("Invalid update data", []string{"first", "second"}))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(body.Errors) != 2 || body.Errors[0] != "first" || body.Errors[1] != "second" {
			t.Fatalf("unexpected errors list %v", body.Errors)
		}
	})

	t.Run("plain errors become internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("boom"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})

	t.Run("verbose keeps internal description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteErrorVerbose(w, errors.New("boom"))

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error_description"] != "boom" {
			t.Fatalf("expected description boom, got %q", body["error_description"])
		}
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeValidation:   http.StatusBadRequest,
		dErrors.CodeUnauthorized: http.StatusUnauthorized,
		dErrors.CodeForbidden:    http.StatusForbidden,
		dErrors.CodeNotFound:     http.StatusNotFound,
		dErrors.CodeConflict:     http.StatusConflict,
		dErrors.CodeInternal:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := ToHTTPStatus(code); got != want {
			t.Errorf("%s: expected %d, got %d", code, want, got)
		}
	}
}
