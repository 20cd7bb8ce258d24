package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidationFailed(t *testing.T) {
	w := httptest.NewRecorder()
	ValidationFailed(w, "invalid input", []string{"name"})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "validation_failed" || body.Details == nil {
		t.Errorf("body = %+v", body)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{"))
	var dst map[string]any
	if Decode(w, r, &dst) {
		t.Fatal("Decode() = true for malformed JSON")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
