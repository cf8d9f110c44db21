package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "PROJECT_NOT_FOUND", "project not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("want status 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("want application/json, got %s", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Code != "PROJECT_NOT_FOUND" || resp.Message != "project not found" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, nil)

	if rec.Body.Len() != 0 {
		t.Errorf("want empty body, got %q", rec.Body.String())
	}
}
