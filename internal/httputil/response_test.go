package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"Conflict", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()

			WriteJSON(recorder, tt.statusCode, map[string]string{"syncId": "t1"})

			if recorder.Code != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, recorder.Code)
			}
			if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}
			var body map[string]string
			if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["syncId"] != "t1" {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}

func TestWriteErrorProducesCorrectJSON(t *testing.T) {
	recorder := httptest.NewRecorder()

	WriteError(recorder, http.StatusPreconditionRequired, "confirmation required")

	if recorder.Code != http.StatusPreconditionRequired {
		t.Errorf("expected status %d, got %d", http.StatusPreconditionRequired, recorder.Code)
	}
	var body ErrorBody
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "confirmation required" {
		t.Errorf("expected error %q, got %q", "confirmation required", body.Error)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Direction string `json:"direction"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"direction":"next"}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Direction != "next" {
		t.Errorf("expected next, got %q", v.Direction)
	}
}

func TestDecodeJSON_RejectsOversizedBody(t *testing.T) {
	var v map[string]string
	body := `{"direction":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if err := DecodeJSON(httptest.NewRecorder(), req, &v); err == nil {
		t.Error("expected error for oversized body")
	}
}
