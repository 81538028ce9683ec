package storage_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/livescript/livescript/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(context.Background(), storage.Config{
		Endpoint:       "http://localhost:9000",
		PublicEndpoint: "https://media.example.com",
		Bucket:         "voices",
		AccessKey:      "test",
		SecretKey:      "test",
	})
	if err != nil {
		t.Fatalf("expected no error creating storage client, got: %v", err)
	}
	return s
}

func TestResolve_PresignsAgainstPublicEndpoint(t *testing.T) {
	s := newTestStorage(t)

	url, err := s.Resolve(context.Background(), "/voices/p1/t1.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "https://media.example.com/voices/voices/p1/t1.mp3?") {
		t.Errorf("unexpected presigned URL: %s", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=21600") {
		t.Errorf("expected default expiry in URL, got %s", url)
	}
}

func TestResolve_EmptyPathHasNoAudio(t *testing.T) {
	s := newTestStorage(t)

	url, err := s.Resolve(context.Background(), "  ")
	if err != nil || url != "" {
		t.Errorf("expected empty URL and no error, got %q, %v", url, err)
	}
}

func TestGenerateDownloadURL_CustomExpiry(t *testing.T) {
	s := newTestStorage(t)

	url, err := s.GenerateDownloadURL(context.Background(), "voices/a.mp3", 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "X-Amz-Expires=300") {
		t.Errorf("expected 300s expiry, got %s", url)
	}
}

func TestVoiceContentType(t *testing.T) {
	tests := map[string]string{
		"a.mp3":  "audio/mpeg",
		"b.M4A":  "audio/mp4",
		"c.wav":  "audio/wav",
		"d.ogg":  "audio/ogg",
		"e.bin":  "application/octet-stream",
		"noext":  "application/octet-stream",
		"f.webm": "audio/webm",
	}
	for path, want := range tests {
		if got := storage.VoiceContentType(path); got != want {
			t.Errorf("VoiceContentType(%q) = %q, want %q", path, got, want)
		}
	}
}
