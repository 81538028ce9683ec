package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/livescript/livescript/internal/httputil"
	"github.com/livescript/livescript/internal/resolver"
)

func servePage(t *testing.T, pattern, path string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get(pattern, handler)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(httputil.ContextWithNonce(req.Context(), "test-nonce"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPage_AudienceRendersConfigAndNonce(t *testing.T) {
	h := NewHandler()
	rec := servePage(t, "/audience/{id}", "/audience/p1", h.Page(Audience, resolver.KindPresentation, "/audience/"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<script nonce="test-nonce">`,
		`"variant":"audience"`,
		`"kind":"presentation"`,
		`"id":"p1"`,
		`"fontSize":1.8`,
		`"mainFontSize":3`,
		`"subFontSize":0.9`,
		`"step":0.2`,
		`"min":1`,
		`"mutedKey":"audioMuted"`,
		`id="gate"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %s", want)
		}
	}
	if !strings.Contains(body, `"redirectPrefix":"/audience/"`) && !strings.Contains(body, `"redirectPrefix":"\/audience\/"`) {
		t.Error("expected redirect prefix for a presentation-addressed audience page")
	}
	if strings.Contains(body, `id="login"`) {
		t.Error("audience page must not render operator login")
	}
}

func TestPage_GroupControlRendersPanel(t *testing.T) {
	h := NewHandler()
	rec := servePage(t, "/conference/{id}/control", "/conference/g1/control", h.Page(Presenter, resolver.KindGroup, ""))

	body := rec.Body.String()
	if !strings.Contains(body, `id="panel"`) || !strings.Contains(body, `id="login"`) {
		t.Error("expected switcher panel and login on the control page")
	}
	if !strings.Contains(body, `"conference":true`) {
		t.Error("expected conference flag")
	}
	if strings.Contains(body, `id="gate"`) {
		t.Error("control page must not render the audio gate")
	}
	if strings.Contains(body, `"mutedKey"`) {
		t.Error("control page has no mute toggle to remember")
	}
}

func TestPage_SpeakerHasFontInputsNoRedirectForGroup(t *testing.T) {
	h := NewHandler()
	rec := servePage(t, "/conference/{id}/speaker", "/conference/g1/speaker", h.Page(Speaker, resolver.KindGroup, "/speaker/"))

	body := rec.Body.String()
	if !strings.Contains(body, `id="main-size"`) || !strings.Contains(body, `id="sub-size"`) {
		t.Error("expected speaker font inputs")
	}
	if strings.Contains(body, `"redirectPrefix":`) {
		t.Error("group-addressed pages never redirect")
	}
}

func TestPage_EscapesID(t *testing.T) {
	h := NewHandler()
	rec := servePage(t, "/audience/{id}", "/audience/%3Cscript%3E", h.Page(Audience, resolver.KindPresentation, "/audience/"))

	if strings.Contains(rec.Body.String(), `"id":"<script>"`) {
		t.Error("expected id to be escaped in script context")
	}
}
