package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/livescript/livescript/internal/docstore"
	"github.com/pashagolub/pgxmock/v4"
)

const testBaseURL = "https://live.example.com"

func strPtr(s string) *string { return &s }

func int32Ptr(v int32) *int32 { return &v }

func newTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/api/presentations/{id}", h.GetPresentation)
	r.Post("/api/presentations/{id}/advance", h.Advance)
	r.Post("/api/presentations/{id}/jump", h.Jump)
	r.Post("/api/presentations/{id}/reset", h.Reset)
	r.Get("/api/groups/{id}/presentations", h.ListGroupPresentations)
	r.Get("/api/groups/{id}/links", h.ShareLinks)
	r.Post("/api/groups/{id}/promote", h.Promote)
	return r
}

func expectPresentation(mock pgxmock.PgxPoolIface, id, syncID, group string) {
	mock.ExpectQuery(`SELECT title, sync_id, group_id FROM presentations WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"title", "sync_id", "group_id"}).
			AddRow(strPtr("Opening"), strPtr(syncID), strPtr(group)))
}

func expectTranscripts(mock pgxmock.PgxPoolIface, presentationID string, ids ...string) {
	rows := pgxmock.NewRows([]string{"id", "order_index", "transcript", "script", "voice_path"})
	for i, id := range ids {
		rows.AddRow(id, int32Ptr(int32(i)), strPtr("line "+id), (*string)(nil), (*string)(nil))
	}
	mock.ExpectQuery(`SELECT id, order_index, transcript, script, voice_path FROM transcripts`).
		WithArgs(presentationID).
		WillReturnRows(rows)
}

func TestAdvanceHandler_WritesNextLine(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectPresentation(mock, "p1", "t1", "g1")
	expectTranscripts(mock, "p1", "t0", "t1", "t2")
	mock.ExpectExec(`UPDATE presentations SET sync_id = \$2`).
		WithArgs("p1", "t2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/presentations/p1/advance", strings.NewReader(`{"direction":"next"}`))
	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var resp syncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.SyncID != "t2" {
		t.Errorf("expected t2, got %q", resp.SyncID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestAdvanceHandler_AtEndDoesNotWrite(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectPresentation(mock, "p1", "t2", "g1")
	expectTranscripts(mock, "p1", "t0", "t1", "t2")

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/presentations/p1/advance", strings.NewReader(`{"direction":"next"}`))
	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestAdvanceHandler_InvalidDirection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/presentations/p1/advance", strings.NewReader(`{"direction":"left"}`))
	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestJumpHandler_RejectsForeignTranscript(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectTranscripts(mock, "p1", "t0", "t1")

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/presentations/p1/jump", strings.NewReader(`{"transcriptId":"x9"}`))
	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d: %s", http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestResetHandler_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE presentations SET sync_id = \$2`).
		WithArgs("ghost", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/presentations/ghost/reset", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestPromoteHandler_RequiresConfirmation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/groups/g1/promote", strings.NewReader(`{"presentationId":"p2"}`))
	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusPreconditionRequired {
		t.Errorf("expected status %d, got %d", http.StatusPreconditionRequired, rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no queries: %v", err)
	}
}

func TestPromoteHandler_Confirmed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectPresentation(mock, "p2", "", "g1")
	mock.ExpectExec(`UPDATE groups SET presentation_sync_id = \$2`).
		WithArgs("g1", "p2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/groups/g1/promote", strings.NewReader(`{"presentationId":"p2","confirm":true}`))
	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestPromoteHandler_OtherGroup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectPresentation(mock, "p3", "", "g2")

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/groups/g1/promote", strings.NewReader(`{"presentationId":"p3","confirm":true}`))
	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestPromoteHandler_RejectsBadPresentationID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	for _, body := range []string{`{"confirm":true}`, `{"presentationId":"../p2","confirm":true}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/groups/g1/promote", strings.NewReader(body))
		newTestRouter(h).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", body, http.StatusBadRequest, rec.Code)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no queries: %v", err)
	}
}

func TestListGroupPresentationsHandler(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT name, presentation_sync_id FROM groups WHERE id = \$1`).
		WithArgs("g1").
		WillReturnRows(pgxmock.NewRows([]string{"name", "presentation_sync_id"}).
			AddRow(strPtr("Main hall"), strPtr("p2")))
	mock.ExpectQuery(`SELECT id, title, sync_id, group_id FROM presentations`).
		WithArgs("g1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "sync_id", "group_id"}).
			AddRow("p2", strPtr("Closing"), (*string)(nil), strPtr("g1")).
			AddRow("p1", strPtr("Opening"), strPtr("t3"), strPtr("g1")))

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups/g1/presentations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var items []GroupPresentation
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(items) != 2 || !items[0].Live || items[1].Live || items[1].SyncID != "t3" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestShareLinksHandler(t *testing.T) {
	h := NewHandler(NewService(nil), testBaseURL)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups/g1/links", nil))

	var links Links
	if err := json.Unmarshal(rec.Body.Bytes(), &links); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if links.Control != testBaseURL+"/conference/g1/control" {
		t.Errorf("unexpected control link %q", links.Control)
	}
}

func TestGetPresentationHandler_OrdersTranscripts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectPresentation(mock, "p1", "t1", "g1")
	expectTranscripts(mock, "p1", "t0", "t1")

	h := NewHandler(NewService(docstore.NewPG(mock)), testBaseURL)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presentations/p1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if snap.Presentation.SyncID != "t1" || len(snap.Transcripts) != 2 || snap.Transcripts[1].Transcript != "line t1" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}
