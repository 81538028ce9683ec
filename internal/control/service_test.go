package control

import (
	"context"
	"errors"
	"testing"

	"github.com/livescript/livescript/internal/docstore"
)

func orderedList(ids ...string) []docstore.Transcript {
	list := make([]docstore.Transcript, len(ids))
	for i, id := range ids {
		list[i] = docstore.Transcript{ID: id, Order: i}
	}
	return list
}

func TestStep(t *testing.T) {
	list := orderedList("t0", "t1", "t2", "t3")

	tests := []struct {
		name    string
		list    []docstore.Transcript
		current string
		dir     Direction
		want    string
		wantOK  bool
	}{
		{"forward from middle", list, "t1", Next, "t2", true},
		{"backward from middle", list, "t2", Previous, "t1", true},
		{"forward at end", list, "t3", Next, "t3", false},
		{"backward at start", list, "t0", Previous, "t0", false},
		{"forward from nothing", list, "", Next, "t0", true},
		{"backward from nothing", list, "", Previous, "", false},
		{"forward from unknown id", list, "gone", Next, "t0", true},
		{"backward from unknown id", list, "gone", Previous, "gone", false},
		{"empty list", nil, "", Next, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Step(tt.list, tt.current, tt.dir)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Step(%q, %d) = (%q, %v), want (%q, %v)", tt.current, tt.dir, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"next", "Forward", " down "} {
		if d, err := ParseDirection(s); err != nil || d != Next {
			t.Errorf("ParseDirection(%q) = %d, %v", s, d, err)
		}
	}
	for _, s := range []string{"previous", "prev", "back", "UP"} {
		if d, err := ParseDirection(s); err != nil || d != Previous {
			t.Errorf("ParseDirection(%q) = %d, %v", s, d, err)
		}
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
}

func newMemoryService(t *testing.T) (*Service, *docstore.Memory) {
	t.Helper()
	ctx := context.Background()
	m := docstore.NewMemory()
	_ = m.PutGroup(ctx, docstore.Group{ID: "g1", Name: "Main hall"})
	_ = m.PutGroup(ctx, docstore.Group{ID: "g2", Name: "Side room"})
	_ = m.PutPresentation(ctx, docstore.Presentation{ID: "p1", Title: "Opening", Group: "g1"})
	_ = m.PutPresentation(ctx, docstore.Presentation{ID: "p2", Title: "Closing", Group: "g1"})
	_ = m.PutPresentation(ctx, docstore.Presentation{ID: "p3", Title: "Elsewhere", Group: "g2"})
	// Inserted out of order on purpose.
	for _, tr := range []docstore.Transcript{{ID: "t2", Order: 2}, {ID: "t0", Order: 0}, {ID: "t3", Order: 3}, {ID: "t1", Order: 1}} {
		_ = m.PutTranscript(ctx, "p1", tr)
	}
	return NewService(m), m
}

func syncIDOf(t *testing.T, m *docstore.Memory, id string) string {
	t.Helper()
	p, err := m.GetPresentation(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p.SyncID
}

func TestAdvance_WalksOrderedLinesAndStopsAtEnds(t *testing.T) {
	svc, m := newMemoryService(t)
	ctx := context.Background()

	if got, err := svc.Advance(ctx, "p1", Previous); err != nil || got != "" {
		t.Fatalf("expected backward from nothing to be a no-op, got %q, %v", got, err)
	}

	want := []string{"t0", "t1", "t2", "t3", "t3"}
	for _, w := range want {
		got, err := svc.Advance(ctx, "p1", Next)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != w || syncIDOf(t, m, "p1") != w {
			t.Fatalf("expected %s, got %s (stored %s)", w, got, syncIDOf(t, m, "p1"))
		}
	}

	for _, w := range []string{"t2", "t1", "t0", "t0"} {
		if got, _ := svc.Advance(ctx, "p1", Previous); got != w {
			t.Fatalf("expected %s, got %s", w, got)
		}
	}
}

func TestAdvance_MissingPresentation(t *testing.T) {
	svc, _ := newMemoryService(t)
	_, err := svc.Advance(context.Background(), "ghost", Next)
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJump(t *testing.T) {
	svc, m := newMemoryService(t)
	ctx := context.Background()

	if err := svc.Jump(ctx, "p1", "t2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := syncIDOf(t, m, "p1"); got != "t2" {
		t.Errorf("expected t2, got %s", got)
	}

	if err := svc.Jump(ctx, "p1", "other"); !errors.Is(err, ErrTranscriptNotInPresentation) {
		t.Errorf("expected ErrTranscriptNotInPresentation, got %v", err)
	}
	if got := syncIDOf(t, m, "p1"); got != "t2" {
		t.Errorf("rejected jump must not write, got %s", got)
	}
}

func TestReset(t *testing.T) {
	svc, m := newMemoryService(t)
	ctx := context.Background()
	_ = svc.Jump(ctx, "p1", "t3")

	if err := svc.Reset(ctx, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := syncIDOf(t, m, "p1"); got != "" {
		t.Errorf("expected empty sync id, got %q", got)
	}
	if err := svc.Reset(ctx, "ghost"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPromoteToAudience(t *testing.T) {
	svc, m := newMemoryService(t)
	ctx := context.Background()

	if err := svc.PromoteToAudience(ctx, "g1", "p2", false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if err := svc.PromoteToAudience(ctx, "g1", "p3", true); !errors.Is(err, ErrPresentationNotInGroup) {
		t.Fatalf("expected ErrPresentationNotInGroup, got %v", err)
	}
	g, _ := m.GetGroup(ctx, "g1")
	if g.PresentationSyncID != "" {
		t.Fatalf("rejected promotions must not write, got %q", g.PresentationSyncID)
	}

	if err := svc.PromoteToAudience(ctx, "g1", "p2", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g, _ = m.GetGroup(ctx, "g1")
	if g.PresentationSyncID != "p2" {
		t.Errorf("expected p2 live, got %q", g.PresentationSyncID)
	}
}

func TestGroupPresentations_MarksLive(t *testing.T) {
	svc, _ := newMemoryService(t)
	ctx := context.Background()
	_ = svc.PromoteToAudience(ctx, "g1", "p1", true)

	items, err := svc.GroupPresentations(ctx, "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 presentations, got %d", len(items))
	}
	for _, it := range items {
		if it.Live != (it.ID == "p1") {
			t.Errorf("unexpected live flag for %s: %v", it.ID, it.Live)
		}
	}

	if _, err := svc.GroupPresentations(ctx, "ghost"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestShareLinks(t *testing.T) {
	links := ShareLinks("https://live.example.com/", "g 1")

	if links.Audience != "https://live.example.com/conference/g%201" {
		t.Errorf("unexpected audience link %q", links.Audience)
	}
	if links.Control != links.Audience+"/control" {
		t.Errorf("unexpected control link %q", links.Control)
	}
	if links.Screen != links.Audience+"/transcript" {
		t.Errorf("unexpected screen link %q", links.Screen)
	}
	if links.Speaker != links.Audience+"/speaker" {
		t.Errorf("unexpected speaker link %q", links.Speaker)
	}
}
