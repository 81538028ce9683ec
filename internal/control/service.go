// Package control implements the operator's writes: stepping through a
// presentation's lines, jumping, resetting and choosing which presentation
// a conference group shows.
package control

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/livescript/livescript/internal/docstore"
	"github.com/livescript/livescript/internal/metrics"
)

var (
	ErrTranscriptNotInPresentation = errors.New("transcript does not belong to this presentation")
	ErrConfirmationRequired        = errors.New("showing a presentation to the audience requires confirmation")
	ErrPresentationNotInGroup      = errors.New("presentation does not belong to this group")
	ErrInvalidDirection            = errors.New("direction must be next or previous")
)

type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next", "forward", "down":
		return Next, nil
	case "previous", "prev", "back", "up":
		return Previous, nil
	default:
		return 0, ErrInvalidDirection
	}
}

// Store is the part of the document store the control surface needs.
type Store interface {
	GetGroup(ctx context.Context, id string) (docstore.Group, error)
	GetPresentation(ctx context.Context, id string) (docstore.Presentation, error)
	ListGroupPresentations(ctx context.Context, groupID string) ([]docstore.Presentation, error)
	ListTranscripts(ctx context.Context, presentationID string) ([]docstore.Transcript, error)
	SetSyncID(ctx context.Context, presentationID, transcriptID string) error
	SetPresentationSyncID(ctx context.Context, groupID, presentationID string) error
}

// Step returns the line id one position away from current in an ordered
// list. ok is false when nothing changes: at either end, on an empty list,
// or when stepping back from no line. Stepping forward from no line (or
// from an id the list does not contain) selects the first line.
func Step(list []docstore.Transcript, current string, dir Direction) (next string, ok bool) {
	if len(list) == 0 {
		return current, false
	}
	idx := -1
	for i := range list {
		if list[i].ID == current {
			idx = i
			break
		}
	}
	if idx == -1 {
		if dir == Next {
			return list[0].ID, true
		}
		return current, false
	}
	target := idx + int(dir)
	if target < 0 || target >= len(list) {
		return current, false
	}
	return list[target].ID, true
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Snapshot is a presentation with its ordered lines, as the operator sees it.
type Snapshot struct {
	Presentation docstore.Presentation `json:"presentation"`
	Transcripts  []docstore.Transcript `json:"transcripts"`
}

func (s *Service) Presentation(ctx context.Context, presentationID string) (Snapshot, error) {
	p, err := s.store.GetPresentation(ctx, presentationID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load presentation: %w", err)
	}
	list, err := s.orderedTranscripts(ctx, presentationID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Presentation: p, Transcripts: list}, nil
}

// Advance moves the presentation's sync id one line in dir and returns the
// resulting id. At either end it returns the current id without writing.
func (s *Service) Advance(ctx context.Context, presentationID string, dir Direction) (string, error) {
	if dir != Next && dir != Previous {
		return "", ErrInvalidDirection
	}
	p, err := s.store.GetPresentation(ctx, presentationID)
	if err != nil {
		return "", fmt.Errorf("load presentation: %w", err)
	}
	list, err := s.orderedTranscripts(ctx, presentationID)
	if err != nil {
		return "", err
	}

	next, ok := Step(list, p.SyncID, dir)
	if !ok {
		return p.SyncID, nil
	}
	if err := s.store.SetSyncID(ctx, presentationID, next); err != nil {
		return "", fmt.Errorf("advance: %w", err)
	}
	metrics.ControlWrites.WithLabelValues("advance").Inc()
	return next, nil
}

func (s *Service) Jump(ctx context.Context, presentationID, transcriptID string) error {
	list, err := s.orderedTranscripts(ctx, presentationID)
	if err != nil {
		return err
	}
	found := false
	for _, t := range list {
		if t.ID == transcriptID {
			found = true
			break
		}
	}
	if !found {
		return ErrTranscriptNotInPresentation
	}
	if err := s.store.SetSyncID(ctx, presentationID, transcriptID); err != nil {
		return fmt.Errorf("jump: %w", err)
	}
	metrics.ControlWrites.WithLabelValues("jump").Inc()
	return nil
}

// Reset clears the sync id so every view shows the waiting state.
func (s *Service) Reset(ctx context.Context, presentationID string) error {
	if err := s.store.SetSyncID(ctx, presentationID, ""); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	metrics.ControlWrites.WithLabelValues("reset").Inc()
	return nil
}

// PromoteToAudience makes presentationID the one every conference view of
// the group follows. It is rejected unless the operator confirmed it.
func (s *Service) PromoteToAudience(ctx context.Context, groupID, presentationID string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	p, err := s.store.GetPresentation(ctx, presentationID)
	if err != nil {
		return fmt.Errorf("load presentation: %w", err)
	}
	if p.Group != groupID {
		return ErrPresentationNotInGroup
	}
	if err := s.store.SetPresentationSyncID(ctx, groupID, presentationID); err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	metrics.ControlWrites.WithLabelValues("promote").Inc()
	return nil
}

type GroupPresentation struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	SyncID string `json:"syncId"`
	Live   bool   `json:"live"`
}

// GroupPresentations lists the presentations an operator can switch
// between, marking the one the group currently shows.
func (s *Service) GroupPresentations(ctx context.Context, groupID string) ([]GroupPresentation, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	list, err := s.store.ListGroupPresentations(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	items := make([]GroupPresentation, 0, len(list))
	for _, p := range list {
		items = append(items, GroupPresentation{
			ID:     p.ID,
			Title:  p.Title,
			SyncID: p.SyncID,
			Live:   p.ID == g.PresentationSyncID,
		})
	}
	return items, nil
}

func (s *Service) orderedTranscripts(ctx context.Context, presentationID string) ([]docstore.Transcript, error) {
	list, err := s.store.ListTranscripts(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	docstore.SortTranscripts(list)
	return list, nil
}

type Links struct {
	Control  string `json:"control"`
	Audience string `json:"audience"`
	Screen   string `json:"screen"`
	Speaker  string `json:"speaker"`
}

// ShareLinks builds the URLs handed out for a conference group.
func ShareLinks(baseURL, groupID string) Links {
	base := strings.TrimRight(baseURL, "/") + "/conference/" + url.PathEscape(groupID)
	return Links{
		Control:  base + "/control",
		Audience: base,
		Screen:   base + "/transcript",
		Speaker:  base + "/speaker",
	}
}
