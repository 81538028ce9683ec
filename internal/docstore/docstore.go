// Package docstore is the boundary to the live document database holding
// groups, presentations and their transcripts. Rows are loosely typed
// (every column nullable) and are parsed into records with defaulted fields
// before anything else in the service sees them.
package docstore

import (
	"context"
	"errors"
	"sort"
)

var ErrNotFound = errors.New("document not found")

// Collection names carried in change notifications.
const (
	CollectionGroups       = "groups"
	CollectionPresentation = "presentation"
	CollectionTranscripts  = "transcripts"
)

type Group struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	PresentationSyncID string `json:"presentationSyncId"`
}

type Presentation struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	SyncID string `json:"syncId"`
	Group  string `json:"group"`
}

type Transcript struct {
	ID         string `json:"id"`
	Order      int    `json:"order"`
	Transcript string `json:"transcript"`
	Script     string `json:"script"`
	VoicePath  string `json:"voicePath"`
	// VoiceURL is filled by the resolver after blob resolution.
	VoiceURL string `json:"voiceUrl,omitempty"`
}

// Subscription is a live document subscription. Close releases it and is
// safe to call more than once.
type Subscription interface {
	Close()
}

// Store is the full document store contract. Consumers declare the narrower
// interfaces they need.
type Store interface {
	GetGroup(ctx context.Context, id string) (Group, error)
	GetPresentation(ctx context.Context, id string) (Presentation, error)
	ListGroups(ctx context.Context) ([]Group, error)
	ListGroupPresentations(ctx context.Context, groupID string) ([]Presentation, error)
	ListTranscripts(ctx context.Context, presentationID string) ([]Transcript, error)

	// SubscribeGroup delivers the current snapshot and every later change.
	// A missing document is delivered as a Group with only ID set.
	SubscribeGroup(ctx context.Context, id string, fn func(Group)) (Subscription, error)
	SubscribePresentation(ctx context.Context, id string, fn func(Presentation)) (Subscription, error)

	SetSyncID(ctx context.Context, presentationID, transcriptID string) error
	SetPresentationSyncID(ctx context.Context, groupID, presentationID string) error

	PutGroup(ctx context.Context, g Group) error
	PutPresentation(ctx context.Context, p Presentation) error
	PutTranscript(ctx context.Context, presentationID string, t Transcript) error
}

func parseGroup(id string, name, presentationSyncID *string) Group {
	return Group{
		ID:                 id,
		Name:               deref(name),
		PresentationSyncID: deref(presentationSyncID),
	}
}

func parsePresentation(id string, title, syncID, group *string) Presentation {
	return Presentation{
		ID:     id,
		Title:  deref(title),
		SyncID: deref(syncID),
		Group:  deref(group),
	}
}

func parseTranscript(id string, order *int32, transcript, script, voicePath *string) Transcript {
	t := Transcript{
		ID:         id,
		Transcript: deref(transcript),
		Script:     deref(script),
		VoicePath:  deref(voicePath),
	}
	if order != nil {
		t.Order = int(*order)
	}
	return t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SortTranscripts orders by Order, then ID so every client sees the same
// sequence when two lines share an order value.
func SortTranscripts(list []Transcript) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Order != list[j].Order {
			return list[i].Order < list[j].Order
		}
		return list[i].ID < list[j].ID
	})
}
