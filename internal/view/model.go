package view

import (
	"github.com/livescript/livescript/internal/docstore"
	"github.com/livescript/livescript/internal/resolver"
)

// Line is one listed transcript line.
type Line struct {
	ID     string `json:"id"`
	Order  int    `json:"order"`
	Text   string `json:"text"`
	Sub    string `json:"sub,omitempty"`
	Voice  string `json:"voice,omitempty"`
	Active bool   `json:"active"`
}

// Model is everything a screen renders for one resolver state.
type Model struct {
	Variant        string `json:"variant"`
	GroupID        string `json:"groupId,omitempty"`
	GroupName      string `json:"groupName,omitempty"`
	LivePresID     string `json:"livePresentationId,omitempty"`
	PresentationID string `json:"presentationId"`
	Title          string `json:"title"`
	SyncID         string `json:"syncId"`
	// Loading is true until the transcript list has been fetched.
	Loading bool `json:"loading"`
	Waiting bool `json:"waiting"`
	// Order, Text and Sub describe the active line and are zero while
	// waiting.
	Order int    `json:"order"`
	Text  string `json:"text"`
	Sub   string `json:"sub,omitempty"`
	Lines []Line `json:"lines"`
}

func Project(s resolver.State, v Variant) Model {
	m := Model{
		Variant:        v.Name,
		GroupID:        s.Group.ID,
		GroupName:      s.Group.Name,
		LivePresID:     s.Group.PresentationSyncID,
		PresentationID: s.Presentation.ID,
		Title:          s.Presentation.Title,
		SyncID:         s.Presentation.SyncID,
		Loading:        s.Presentation.ID != "" && !s.Loaded,
		Waiting:        s.Waiting(),
		Lines:          []Line{},
	}
	if s.Active != nil {
		m.Order = s.Active.Order
		m.Text, m.Sub = texts(*s.Active, v.Text)
	}

	for _, t := range window(s.Transcripts, s.Active, v.Neighbors) {
		text, sub := texts(t, v.Text)
		line := Line{
			ID:     t.ID,
			Order:  t.Order,
			Text:   text,
			Sub:    sub,
			Active: s.Active != nil && t.ID == s.Active.ID,
		}
		if v.Control {
			line.Voice = t.VoicePath
		}
		m.Lines = append(m.Lines, line)
	}
	return m
}

func texts(t docstore.Transcript, mode TextMode) (text, sub string) {
	switch mode {
	case TextScript:
		return t.Script, ""
	case TextBoth:
		return t.Transcript, t.Script
	default:
		return t.Transcript, ""
	}
}

// window picks the listed lines. With an active line it keeps every line
// whose order is within n of the active order; without one it keeps the
// first 2n+1 lines.
func window(list []docstore.Transcript, active *docstore.Transcript, n int) []docstore.Transcript {
	switch {
	case n == AllLines:
		return list
	case n <= 0:
		return nil
	}

	if active == nil {
		size := 2*n + 1
		if size > len(list) {
			size = len(list)
		}
		return list[:size]
	}

	var out []docstore.Transcript
	for _, t := range list {
		d := t.Order - active.Order
		if d >= -n && d <= n {
			out = append(out, t)
		}
	}
	return out
}
