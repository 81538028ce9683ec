// Package importer loads transcript lines from CSV into a presentation.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/livescript/livescript/internal/docstore"
	"github.com/livescript/livescript/internal/storage"
	"github.com/livescript/livescript/internal/validate"
)

type Store interface {
	GetPresentation(ctx context.Context, id string) (docstore.Presentation, error)
	PutPresentation(ctx context.Context, p docstore.Presentation) error
	ListTranscripts(ctx context.Context, presentationID string) ([]docstore.Transcript, error)
	PutTranscript(ctx context.Context, presentationID string, t docstore.Transcript) error
}

type Uploader interface {
	UploadFile(ctx context.Context, key string, filePath string, contentType string) error
}

// Row is one line of the source sheet.
type Row struct {
	Transcript string
	Script     string
	Voice      string
}

type Options struct {
	PresentationID string
	// Title and GroupID are used only when the presentation does not exist
	// yet.
	Title   string
	GroupID string
	// VoiceDir resolves relative paths in the voice column.
	VoiceDir string
}

type Result struct {
	PresentationID string
	Created        bool
	Imported       int
	Uploaded       int
}

type Importer struct {
	store    Store
	uploader Uploader
	newID    func() string
}

// New returns an importer. uploader may be nil when the sheet has no voice
// column.
func New(store Store, uploader Uploader) *Importer {
	return &Importer{store: store, uploader: uploader, newID: uuid.NewString}
}

var columnAliases = map[string]string{
	"transcript": "transcript",
	"english":    "transcript",
	"script":     "script",
	"japanese":   "script",
	"voice":      "voice",
}

// ParseCSV reads rows keyed by header. Either english/japanese or
// transcript/script columns are accepted; voice is optional. Rows with no
// text at all are skipped.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if field, ok := columnAliases[name]; ok {
			if _, dup := index[field]; dup {
				return nil, fmt.Errorf("column %q given twice", field)
			}
			index[field] = i
		}
	}
	if _, ok := index["transcript"]; !ok {
		return nil, fmt.Errorf("missing transcript (or english) column")
	}
	if _, ok := index["script"]; !ok {
		return nil, fmt.Errorf("missing script (or japanese) column")
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := Row{
			Transcript: field(record, index, "transcript"),
			Script:     field(record, index, "script"),
			Voice:      field(record, index, "voice"),
		}
		if row.Transcript == "" && row.Script == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// Import appends rows after the presentation's existing lines. Voice files
// are checked before anything is written.
func (im *Importer) Import(ctx context.Context, rows []Row, opts Options) (Result, error) {
	res := Result{PresentationID: opts.PresentationID}
	if opts.PresentationID == "" {
		return res, fmt.Errorf("presentation id is required")
	}
	if msg := validate.ID(opts.PresentationID); msg != "" {
		return res, fmt.Errorf("presentation: %s", msg)
	}
	if opts.GroupID != "" {
		if msg := validate.ID(opts.GroupID); msg != "" {
			return res, fmt.Errorf("group: %s", msg)
		}
	}
	if msg := validate.Title(opts.Title); msg != "" {
		return res, errors.New(msg)
	}

	voices := make([]string, len(rows))
	for i, row := range rows {
		for _, msg := range []string{validate.Transcript(row.Transcript), validate.Script(row.Script)} {
			if msg != "" {
				return res, fmt.Errorf("row %d: %s", i+1, msg)
			}
		}
		if row.Voice == "" {
			continue
		}
		if im.uploader == nil {
			return res, fmt.Errorf("row %d has a voice file but no blob storage is configured", i+1)
		}
		p := row.Voice
		if !filepath.IsAbs(p) {
			p = filepath.Join(opts.VoiceDir, p)
		}
		if _, err := os.Stat(p); err != nil {
			return res, fmt.Errorf("row %d voice: %w", i+1, err)
		}
		voices[i] = p
	}

	created, err := im.ensurePresentation(ctx, opts)
	if err != nil {
		return res, err
	}
	res.Created = created

	existing, err := im.store.ListTranscripts(ctx, opts.PresentationID)
	if err != nil {
		return res, fmt.Errorf("list transcripts: %w", err)
	}
	next := 0
	for _, t := range existing {
		if t.Order >= next {
			next = t.Order + 1
		}
	}

	for i, row := range rows {
		t := docstore.Transcript{
			ID:         im.newID(),
			Order:      next + i,
			Transcript: row.Transcript,
			Script:     row.Script,
		}
		if voices[i] != "" {
			key := VoiceKey(opts.PresentationID, t.ID, voices[i])
			if err := im.uploader.UploadFile(ctx, key, voices[i], storage.VoiceContentType(voices[i])); err != nil {
				return res, fmt.Errorf("row %d: %w", i+1, err)
			}
			t.VoicePath = key
			res.Uploaded++
		}
		if err := im.store.PutTranscript(ctx, opts.PresentationID, t); err != nil {
			return res, fmt.Errorf("row %d: %w", i+1, err)
		}
		res.Imported++
	}

	slog.Info("importer: transcripts imported",
		"presentation_id", opts.PresentationID,
		"imported", res.Imported,
		"uploaded", res.Uploaded,
	)
	return res, nil
}

func (im *Importer) ensurePresentation(ctx context.Context, opts Options) (bool, error) {
	_, err := im.store.GetPresentation(ctx, opts.PresentationID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return false, fmt.Errorf("get presentation: %w", err)
	}
	if err := im.store.PutPresentation(ctx, docstore.Presentation{
		ID:    opts.PresentationID,
		Title: opts.Title,
		Group: opts.GroupID,
	}); err != nil {
		return false, fmt.Errorf("create presentation: %w", err)
	}
	return true, nil
}

// VoiceKey is the blob key for a transcript's voice clip.
func VoiceKey(presentationID, transcriptID, file string) string {
	return path.Join("voices", presentationID, transcriptID+strings.ToLower(filepath.Ext(file)))
}
