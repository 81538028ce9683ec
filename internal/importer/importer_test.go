package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/livescript/livescript/internal/docstore"
)

type upload struct {
	key, file, contentType string
}

type fakeUploader struct {
	uploads []upload
	err     error
}

func (f *fakeUploader) UploadFile(_ context.Context, key, filePath, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.uploads = append(f.uploads, upload{key, filePath, contentType})
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func newTestImporter(store Store, uploader Uploader) *Importer {
	im := New(store, uploader)
	im.newID = sequentialIDs()
	return im
}

func TestParseCSV_EnglishJapanese(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("\ufeffenglish,japanese\nHello,こんにちは\n,\n\"Welcome, all\",ようこそ\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (blank skipped), got %d", len(rows))
	}
	if rows[0].Transcript != "Hello" || rows[0].Script != "こんにちは" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Transcript != "Welcome, all" {
		t.Errorf("expected quoted comma to survive, got %q", rows[1].Transcript)
	}
}

func TestParseCSV_TranscriptScriptVoice(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("Script, Transcript ,Voice\nやあ,hi,hi.mp3\nまた,bye\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0].Voice != "hi.mp3" || rows[0].Transcript != "hi" || rows[0].Script != "やあ" {
		t.Errorf("unexpected row: %+v", rows[0])
	}
	if rows[1].Voice != "" {
		t.Errorf("short record should have no voice, got %q", rows[1].Voice)
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty csv"},
		{"no transcript column", "japanese\nやあ\n", "missing transcript"},
		{"no script column", "english\nhi\n", "missing script"},
		{"duplicate", "english,transcript,script\na,b,c\n", "given twice"},
		{"bad quoting", "english,japanese\n\"open,x\n", "read line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestImport_CreatesPresentationAndAppends(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	im := newTestImporter(store, nil)

	rows := []Row{{Transcript: "one", Script: "いち"}, {Transcript: "two", Script: "に"}}
	res, err := im.Import(ctx, rows, Options{PresentationID: "p1", Title: "Opening", GroupID: "g1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created || res.Imported != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	p, err := store.GetPresentation(ctx, "p1")
	if err != nil || p.Title != "Opening" || p.Group != "g1" {
		t.Errorf("expected created presentation, got %+v, %v", p, err)
	}

	res, err = im.Import(ctx, []Row{{Transcript: "three"}}, Options{PresentationID: "p1", Title: "Ignored"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created {
		t.Error("second import should reuse the presentation")
	}

	list, _ := store.ListTranscripts(ctx, "p1")
	if len(list) != 3 {
		t.Fatalf("expected 3 transcripts, got %d", len(list))
	}
	for i, tr := range list {
		if tr.Order != i {
			t.Errorf("expected order %d, got %d for %s", i, tr.Order, tr.ID)
		}
	}
	if list[2].Transcript != "three" {
		t.Errorf("expected appended line last, got %q", list[2].Transcript)
	}
}

func TestImport_UploadsVoices(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Hello.MP3"), []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := docstore.NewMemory()
	uploader := &fakeUploader{}
	im := newTestImporter(store, uploader)

	rows := []Row{{Transcript: "hello", Voice: "Hello.MP3"}, {Transcript: "silent"}}
	res, err := im.Import(context.Background(), rows, Options{PresentationID: "p1", VoiceDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Uploaded != 1 || len(uploader.uploads) != 1 {
		t.Fatalf("expected one upload, got %+v", uploader.uploads)
	}
	up := uploader.uploads[0]
	if up.key != "voices/p1/id1.mp3" || up.contentType != "audio/mpeg" || up.file != filepath.Join(dir, "Hello.MP3") {
		t.Errorf("unexpected upload: %+v", up)
	}

	list, _ := store.ListTranscripts(context.Background(), "p1")
	if list[0].VoicePath != "voices/p1/id1.mp3" || list[1].VoicePath != "" {
		t.Errorf("unexpected voice paths: %q, %q", list[0].VoicePath, list[1].VoicePath)
	}
}

func TestImport_ValidatesVoicesBeforeWriting(t *testing.T) {
	store := docstore.NewMemory()

	_, err := newTestImporter(store, nil).Import(context.Background(),
		[]Row{{Transcript: "a", Voice: "a.mp3"}}, Options{PresentationID: "p1"})
	if err == nil || !strings.Contains(err.Error(), "no blob storage") {
		t.Errorf("expected storage error, got %v", err)
	}

	_, err = newTestImporter(store, &fakeUploader{}).Import(context.Background(),
		[]Row{{Transcript: "a", Voice: "missing.mp3"}}, Options{PresentationID: "p1", VoiceDir: t.TempDir()})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	if _, err := store.GetPresentation(context.Background(), "p1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Error("nothing should be written when validation fails")
	}
}

func TestImport_UploadFailureStops(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.wav"), []byte("RIFF"), 0o644)
	store := docstore.NewMemory()
	im := newTestImporter(store, &fakeUploader{err: errors.New("bucket gone")})

	res, err := im.Import(context.Background(), []Row{{Transcript: "a", Voice: "a.wav"}}, Options{PresentationID: "p1", VoiceDir: dir})
	if err == nil || !strings.Contains(err.Error(), "bucket gone") {
		t.Fatalf("expected upload error, got %v", err)
	}
	if res.Imported != 0 {
		t.Errorf("expected no imported rows, got %d", res.Imported)
	}
}

func TestImport_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		opts Options
		want string
	}{
		{"no presentation", nil, Options{}, "presentation id is required"},
		{"slash in id", nil, Options{PresentationID: "a/b"}, "presentation: id must not contain"},
		{"slash in group", nil, Options{PresentationID: "p1", GroupID: "g/1"}, "group: id must not contain"},
		{"long title", nil, Options{PresentationID: "p1", Title: strings.Repeat("t", 501)}, "title must be"},
		{"long line", []Row{{Transcript: "ok"}, {Script: strings.Repeat("s", 5001)}}, Options{PresentationID: "p1"}, "row 2: script must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := docstore.NewMemory()
			_, err := New(store, nil).Import(context.Background(), tt.rows, tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
			if list, _ := store.ListTranscripts(context.Background(), "p1"); len(list) != 0 {
				t.Error("nothing should be written for invalid input")
			}
		})
	}
}

func TestVoiceKey(t *testing.T) {
	if got := VoiceKey("p1", "t1", "/tmp/take 2.M4A"); got != "voices/p1/t1.m4a" {
		t.Errorf("unexpected key %q", got)
	}
}
