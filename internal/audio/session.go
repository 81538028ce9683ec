// Package audio decides when a viewer's voice clips load and play.
//
// A Session owns the gate (whether the browser may play sound yet), the
// cache of preloaded handles and the one handle allowed to play. Handles
// are abstract; the live transport backs them with commands sent to the
// browser.
package audio

import (
	"sync"

	"github.com/livescript/livescript/internal/docstore"
)

type GateState string

const (
	// Locked waits for a user gesture. Nothing plays.
	Locked GateState = "locked"
	// Loading preloads every clip after the user asked for audio.
	Loading  GateState = "loading"
	Unlocked GateState = "unlocked"
	// NoAudio means the viewer declined audio for the rest of the session.
	NoAudio GateState = "no_audio"
)

const DefaultPlaybackRate = 1.4

// Handle is one playable clip.
type Handle interface {
	// Load starts fetching the clip. Readiness comes back through
	// Session.MarkReady or Session.MarkFailed.
	Load()
	Play(rate float64)
	Pause()
}

// Factory creates the handle for a transcript's clip.
type Factory interface {
	NewHandle(transcriptID, url string) Handle
}

type FactoryFunc func(transcriptID, url string) Handle

func (f FactoryFunc) NewHandle(transcriptID, url string) Handle {
	return f(transcriptID, url)
}

type Progress struct {
	State   GateState `json:"state"`
	Loaded  int       `json:"loaded"`
	Failed  int       `json:"failed"`
	Total   int       `json:"total"`
	Percent int       `json:"percent"`
	Muted   bool      `json:"muted"`
}

type Option func(*Session)

func WithPlaybackRate(rate float64) Option {
	return func(s *Session) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// WithMuted sets the initial mute state.
func WithMuted(muted bool) Option {
	return func(s *Session) { s.muted = muted }
}

// OnChange registers a callback for gate, progress and mute changes. It
// runs after the session lock is released.
func OnChange(fn func(Progress)) Option {
	return func(s *Session) { s.onChange = fn }
}

type cached struct {
	url    string
	handle Handle
}

type Session struct {
	mu       sync.Mutex
	factory  Factory
	rate     float64
	muted    bool
	onChange func(Progress)

	state   GateState
	cache   map[string]cached
	pending map[string]bool
	loaded  int
	failed  int
	total   int

	active    docstore.Transcript
	hasActive bool
	currentID string
	current   Handle
}

func NewSession(initial GateState, factory Factory, opts ...Option) *Session {
	s := &Session{
		factory: factory,
		rate:    DefaultPlaybackRate,
		state:   initial,
		cache:   make(map[string]cached),
		pending: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() Progress {
	return Progress{
		State:   s.state,
		Loaded:  s.loaded,
		Failed:  s.failed,
		Total:   s.total,
		Percent: percent(s.loaded+s.failed, s.total),
		Muted:   s.muted,
	}
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return (100*done + total - 1) / total
}

// LoadAll preloads a handle for every transcript with a clip. It only acts
// on a Locked gate.
func (s *Session) LoadAll(transcripts []docstore.Transcript) {
	s.mu.Lock()
	if s.state != Locked {
		s.mu.Unlock()
		return
	}
	s.state = Loading
	s.loaded, s.failed, s.total = 0, 0, 0
	var toLoad []Handle
	for _, t := range transcripts {
		if t.VoiceURL == "" || s.pending[t.ID] {
			continue
		}
		h := s.factory.NewHandle(t.ID, t.VoiceURL)
		s.cache[t.ID] = cached{url: t.VoiceURL, handle: h}
		s.pending[t.ID] = true
		s.total++
		toLoad = append(toLoad, h)
	}
	s.maybeUnlockLocked()
	p := s.progressLocked()
	s.mu.Unlock()
	s.notify(p)

	// Load may block on the transport and must run unlocked.
	for _, h := range toLoad {
		h.Load()
	}
}

// MarkReady records that a preloading clip can play through.
func (s *Session) MarkReady(transcriptID string) {
	s.settle(transcriptID, true)
}

// MarkFailed records a clip that could not load. It counts towards
// completion and is dropped from the cache so the next activation retries
// it with a fresh handle.
func (s *Session) MarkFailed(transcriptID string) {
	s.settle(transcriptID, false)
}

func (s *Session) settle(transcriptID string, ok bool) {
	s.mu.Lock()
	if !ok {
		delete(s.cache, transcriptID)
		if s.currentID == transcriptID {
			s.current = nil
			s.currentID = ""
		}
	}
	if s.state != Loading || !s.pending[transcriptID] {
		s.mu.Unlock()
		return
	}
	delete(s.pending, transcriptID)
	if ok {
		s.loaded++
	} else {
		s.failed++
	}
	s.maybeUnlockLocked()
	p := s.progressLocked()
	s.mu.Unlock()
	s.notify(p)
}

func (s *Session) maybeUnlockLocked() {
	if s.state != Loading || s.loaded+s.failed < s.total {
		return
	}
	s.state = Unlocked
	if s.hasActive {
		s.playLocked(s.active)
	}
}

// Skip turns audio off for the rest of the session.
func (s *Session) Skip() {
	s.mu.Lock()
	if s.state == NoAudio {
		s.mu.Unlock()
		return
	}
	s.pauseCurrentLocked()
	s.state = NoAudio
	s.pending = make(map[string]bool)
	p := s.progressLocked()
	s.mu.Unlock()
	s.notify(p)
}

// SetMuted pauses or resumes the current handle. Other handles are left
// alone.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	if s.muted == muted {
		s.mu.Unlock()
		return
	}
	s.muted = muted
	if s.current != nil && s.state == Unlocked {
		if muted {
			s.current.Pause()
		} else {
			s.current.Play(s.rate)
		}
	}
	p := s.progressLocked()
	s.mu.Unlock()
	s.notify(p)
}

// SetActive reacts to the active transcript. A nil transcript pauses the
// current handle. Repeating the same transcript is a no-op.
func (s *Session) SetActive(t *docstore.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t == nil {
		s.hasActive = false
		s.active = docstore.Transcript{}
		s.pauseCurrentLocked()
		return
	}
	if s.hasActive && s.active.ID == t.ID && s.active.VoiceURL == t.VoiceURL {
		return
	}
	s.active = *t
	s.hasActive = true
	if s.state != Unlocked {
		return
	}
	s.playLocked(*t)
}

func (s *Session) playLocked(t docstore.Transcript) {
	s.pauseCurrentLocked()
	if t.VoiceURL == "" {
		return
	}
	c, ok := s.cache[t.ID]
	if !ok || c.url != t.VoiceURL {
		c = cached{url: t.VoiceURL, handle: s.factory.NewHandle(t.ID, t.VoiceURL)}
		s.cache[t.ID] = c
	}
	s.current = c.handle
	s.currentID = t.ID
	if !s.muted {
		c.handle.Play(s.rate)
	}
}

func (s *Session) pauseCurrentLocked() {
	if s.current != nil {
		s.current.Pause()
	}
	s.current = nil
	s.currentID = ""
}

func (s *Session) notify(p Progress) {
	if s.onChange != nil {
		s.onChange(p)
	}
}
