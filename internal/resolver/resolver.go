// Package resolver keeps a viewer's live chain group → presentation →
// ordered transcripts → active transcript up to date.
//
// Each Resolver runs one event loop goroutine. Subscription callbacks only
// enqueue events; the loop applies them in order and publishes State
// snapshots. Callbacks from superseded subscriptions are dropped by
// generation, so a stale presentation can never overwrite the current one.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livescript/livescript/internal/docstore"
	"github.com/livescript/livescript/internal/metrics"
)

type Kind string

const (
	KindPresentation Kind = "presentation"
	KindGroup        Kind = "group"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPresentation, KindGroup:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown target kind %q", s)
	}
}

type Target struct {
	Kind Kind
	ID   string
}

// Store is the part of the document store the resolver reads.
type Store interface {
	SubscribeGroup(ctx context.Context, id string, fn func(docstore.Group)) (docstore.Subscription, error)
	SubscribePresentation(ctx context.Context, id string, fn func(docstore.Presentation)) (docstore.Subscription, error)
	ListTranscripts(ctx context.Context, presentationID string) ([]docstore.Transcript, error)
}

// BlobResolver turns a voice path into a playable URL.
type BlobResolver interface {
	Resolve(ctx context.Context, voicePath string) (string, error)
}

type Options struct {
	// FollowGroup makes a presentation-kind resolver watch the
	// presentation's group and emit a Redirect when the group goes live
	// with a different presentation.
	FollowGroup bool
}

// State is one resolved snapshot. Transcripts is shared between snapshots
// and must be treated as read-only.
type State struct {
	Target       Target
	Group        docstore.Group
	Presentation docstore.Presentation
	Transcripts  []docstore.Transcript
	// Loaded reports whether the transcript list for Presentation arrived.
	Loaded bool
	Active *docstore.Transcript
	// Redirect is the presentation id the viewer should move to, if any.
	Redirect string
}

// Waiting reports whether there is nothing to show.
func (s State) Waiting() bool {
	return s.Active == nil
}

type Resolver struct {
	store   Store
	blobs   BlobResolver
	opts    Options
	onState func(State)

	q      *queue
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// Owned by the loop goroutine.
	ctx        context.Context
	state      State
	groupSub   docstore.Subscription
	groupGen   uint64
	groupID    string
	presSub    docstore.Subscription
	presGen    uint64
	presID     string
	presCancel context.CancelFunc
}

func New(store Store, blobs BlobResolver, opts Options) *Resolver {
	return &Resolver{
		store: store,
		blobs: blobs,
		opts:  opts,
		q:     newQueue(),
		done:  make(chan struct{}),
	}
}

// Start begins resolving target and calls onState from the loop goroutine
// on every change. It returns immediately; Close (or cancelling ctx) stops
// the loop and releases every subscription.
func (r *Resolver) Start(ctx context.Context, target Target, onState func(State)) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.ctx = ctx
	r.onState = onState
	r.state = State{Target: target}

	go r.loop(target)
}

// Close stops the resolver and waits for its loop to exit.
func (r *Resolver) Close() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
	})
}

type groupEvent struct {
	gen   uint64
	group docstore.Group
}

type presentationEvent struct {
	gen          uint64
	presentation docstore.Presentation
}

type transcriptsEvent struct {
	gen         uint64
	transcripts []docstore.Transcript
}

func (r *Resolver) loop(target Target) {
	defer close(r.done)
	defer r.releaseAll()

	switch target.Kind {
	case KindGroup:
		r.subscribeGroup(target.ID)
	default:
		r.subscribePresentation(target.ID)
	}
	r.emit()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.q.wait():
		}
		for _, ev := range r.q.drain() {
			if r.ctx.Err() != nil {
				return
			}
			r.apply(ev)
		}
	}
}

func (r *Resolver) apply(ev any) {
	switch e := ev.(type) {
	case groupEvent:
		if e.gen != r.groupGen {
			return
		}
		r.onGroup(e.group)
	case presentationEvent:
		if e.gen != r.presGen {
			return
		}
		r.onPresentation(e.presentation)
	case transcriptsEvent:
		if e.gen != r.presGen {
			return
		}
		r.state.Transcripts = e.transcripts
		r.state.Loaded = true
		r.resolveActive()
	}
	r.emit()
}

func (r *Resolver) onGroup(g docstore.Group) {
	r.state.Group = g
	if r.state.Target.Kind != KindGroup {
		r.checkRedirect()
		return
	}

	next := g.PresentationSyncID
	switch {
	case next == "":
		r.releasePresentation()
		r.clearPresentation()
	case next != r.presID:
		r.releasePresentation()
		r.clearPresentation()
		r.subscribePresentation(next)
	}
}

func (r *Resolver) onPresentation(p docstore.Presentation) {
	p.ID = r.presID
	r.state.Presentation = p
	r.resolveActive()

	if r.state.Target.Kind == KindPresentation && r.opts.FollowGroup && p.Group != r.groupID {
		r.releaseGroup()
		r.state.Group = docstore.Group{}
		r.state.Redirect = ""
		if p.Group != "" {
			r.subscribeGroup(p.Group)
		}
	}
}

// checkRedirect flags a presentation-kind viewer whose group went live with
// another presentation.
func (r *Resolver) checkRedirect() {
	live := r.state.Group.PresentationSyncID
	if live != "" && live != r.presID {
		r.state.Redirect = live
		return
	}
	r.state.Redirect = ""
}

// resolveActive matches sync_id against the fetched list. No match, an
// empty sync_id or a list still loading all mean no active transcript.
func (r *Resolver) resolveActive() {
	r.state.Active = nil
	syncID := r.state.Presentation.SyncID
	if syncID == "" {
		return
	}
	for i := range r.state.Transcripts {
		if r.state.Transcripts[i].ID == syncID {
			r.state.Active = &r.state.Transcripts[i]
			return
		}
	}
}

func (r *Resolver) clearPresentation() {
	r.state.Presentation = docstore.Presentation{}
	r.state.Transcripts = nil
	r.state.Loaded = false
	r.state.Active = nil
}

func (r *Resolver) subscribeGroup(id string) {
	r.groupGen++
	gen := r.groupGen
	r.groupID = id
	sub, err := r.store.SubscribeGroup(r.ctx, id, func(g docstore.Group) {
		r.q.push(groupEvent{gen: gen, group: g})
	})
	if err != nil {
		slog.Error("resolver: failed to subscribe to group", "group_id", id, "error", err)
		return
	}
	r.groupSub = sub
}

func (r *Resolver) subscribePresentation(id string) {
	r.presGen++
	gen := r.presGen
	r.presID = id
	r.state.Presentation = docstore.Presentation{ID: id}

	ctx, cancel := context.WithCancel(r.ctx)
	r.presCancel = cancel

	sub, err := r.store.SubscribePresentation(ctx, id, func(p docstore.Presentation) {
		r.q.push(presentationEvent{gen: gen, presentation: p})
	})
	if err != nil {
		slog.Error("resolver: failed to subscribe to presentation", "presentation_id", id, "error", err)
	} else {
		r.presSub = sub
	}

	go func() {
		transcripts := r.fetchTranscripts(ctx, id)
		if ctx.Err() != nil {
			return
		}
		r.q.push(transcriptsEvent{gen: gen, transcripts: transcripts})
	}()
}

// fetchTranscripts loads the ordered list once and resolves each voice path.
// A failed fetch yields an empty list; a failed voice path only loses that
// line's audio.
func (r *Resolver) fetchTranscripts(ctx context.Context, presentationID string) []docstore.Transcript {
	list, err := r.store.ListTranscripts(ctx, presentationID)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("resolver: failed to fetch transcripts", "presentation_id", presentationID, "error", err)
		}
		return nil
	}
	docstore.SortTranscripts(list)
	if r.blobs == nil {
		return list
	}

	var wg sync.WaitGroup
	for i := range list {
		if list[i].VoicePath == "" {
			continue
		}
		wg.Add(1)
		go func(t *docstore.Transcript) {
			defer wg.Done()
			url, err := r.blobs.Resolve(ctx, t.VoicePath)
			if err != nil {
				metrics.VoiceResolveFailures.Inc()
				slog.Warn("resolver: voice path unavailable", "transcript_id", t.ID, "voice_path", t.VoicePath, "error", err)
				return
			}
			t.VoiceURL = url
		}(&list[i])
	}
	wg.Wait()
	return list
}

func (r *Resolver) releaseGroup() {
	if r.groupSub != nil {
		r.groupSub.Close()
		r.groupSub = nil
	}
	r.groupID = ""
	r.groupGen++
}

func (r *Resolver) releasePresentation() {
	if r.presCancel != nil {
		r.presCancel()
		r.presCancel = nil
	}
	if r.presSub != nil {
		r.presSub.Close()
		r.presSub = nil
	}
	r.presID = ""
	r.presGen++
}

func (r *Resolver) releaseAll() {
	r.releasePresentation()
	r.releaseGroup()
}

func (r *Resolver) emit() {
	if r.onState == nil {
		return
	}
	s := r.state
	if s.Active != nil {
		active := *s.Active
		s.Active = &active
	}
	r.onState(s)
}
