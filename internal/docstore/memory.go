package docstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// Memory is an in-process Store. Subscriptions receive their initial
// snapshot synchronously from Subscribe and every later write synchronously
// from the writing call.
type Memory struct {
	mu            sync.RWMutex
	groups        map[string]Group
	presentations map[string]Presentation
	transcripts   map[string][]Transcript

	hub *hub
	seq atomic.Uint64
}

func NewMemory() *Memory {
	return &Memory{
		groups:        make(map[string]Group),
		presentations: make(map[string]Presentation),
		transcripts:   make(map[string][]Transcript),
		hub:           newHub(),
	}
}

func (m *Memory) GetGroup(_ context.Context, id string) (Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (m *Memory) GetPresentation(_ context.Context, id string) (Presentation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.presentations[id]
	if !ok {
		return Presentation{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListGroups(_ context.Context) ([]Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListGroupPresentations(_ context.Context, groupID string) ([]Presentation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Presentation
	for _, p := range m.presentations {
		if p.Group == groupID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ListTranscripts(_ context.Context, presentationID string) ([]Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.transcripts[presentationID]
	out := make([]Transcript, len(list))
	copy(out, list)
	SortTranscripts(out)
	return out, nil
}

func (m *Memory) SetSyncID(_ context.Context, presentationID, transcriptID string) error {
	m.mu.Lock()
	p, ok := m.presentations[presentationID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	p.SyncID = transcriptID
	m.presentations[presentationID] = p
	seq := m.seq.Add(1)
	m.mu.Unlock()

	m.hub.publish(docKey{CollectionPresentation, presentationID}, seq, p)
	return nil
}

func (m *Memory) SetPresentationSyncID(_ context.Context, groupID, presentationID string) error {
	m.mu.Lock()
	g, ok := m.groups[groupID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	g.PresentationSyncID = presentationID
	m.groups[groupID] = g
	seq := m.seq.Add(1)
	m.mu.Unlock()

	m.hub.publish(docKey{CollectionGroups, groupID}, seq, g)
	return nil
}

func (m *Memory) PutGroup(_ context.Context, g Group) error {
	m.mu.Lock()
	m.groups[g.ID] = g
	seq := m.seq.Add(1)
	m.mu.Unlock()
	m.hub.publish(docKey{CollectionGroups, g.ID}, seq, g)
	return nil
}

func (m *Memory) PutPresentation(_ context.Context, p Presentation) error {
	m.mu.Lock()
	m.presentations[p.ID] = p
	seq := m.seq.Add(1)
	m.mu.Unlock()
	m.hub.publish(docKey{CollectionPresentation, p.ID}, seq, p)
	return nil
}

func (m *Memory) PutTranscript(_ context.Context, presentationID string, t Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.transcripts[presentationID]
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			return nil
		}
	}
	m.transcripts[presentationID] = append(list, t)
	return nil
}

func (m *Memory) SubscribeGroup(ctx context.Context, id string, fn func(Group)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := docKey{CollectionGroups, id}
	s := m.hub.add(key, func(doc any) { fn(doc.(Group)) })
	seq := m.seq.Add(1)
	m.mu.RLock()
	g, ok := m.groups[id]
	m.mu.RUnlock()
	if !ok {
		g = Group{ID: id}
	}
	s.deliver(seq, g)
	return s, nil
}

func (m *Memory) SubscribePresentation(ctx context.Context, id string, fn func(Presentation)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := docKey{CollectionPresentation, id}
	s := m.hub.add(key, func(doc any) { fn(doc.(Presentation)) })
	seq := m.seq.Add(1)
	m.mu.RLock()
	p, ok := m.presentations[id]
	m.mu.RUnlock()
	if !ok {
		p = Presentation{ID: id}
	}
	s.deliver(seq, p)
	return s, nil
}

// Subscribers reports the number of open subscriptions.
func (m *Memory) Subscribers() int {
	return m.hub.count()
}
