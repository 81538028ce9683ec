package docstore

import (
	"sync"
)

type docKey struct {
	collection string
	id         string
}

// subscriber receives snapshots for one document. Snapshots are tagged with
// the sequence number taken before they were read, so a slow initial fetch
// can never overwrite a newer change notification.
type subscriber struct {
	key  docKey
	fn   func(doc any)
	hub  *hub
	once sync.Once

	mu     sync.Mutex
	last   uint64
	closed bool
}

func (s *subscriber) deliver(seq uint64, doc any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq <= s.last {
		return
	}
	s.last = seq
	s.fn(doc)
}

func (s *subscriber) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.hub.remove(s)
	})
}

type hub struct {
	mu   sync.Mutex
	subs map[docKey]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[docKey]map[*subscriber]struct{})}
}

func (h *hub) add(key docKey, fn func(doc any)) *subscriber {
	s := &subscriber{key: key, fn: fn, hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[key] = set
	}
	set[s] = struct{}{}
	return s
}

func (h *hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.key]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.key)
	}
}

func (h *hub) subscribers(key docKey) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[key]
	out := make([]*subscriber, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

func (h *hub) keys() []docKey {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]docKey, 0, len(h.subs))
	for k := range h.subs {
		out = append(out, k)
	}
	return out
}

func (h *hub) publish(key docKey, seq uint64, doc any) {
	for _, s := range h.subscribers(key) {
		s.deliver(seq, doc)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
