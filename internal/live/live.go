// Package live serves the websocket each open screen keeps to the server.
// A connection owns one resolver and, for screens that play sound, one
// audio session whose handles are proxies for audio elements in the
// browser.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/livescript/livescript/internal/audio"
	"github.com/livescript/livescript/internal/httputil"
	"github.com/livescript/livescript/internal/metrics"
	"github.com/livescript/livescript/internal/resolver"
	"github.com/livescript/livescript/internal/view"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	maxReadBytes = 4096
	sendBuffer   = 128
)

type Handler struct {
	store    resolver.Store
	blobs    resolver.BlobResolver
	detector audio.Detector
	rate     float64
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHandler(store resolver.Store, blobs resolver.BlobResolver, detector audio.Detector, playbackRate float64) *Handler {
	if detector == nil {
		detector = audio.UserAgentDetector{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		store:    store,
		blobs:    blobs,
		detector: detector,
		rate:     playbackRate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Shutdown closes every open viewer connection. Hijacked connections are
// not tracked by http.Server.Shutdown.
func (h *Handler) Shutdown() {
	h.cancel()
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	kind, err := resolver.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	variant := view.Audience
	if name := r.URL.Query().Get("variant"); name != "" {
		v, ok := view.VariantByName(name)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "unknown variant")
			return
		}
		variant = v
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("live: websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:      uuid.NewString(),
		ws:      ws,
		variant: variant,
		send:    make(chan outMessage, sendBuffer),
		done:    make(chan struct{}),
	}
	if variant.Audio {
		// The page passes the mute toggle it kept from the last visit.
		muted, _ := strconv.ParseBool(r.URL.Query().Get("muted"))
		initial := h.detector.InitialState(r.UserAgent())
		c.session = audio.NewSession(initial, handleFactory{c: c},
			audio.WithPlaybackRate(h.rate),
			audio.WithMuted(muted),
			audio.OnChange(c.onGate),
		)
	}

	metrics.LiveViewers.WithLabelValues(variant.Name).Inc()
	defer metrics.LiveViewers.WithLabelValues(variant.Name).Dec()
	slog.Info("live: viewer connected", "session_id", c.id, "variant", variant.Name, "kind", kind, "target_id", id)

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	go c.writePump()
	go func() {
		select {
		case <-ctx.Done():
			c.stop()
		case <-c.done:
		}
	}()

	if c.session != nil {
		c.onGate(c.session.Progress())
	}

	res := resolver.New(h.store, h.blobs, resolver.Options{
		FollowGroup: variant.FollowGroup && kind == resolver.KindPresentation,
	})
	res.Start(ctx, resolver.Target{Kind: kind, ID: id}, c.onState)

	c.readPump()

	res.Close()
	c.stop()
	slog.Info("live: viewer disconnected", "session_id", c.id)
}

// outMessage is every server to browser message. Type selects which of the
// other fields are set.
type outMessage struct {
	Type     string          `json:"type"`
	Model    *view.Model     `json:"model,omitempty"`
	ID       string          `json:"id,omitempty"`
	URL      string          `json:"url,omitempty"`
	Rate     float64         `json:"rate,omitempty"`
	Progress *audio.Progress `json:"progress,omitempty"`
	// Queued marks a load request held until a presentation is live.
	Queued bool `json:"queued,omitempty"`
}

type inMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Muted bool   `json:"muted"`
}

type client struct {
	id      string
	ws      *websocket.Conn
	variant view.Variant
	session *audio.Session
	send    chan outMessage
	done    chan struct{}
	once    sync.Once

	mu       sync.Mutex
	state    resolver.State
	wantLoad bool
}

// stop asks the writer to send a close frame and shut the socket, which in
// turn ends the read loop.
func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// enqueue hands a message to the writer, waiting for room in the buffer.
// A viewer that stops reading trips the writer's deadline, which stops the
// client and releases every waiting sender.
func (c *client) enqueue(m outMessage) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- m:
	case <-c.done:
	}
}

func (c *client) onState(s resolver.State) {
	c.mu.Lock()
	c.state = s
	load := c.wantLoad && s.Loaded
	if load {
		c.wantLoad = false
	}
	c.mu.Unlock()

	if s.Redirect != "" {
		c.enqueue(outMessage{Type: "redirect", ID: s.Redirect})
	}
	model := view.Project(s, c.variant)
	c.enqueue(outMessage{Type: "state", Model: &model})

	if c.session == nil {
		return
	}
	if load {
		c.session.LoadAll(s.Transcripts)
	}
	c.session.SetActive(s.Active)
}

func (c *client) onGate(p audio.Progress) {
	c.enqueue(outMessage{Type: "gate", Progress: &p})
}

func (c *client) handle(msg inMessage) {
	if c.session == nil {
		return
	}
	switch msg.Type {
	case "load_audio":
		c.mu.Lock()
		s := c.state
		if !s.Loaded {
			c.wantLoad = true
		}
		c.mu.Unlock()
		if s.Loaded {
			c.session.LoadAll(s.Transcripts)
			return
		}
		if p := c.session.Progress(); p.State == audio.Locked {
			c.enqueue(outMessage{Type: "gate", Progress: &p, Queued: true})
		}
	case "skip_audio":
		c.session.Skip()
	case "ready":
		c.session.MarkReady(msg.ID)
	case "failed":
		c.session.MarkFailed(msg.ID)
	case "mute":
		c.session.SetMuted(msg.Muted)
	default:
		slog.Debug("live: unknown message", "session_id", c.id, "type", msg.Type)
	}
}

func (c *client) readPump() {
	c.ws.SetReadLimit(maxReadBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("live: read failed", "session_id", c.id, "error", err)
			}
			return
		}
		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("live: malformed message", "session_id", c.id, "error", err)
			continue
		}
		c.handle(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFactory creates audio handles that drive an audio element in the
// viewer's browser.
type handleFactory struct {
	c *client
}

func (f handleFactory) NewHandle(transcriptID, url string) audio.Handle {
	return &remoteHandle{c: f.c, id: transcriptID, url: url}
}

type remoteHandle struct {
	c   *client
	id  string
	url string
}

func (h *remoteHandle) Load() {
	h.c.enqueue(outMessage{Type: "preload", ID: h.id, URL: h.url})
}

func (h *remoteHandle) Play(rate float64) {
	h.c.enqueue(outMessage{Type: "play", ID: h.id, URL: h.url, Rate: rate})
}

func (h *remoteHandle) Pause() {
	h.c.enqueue(outMessage{Type: "pause", ID: h.id})
}
