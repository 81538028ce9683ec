package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/livescript/livescript/internal/audio"
	"github.com/livescript/livescript/internal/auth"
	"github.com/livescript/livescript/internal/control"
	"github.com/livescript/livescript/internal/docstore"
	"github.com/livescript/livescript/internal/live"
	"github.com/livescript/livescript/internal/ratelimit"
	"github.com/livescript/livescript/internal/resolver"
	"github.com/livescript/livescript/internal/view"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Store                docstore.Store
	Blobs                resolver.BlobResolver
	Pinger               Pinger
	Detector             audio.Detector
	JWTSecret            string
	OperatorPasswordHash string
	BaseURL              string
	StorageEndpoint      string
	PlaybackRate         float64
}

type Server struct {
	router         chi.Router
	pinger         Pinger
	authHandler    *auth.Handler
	controlHandler *control.Handler
	liveHandler    *live.Handler
	pageHandler    *view.Handler
	limiters       []*ratelimit.Limiter
}

// New wires every route. Without a JWT secret the operator API is not
// mounted and the server only serves viewer pages.
func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.StorageEndpoint,
	}))

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	rate := cfg.PlaybackRate
	if rate <= 0 {
		rate = audio.DefaultPlaybackRate
	}

	s := &Server{
		router:      r,
		pinger:      cfg.Pinger,
		pageHandler: view.NewHandler(),
	}
	if cfg.Store != nil {
		s.liveHandler = live.NewHandler(cfg.Store, cfg.Blobs, cfg.Detector, rate)
		if cfg.JWTSecret != "" {
			s.authHandler = auth.NewHandler(cfg.JWTSecret, cfg.OperatorPasswordHash)
			s.controlHandler = control.NewHandler(control.NewService(cfg.Store), baseURL)
		}
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Shutdown closes open live connections and stops background sweepers.
// http.Server.Shutdown does not wait for hijacked websocket connections.
func (s *Server) Shutdown() {
	if s.liveHandler != nil {
		s.liveHandler.Shutdown()
	}
	for _, l := range s.limiters {
		l.Close()
	}
}

func (s *Server) newLimiter(name string, requestsPerSecond float64, burst int) *ratelimit.Limiter {
	l := ratelimit.NewLimiter(name, requestsPerSecond, burst)
	s.limiters = append(s.limiters, l)
	return l
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	pages := s.pageHandler
	s.router.Get("/audience/{id}", pages.Page(view.Audience, resolver.KindPresentation, "/audience/"))
	s.router.Get("/transcript/{id}", pages.Page(view.Screen, resolver.KindPresentation, "/transcript/"))
	s.router.Get("/speaker/{id}", pages.Page(view.Speaker, resolver.KindPresentation, "/speaker/"))
	s.router.Get("/presenter/{id}", pages.Page(view.Presenter, resolver.KindPresentation, ""))
	s.router.Route("/conference/{id}", func(r chi.Router) {
		r.Get("/", pages.Page(view.Audience, resolver.KindGroup, ""))
		r.Get("/transcript", pages.Page(view.Screen, resolver.KindGroup, ""))
		r.Get("/speaker", pages.Page(view.Speaker, resolver.KindGroup, ""))
		r.Get("/control", pages.Page(view.Presenter, resolver.KindGroup, ""))
	})

	if s.liveHandler != nil {
		s.router.Get("/api/live/{kind}/{id}", s.liveHandler.ServeWS)
	}

	if s.authHandler != nil {
		authLimiter := s.newLimiter("auth", 0.5, 5)
		s.router.Route("/api/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/login", s.authHandler.Login)
		})
	}

	if s.controlHandler != nil {
		controlLimiter := s.newLimiter("control", 10, 30)
		s.router.Group(func(r chi.Router) {
			r.Use(controlLimiter.Middleware)
			r.Use(s.authHandler.Middleware)
			r.Route("/api/presentations/{id}", func(r chi.Router) {
				r.Get("/", s.controlHandler.GetPresentation)
				r.Post("/advance", s.controlHandler.Advance)
				r.Post("/jump", s.controlHandler.Jump)
				r.Post("/reset", s.controlHandler.Reset)
			})
			r.Route("/api/groups/{id}", func(r chi.Router) {
				r.Get("/presentations", s.controlHandler.ListGroupPresentations)
				r.Get("/links", s.controlHandler.ShareLinks)
				r.Post("/promote", s.controlHandler.Promote)
			})
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
