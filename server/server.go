// Package server exposes the weave HTTP API: fingerprint intake,
// instruction dequeue, status reconciliation, and the matcher's enqueue
// surface, all authenticated by per-owner API keys.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/weave/audit"
	"github.com/hazyhaar/weave/queue"
	"github.com/hazyhaar/weave/reconcile"
	"github.com/hazyhaar/weave/shield"
	"github.com/hazyhaar/weave/track"
)

// Server holds the wired services behind the HTTP surface.
type Server struct {
	cfg        *Config
	keys       *KeyStore
	tracker    *track.Tracker
	content    *track.Store
	queue      *queue.Queue
	reconciler *reconcile.Reconciler
	audit      *audit.Logger
	logger     *slog.Logger
}

// Deps are the services the server routes to.
type Deps struct {
	Keys       *KeyStore
	Tracker    *track.Tracker
	Content    *track.Store
	Queue      *queue.Queue
	Reconciler *reconcile.Reconciler
	Audit      *audit.Logger
	Logger     *slog.Logger
}

// New assembles a Server from already-constructed services.
func New(cfg *Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		keys:       deps.Keys,
		tracker:    deps.Tracker,
		content:    deps.Content,
		queue:      deps.Queue,
		reconciler: deps.Reconciler,
		audit:      deps.Audit,
		logger:     deps.Logger,
	}
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	rl := shield.NewRateLimiter(map[string]shield.RateLimitConfig{
		"POST /api/v1/fingerprint":         {MaxRequests: s.cfg.RateLimit.FingerprintPerMinute, WindowSeconds: 60},
		"POST /api/v1/instructions/list":   {MaxRequests: s.cfg.RateLimit.ListPerMinute, WindowSeconds: 60},
		"POST /api/v1/instructions/status": {MaxRequests: s.cfg.RateLimit.StatusPerMinute, WindowSeconds: 60},
	}, "/healthz")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
	r.Use(shield.MaxJSONBody(s.cfg.MaxBodyBytes))
	r.Use(rl.Middleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/fingerprint", s.handleFingerprint)
		r.Post("/instructions", s.handleEnqueue)
		r.Post("/instructions/list", s.handleListInstructions)
		r.Post("/instructions/status", s.handleInstructionStatus)
	})
	return r
}
