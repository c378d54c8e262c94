// Package api provides the HTTP conversation surface for Qualibot.
//
// The surface owns per-conversation session persistence and serializes turns
// per conversation; the flow engine itself is stateless between calls.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dreampastry/qualibot/internal/flow"
	"github.com/dreampastry/qualibot/internal/models"
	"github.com/dreampastry/qualibot/internal/store"
)

// Default server configuration constants
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds how long reading a request may take.
	DefaultReadTimeout = 15 * time.Second
	// DefaultMetricsWindowDays is the trailing window for the metrics endpoint.
	DefaultMetricsWindowDays = 30
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// conversation is the per-conversation state the surface persists between
// turns. Its mutex serializes turns: input arriving while a turn is in flight
// is rejected, never interleaved.
type conversation struct {
	mu      sync.Mutex
	profile models.ClientProfile
	session *models.QualificationSession
}

// Server wires the flow engine and the store to the HTTP surface.
type Server struct {
	engine *flow.Engine
	st     store.Store
	addr   string

	convMu        sync.RWMutex
	conversations map[string]*conversation
}

// NewServer creates the API server.
func NewServer(engine *flow.Engine, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("Server.NewServer: creating API server", "addr", cfg.Addr)
	return &Server{
		engine:        engine,
		st:            st,
		addr:          cfg.Addr,
		conversations: make(map[string]*conversation),
	}
}

// Handler returns the route table as an http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversations", s.createConversationHandler)
	mux.HandleFunc("POST /conversations/{id}/turns", s.turnHandler)
	mux.HandleFunc("GET /formations/availability", s.availabilityHandler)
	mux.HandleFunc("GET /analytics/metrics", s.metricsHandler)
	return mux
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: DefaultReadTimeout,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	slog.Info("API server listening", "addr", s.addr)
	return srv.ListenAndServe()
}

// lookup returns the conversation for an id, or nil.
func (s *Server) lookup(id string) *conversation {
	s.convMu.RLock()
	defer s.convMu.RUnlock()
	return s.conversations[id]
}

// register stores a new conversation under its id.
func (s *Server) register(id string, c *conversation) {
	s.convMu.Lock()
	defer s.convMu.Unlock()
	s.conversations[id] = c
}
