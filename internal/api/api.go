// Package api provides HTTP handlers and the main API server logic for Jokko.
//
// It exposes the webhook ingress for the WhatsApp Cloud API (verification GET
// plus dual-format POST), the web chat endpoint, and conversation log reads.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jokkolabs/jokko/internal/flow"
	"github.com/jokkolabs/jokko/internal/messaging"
	"github.com/jokkolabs/jokko/internal/store"
)

// Server configuration defaults.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	VerifyToken string
	APIToken    string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithVerifyToken sets the webhook verification secret.
func WithVerifyToken(token string) Option {
	return func(o *Opts) {
		o.VerifyToken = token
	}
}

// WithAPIToken sets the bearer token required on flattened-format webhook
// posts. When empty, no authentication is required on that path.
func WithAPIToken(token string) Option {
	return func(o *Opts) {
		o.APIToken = token
	}
}

// Server wires the responder, store and messaging transport behind the HTTP
// surface.
type Server struct {
	addr        string
	verifyToken string
	apiToken    string
	responder   *flow.Responder
	st          store.Store
	msgService  messaging.Service
	httpServer  *http.Server
}

// NewServer creates a Server from its collaborators and options.
func NewServer(responder *flow.Responder, st store.Store, msgService messaging.Service, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
		apiToken:    cfg.APIToken,
		responder:   responder,
		st:          st,
		msgService:  msgService,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/conversations", s.conversationsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	slog.Info("Jokko API running", "addr", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down Jokko API")
	return s.httpServer.Shutdown(ctx)
}
