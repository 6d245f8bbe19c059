// Package api provides the HTTP server for LeadPipe.
//
// It mounts the channel endpoints (web widget websocket, Twilio messaging and voice, Meta Graph
// webhooks), the health and metrics endpoints and the admin session invalidation endpoint.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/observability"
	"github.com/BTreeMap/LeadPipe/internal/session"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// InvalidateSecretHeader carries the admin secret for session invalidation.
	InvalidateSecretHeader = "X-Invalidate-Sessions-Secret"
)

// AppInvalidator drops cached data of one deployment.
type AppInvalidator interface {
	InvalidateApp(appID string)
}

// Channels holds the transport handlers. Nil handlers are not mounted.
type Channels struct {
	Web         http.Handler
	Twilio      http.HandlerFunc
	Meta        http.HandlerFunc
	VoiceTwiML  http.HandlerFunc
	VoiceStream http.HandlerFunc
}

// Opts holds configuration for the server.
type Opts struct {
	Addr             string
	InvalidateSecret string
	Channels         Channels
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithInvalidateSecret requires the X-Invalidate-Sessions-Secret header on admin requests.
func WithInvalidateSecret(secret string) Option {
	return func(o *Opts) {
		o.InvalidateSecret = secret
	}
}

// WithChannels mounts the channel handlers.
func WithChannels(c Channels) Option {
	return func(o *Opts) {
		o.Channels = c
	}
}

// Server serves LeadPipe's HTTP endpoints.
type Server struct {
	addr             string
	sessions         session.Store
	cache            AppInvalidator
	invalidateSecret string
	mux              *http.ServeMux
}

// NewServer creates a server over the shared session store and cache.
func NewServer(sessions session.Store, cache AppInvalidator, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		addr:             cfg.Addr,
		sessions:         sessions,
		cache:            cache,
		invalidateSecret: cfg.InvalidateSecret,
		mux:              http.NewServeMux(),
	}
	s.routes(cfg.Channels)
	return s
}

func (s *Server) routes(c Channels) {
	s.mux.HandleFunc("/", s.healthHandler)
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.Handle("/metrics", observability.Handler())
	s.mux.HandleFunc("/admin/invalidate-sessions", s.invalidateSessionsHandler)

	if c.Web != nil {
		s.mux.Handle("/ws", c.Web)
	}
	if c.Twilio != nil {
		s.mux.HandleFunc("/twilio/webhook", c.Twilio)
		s.mux.HandleFunc("/whatsapp/webhook", c.Twilio)
	}
	if c.Meta != nil {
		s.mux.HandleFunc("/meta/webhook", c.Meta)
	}
	if c.VoiceTwiML != nil {
		s.mux.HandleFunc("/voice", c.VoiceTwiML)
	}
	if c.VoiceStream != nil {
		s.mux.HandleFunc("/voice/stream", c.VoiceStream)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: graceful shutdown failed", "error", err)
		return err
	}
	return nil
}
