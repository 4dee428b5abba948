// Package api provides HTTP handlers and the main API server logic for GymBot.
//
// It exposes the WhatsApp Cloud webhook endpoints used when GymBot runs behind
// the Meta Cloud API, plus read-only endpoints for bookings, pause requests
// and health. The API integrates with the flow engine, messaging and store
// modules.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gymbro/gymbot/internal/flow"
	"github.com/gymbro/gymbot/internal/messaging"
	"github.com/gymbro/gymbot/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (e.g., ":8080")
	Addr string
	// VerifyToken is the token expected on webhook verification requests.
	VerifyToken string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// Server holds the dependencies shared by all HTTP handlers.
type Server struct {
	msgService  messaging.Service
	engine      *flow.Engine
	st          store.Store
	addr        string
	verifyToken string

	httpServer *http.Server
}

// NewServer creates an API server wired to the given messaging service, flow
// engine and store.
func NewServer(msgService messaging.Service, engine *flow.Engine, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	return &Server{
		msgService:  msgService,
		engine:      engine,
		st:          st,
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
	}
}

// Handler builds the HTTP routing table for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/bookings", s.bookingsHandler)
	mux.HandleFunc("/pauses", s.pausesHandler)

	// When running on the Twilio backend, inbound messages arrive on the
	// Twilio webhook instead of the Cloud API one.
	if twilioSvc, ok := s.msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/twilio/webhook", twilioSvc.WebhookHandler)
		slog.Debug("Server.Handler: Twilio webhook endpoint registered")
	}

	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// server fails. On cancellation the server is shut down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return err
		}
		slog.Info("Server.Run: API server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.Run: API server failed", "error", err)
		return err
	}
}
