// Package server exposes the engine over HTTP: buffered chat, SSE and
// WebSocket streaming, suggestions, health probes, model listing and the MCP
// tool endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/germanamz/swchat/pkg/engine"
)

// Options configures a Server.
type Options struct {
	Logger *slog.Logger // Base logger for request logs; defaults to slog.Default().
	MCP    http.Handler // Mounted at /mcp when set.

	// WSOriginPatterns lists host patterns allowed to open /ws from a
	// browser on another origin. Requests without an Origin header are
	// always accepted.
	WSOriginPatterns []string

	ShutdownTimeout time.Duration // Grace period for in-flight requests (default 10s).
}

// Server routes HTTP requests to an Engine.
type Server struct {
	engine  *engine.Engine
	opts    Options
	handler http.Handler
}

// New builds the route table for e.
func New(e *engine.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{engine: e, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /stream", s.handleStream)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /suggestions", s.handleSuggestions)
	mux.HandleFunc("GET /live", s.handleLive)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /debug/models", s.handleModels)
	if opts.MCP != nil {
		mux.Handle("/mcp", opts.MCP)
	}

	s.handler = Chain(mux, RequestLogger(opts.Logger), Recover())

	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.InfoContext(ctx, "server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	s.opts.Logger.InfoContext(ctx, "server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
