// Package server wires the websocket page endpoint and the MCP tool endpoint
// onto one HTTP listener.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/devpilot/devpilot/internal/bridge"
	"github.com/devpilot/devpilot/internal/client"
	"github.com/devpilot/devpilot/internal/config"
	"github.com/devpilot/devpilot/internal/mcptools"
)

// Run starts the bridge server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	if err := checkPortAvailable(cfg.Listen); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}

	hub := client.NewHub(cfg.Bridge.ConsoleCapacity)
	b := bridge.New(hub)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(corsMiddleware())

	r.Get("/health", healthHandler(hub))

	// Pages connect here from their own origin.
	r.Get("/ws", hub.ServeWS)

	// MCP clients talk to the tool surface. Tool calls inherit the bridge
	// call timeout so a wedged page cannot hold a call open forever.
	mcpHandler := withTimeout(time.Duration(cfg.Bridge.CallTimeout), mcptools.Handler(b))
	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)

	// ReadTimeout/WriteTimeout are omitted: they set deadlines on the
	// underlying net.Conn, which breaks hijacked websocket connections.
	httpServer := &http.Server{
		Addr:        cfg.Listen,
		Handler:     r,
		IdleTimeout: 120 * time.Second,
	}

	logger := slog.Default().With("component", "server")
	logger.Info("listening", "addr", cfg.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func healthHandler(hub *client.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","clients":%d}`, len(hub.List()))
	}
}

// withTimeout bounds each request's context. The MCP SDK threads it through
// to the tool handler, so page round trips inherit the deadline.
func withTimeout(d time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware allows any origin. The bridge serves local development
// pages that run on arbitrary ports and hosts.
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id, Mcp-Protocol-Version")
			w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkPortAvailable reports whether the address can be bound right now.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
