// Package roomserver is a small room server for local development: it
// issues tokens over HTTP and relays room events and SDP between clients
// over websockets.
package roomserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	hub  *Hub
	http *http.Server
}

func NewServer(addr, secret string) *Server {
	hub := NewHub()
	return &Server{
		hub: hub,
		http: &http.Server{
			Addr:              addr,
			Handler:           Routes(hub, secret),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the routes, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Hub returns the hub the routes talk to.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe runs the hub and the HTTP server until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		slog.Info("room server listening", "addr", s.http.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
