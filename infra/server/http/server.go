package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kodokojo/eventgate/internal/domain/correlator"
	"github.com/kodokojo/eventgate/internal/domain/model"
	"github.com/kodokojo/eventgate/internal/domain/registry"
	"github.com/kodokojo/eventgate/internal/handler/httpapi"
	"github.com/kodokojo/eventgate/internal/handler/sse"
	"github.com/kodokojo/eventgate/internal/handler/ws"
)

// Server hosts the push endpoints and the ops surface.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(listen string, logger *slog.Logger, wsHandler *ws.Handler, sseHandler *sse.Handler, gateway *httpapi.Gateway, reg *registry.Registry, corr *correlator.Correlator) *Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := struct {
			Registry        model.RegistryStats `json:"registry"`
			PendingRequests int                 `json:"pending_requests"`
		}{
			Registry:        reg.Stats(),
			PendingRequests: corr.PendingCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	r.Get("/events/ws", wsHandler.ServeHTTP)
	r.Get("/events/sse", sseHandler.ServeHTTP)
	r.Post("/api/request/{type}", gateway.ServeHTTP)

	return &Server{
		srv: &http.Server{
			Addr:              listen,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
