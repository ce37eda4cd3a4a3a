package sse

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kodokojo/eventgate/internal/service"
)

// Handler serves the Server-Sent-Events push channel. Unlike the websocket
// transport, authentication happens at connect time from the Authorization
// header, so the session moves straight to AUTHENTICATED.
type Handler struct {
	logger            *slog.Logger
	deliverer         service.Deliverer
	heartbeatInterval time.Duration
}

func NewHandler(logger *slog.Logger, deliverer service.Deliverer, heartbeatInterval time.Duration) *Handler {
	return &Handler{
		logger:            logger,
		deliverer:         deliverer,
		heartbeatInterval: heartbeatInterval,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := h.deliverer.Subscribe(r.Context())
	defer h.deliverer.Unsubscribe(sess)

	user, err := h.deliverer.Authenticate(r.Context(), sess, r.Header.Get("Authorization"))
	if err != nil {
		if errors.Is(err, service.ErrMalformedCredentials) || errors.Is(err, service.ErrBadCredentials) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventgate"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Error("sse authentication failed", "err", err)
		http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
		return
	}

	l := h.logger.With("session_id", sess.ID(), "user_id", user.Identifier)
	l.Info("sse stream opened")
	defer l.Info("sse stream closed")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Conn().Done():
			return
		case <-heartbeat.C:
			// Comment line keeps intermediaries from reaping the stream.
			if _, err := fmt.Fprint(w, ":ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case data := <-sess.Conn().Recv():
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				l.Warn("sse send failed", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}
