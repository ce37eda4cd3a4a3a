package httpapi

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kodokojo/eventgate/internal/adapter/directory"
	"github.com/kodokojo/eventgate/internal/domain/correlator"
	"github.com/kodokojo/eventgate/internal/domain/event"
	"github.com/kodokojo/eventgate/internal/service"
)

const maxBodySize = 1 << 20

// Gateway bridges HTTP callers to the bus: the request body becomes the
// payload of a REQUEST event, and the worker's reply payload becomes the
// response body. With wait=false the event is published fire-and-forget.
type Gateway struct {
	correlator *correlator.Correlator
	directory  directory.Directory
	logger     *slog.Logger
	timeout    time.Duration
}

func NewGateway(corr *correlator.Correlator, dir directory.Directory, logger *slog.Logger, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		correlator: corr,
		directory:  dir,
		logger:     logger,
		timeout:    timeout,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "type")
	if eventType == "" {
		http.Error(w, "missing event type", http.StatusBadRequest)
		return
	}

	requester, ok := g.authenticate(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	ev := event.NewRequest(eventType, body)
	ev.SetHeader(event.HeaderRequesterID, requester)

	if r.URL.Query().Get("wait") == "false" {
		if err := g.correlator.Send(r.Context(), ev); err != nil {
			g.logger.Error("fire-and-forget publish failed", "type", eventType, "err", err)
			http.Error(w, "publish failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	reply, err := g.correlator.Request(r.Context(), ev, g.timeout)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(reply.Payload)
	case errors.Is(err, correlator.ErrTimeout):
		http.Error(w, "no reply from backend", http.StatusGatewayTimeout)
	default:
		g.logger.Error("request failed", "type", eventType, "err", err)
		http.Error(w, "request failed", http.StatusBadGateway)
	}
}

// authenticate verifies the Basic Authorization header against the user
// directory and returns the requester's identifier.
func (g *Gateway) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, password, err := service.ParseBasicAuthorization(r.Header.Get("Authorization"))
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="eventgate"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}

	user, err := g.directory.UserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return "", false
		}
		g.logger.Error("requester lookup failed", "err", err)
		http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return user.Identifier, true
}
