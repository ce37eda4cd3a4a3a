// Websocket close codes: 1008 policy violation (malformed handshake),
// 4401 invalid credentials, 4408 authentication grace window expired.
// See https://developer.mozilla.org/docs/Web/API/CloseEvent for the ranges.
package ws

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kodokojo/eventgate/internal/domain/registry"
	wsmarshaller "github.com/kodokojo/eventgate/internal/handler/marshaller/ws"
	"github.com/kodokojo/eventgate/internal/service"
)

const (
	CloseMalformedHandshake = websocket.ClosePolicyViolation // 1008
	CloseInvalidCredentials = 4401
	CloseGraceExpired       = 4408

	writeWait = 10 * time.Second
)

type Handler struct {
	logger      *slog.Logger
	deliverer   service.Deliverer
	upgrader    websocket.Upgrader
	graceWindow time.Duration
}

func NewHandler(logger *slog.Logger, deliverer service.Deliverer, graceWindow time.Duration) *Handler {
	return &Handler{
		logger:      logger,
		deliverer:   deliverer,
		graceWindow: graceWindow,
		upgrader: websocket.Upgrader{
			// Origin checks happen at the fronting proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	sess := h.deliverer.Subscribe(r.Context())
	defer h.deliverer.Unsubscribe(sess)

	l := h.logger.With("session_id", sess.ID(), "remote", r.RemoteAddr)
	l.Info("ws session opened")

	// Single-writer pump: everything written to the socket goes through the
	// session mailbox, including the authentication ack.
	writeDone := make(chan struct{})
	go h.writePump(ws, sess, l, writeDone)

	h.readLoop(r, ws, sess, l)

	// Unblock the pump if the read side ended first.
	sess.Conn().Close()
	<-writeDone
	l.Info("ws session closed")
}

// readLoop drives the handshake state machine, then treats every further
// inbound message as a heartbeat.
func (h *Handler) readLoop(r *http.Request, ws *websocket.Conn, sess *registry.Session, l *slog.Logger) {
	authenticated := false
	_ = ws.SetReadDeadline(time.Now().Add(h.graceWindow))

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			var nerr net.Error
			if !authenticated && errors.As(err, &nerr) && nerr.Timeout() {
				h.closeWith(ws, CloseGraceExpired, "too slow to authenticate")
			}
			return
		}

		if authenticated {
			h.deliverer.Touch(sess)
			continue
		}

		authorization, err := wsmarshaller.ParseAuthentication(raw)
		if err != nil {
			l.Info("malformed handshake", "err", err)
			h.closeWith(ws, CloseMalformedHandshake, "authentication handshake malformed")
			return
		}

		user, err := h.deliverer.Authenticate(r.Context(), sess, authorization)
		switch {
		case err == nil:
			// authenticated below
		case errors.Is(err, service.ErrMalformedCredentials):
			l.Info("malformed credentials in handshake")
			h.closeWith(ws, CloseMalformedHandshake, "authorization value malformed")
			return
		case errors.Is(err, service.ErrBadCredentials):
			l.Info("handshake rejected, invalid credentials")
			h.closeWith(ws, CloseInvalidCredentials, "invalid credentials")
			return
		case errors.Is(err, registry.ErrGraceExpired), errors.Is(err, registry.ErrSessionClosed):
			h.closeWith(ws, CloseGraceExpired, "too slow to authenticate")
			return
		default:
			l.Error("handshake failed", "err", err)
			h.closeWith(ws, websocket.CloseInternalServerErr, "authentication unavailable")
			return
		}

		ack, err := wsmarshaller.AuthenticationAck(user.Identifier)
		if err != nil {
			l.Error("cannot build handshake ack", "err", err)
			return
		}
		if !sess.Conn().Send(ack, writeWait) {
			return
		}

		authenticated = true
		_ = ws.SetReadDeadline(time.Time{})
		l.Info("ws session authenticated", "user_id", user.Identifier)
	}
}

// writePump is the only goroutine writing data frames to the socket.
func (h *Handler) writePump(ws *websocket.Conn, sess *registry.Session, l *slog.Logger, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-sess.Conn().Done():
			return
		case data := <-sess.Conn().Recv():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				l.Warn("ws send failed", "err", err)
				h.deliverer.Unsubscribe(sess)
				return
			}
		}
	}
}

// closeWith sends a close frame with the given code. WriteControl is safe
// alongside the write pump.
func (h *Handler) closeWith(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
