package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kodokojo/eventgate/internal/domain/model"
)

var (
	// ErrSessionClosed is returned when operating on a session that was
	// already removed from the registry.
	ErrSessionClosed = errors.New("registry: session closed")

	// ErrGraceExpired is returned when a handshake arrives after the
	// authentication grace window elapsed.
	ErrGraceExpired = errors.New("registry: authentication grace window expired")
)

// Registry tracks every live push session. Sessions are keyed by session id;
// an additional per-user index serves audience lookups. Multiple concurrent
// sessions per user are allowed (multiple tabs or devices).
type Registry struct {
	logger *slog.Logger
	config settings

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	byUser   map[string]map[uuid.UUID]*Session

	startedAt time.Time
	done      chan struct{}
	stopOnce  sync.Once
}

func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:    logger,
		config:    defaultSettings(),
		sessions:  make(map[uuid.UUID]*Session),
		byUser:    make(map[string]map[uuid.UUID]*Session),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.sweepLoop()
	return r
}

// Register accepts a fresh connection in CONNECTING state. The grace-window
// clock starts here; the session must authenticate before it elapses.
func (r *Registry) Register(ctx context.Context) *Session {
	s := &Session{
		id:          uuid.New(),
		conn:        NewConnector(ctx, r.config.mailboxSize),
		state:       StateConnecting,
		connectedAt: time.Now(),
	}
	s.touch()

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.logger.Debug("session registered", "session_id", s.id)
	return s
}

// Authenticate binds the session to a user and makes it visible to audience
// lookups. A handshake past the grace window closes the session instead.
func (r *Registry) Authenticate(s *Session, userID string) error {
	r.mu.Lock()
	if _, ok := r.sessions[s.id]; !ok || s.state != StateConnecting {
		r.mu.Unlock()
		return ErrSessionClosed
	}
	if time.Since(s.connectedAt) > r.config.graceWindow {
		delete(r.sessions, s.id)
		r.mu.Unlock()
		s.conn.Close()
		r.logger.Info("session rejected, too slow to authenticate", "session_id", s.id)
		return ErrGraceExpired
	}

	s.state = StateAuthenticated
	s.userID = userID
	s.authenticatedAt = time.Now()
	byUser := r.byUser[userID]
	if byUser == nil {
		byUser = make(map[uuid.UUID]*Session)
		r.byUser[userID] = byUser
	}
	byUser[s.id] = s
	r.mu.Unlock()

	s.touch()
	r.logger.Info("session authenticated", "session_id", s.id, "user_id", userID)
	return nil
}

// Touch records client activity (heartbeat semantics).
func (r *Registry) Touch(s *Session) {
	s.touch()
}

// Remove detaches and closes a session. Idempotent; safe to call from the
// transport handler, the router on push failure, and the janitor.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	_, present := r.sessions[s.id]
	if present {
		delete(r.sessions, s.id)
		s.state = StateClosed
		if s.userID != "" {
			if byUser, ok := r.byUser[s.userID]; ok {
				delete(byUser, s.id)
				if len(byUser) == 0 {
					delete(r.byUser, s.userID)
				}
			}
		}
	}
	r.mu.Unlock()

	if present {
		s.conn.Close()
		r.logger.Debug("session removed", "session_id", s.id, "user_id", s.userID)
	}
}

// SessionsFor resolves user ids to their live authenticated sessions. Ids
// without a session are silently skipped.
func (r *Registry) SessionsFor(userIDs []string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, id := range userIDs {
		for _, s := range r.byUser[id] {
			if s.state == StateAuthenticated {
				out = append(out, s)
			}
		}
	}
	return out
}

// Stats snapshots the registry for the stats endpoint.
func (r *Registry) Stats() model.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := 0
	for _, s := range r.sessions {
		if s.state == StateConnecting {
			pending++
		}
	}
	return model.RegistryStats{
		ConnectedUsers:    len(r.byUser),
		TotalSessions:     len(r.sessions),
		PendingHandshakes: pending,
		Uptime:            time.Since(r.startedAt),
	}
}

// Shutdown stops the janitor and closes every remaining session.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	remaining := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		remaining = append(remaining, s)
	}
	r.sessions = make(map[uuid.UUID]*Session)
	r.byUser = make(map[string]map[uuid.UUID]*Session)
	for _, s := range remaining {
		s.state = StateClosed
	}
	r.mu.Unlock()

	for _, s := range remaining {
		s.conn.Close()
	}
}

// sweepLoop evicts sessions stuck in CONNECTING past the grace window.
func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.config.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.config.graceWindow)

	r.mu.RLock()
	var expired []*Session
	for _, s := range r.sessions {
		if s.state == StateConnecting && s.connectedAt.Before(cutoff) {
			expired = append(expired, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range expired {
		r.logger.Info("evicting unauthenticated session", "session_id", s.id,
			"age", time.Since(s.connectedAt))
		r.Remove(s)
	}
}
