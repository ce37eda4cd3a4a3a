package registry

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the handshake lifecycle position of a session.
type State int32

const (
	// StateConnecting is the window between transport accept and a valid
	// authentication handshake.
	StateConnecting State = iota + 1
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one live push connection. It starts anonymous (CONNECTING) and
// is bound to a user id on successful authentication. All mutable fields
// except lastActivity are guarded by the owning Registry's mutex.
type Session struct {
	id   uuid.UUID
	conn Connector

	state           State
	userID          string
	connectedAt     time.Time
	authenticatedAt time.Time

	// Unix nanos, updated lock-free on every inbound client message.
	lastActivity atomic.Int64
}

func (s *Session) ID() uuid.UUID   { return s.id }
func (s *Session) Conn() Connector { return s.conn }

// UserID returns the bound user id, or "" while still connecting.
func (s *Session) UserID() string { return s.userID }

// LastActivity reports the time of the last client heartbeat or message.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	now := time.Now().UnixNano()
	// Monotonic guard: never move activity backwards.
	for {
		prev := s.lastActivity.Load()
		if prev >= now || s.lastActivity.CompareAndSwap(prev, now) {
			return
		}
	}
}
