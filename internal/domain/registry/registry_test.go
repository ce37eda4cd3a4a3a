package registry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := NewRegistry(slog.New(slog.DiscardHandler), opts...)
	t.Cleanup(r.Shutdown)
	return r
}

func TestAuthenticateMakesSessionVisible(t *testing.T) {
	r := newTestRegistry(t)

	s := r.Register(context.Background())
	assert.Empty(t, r.SessionsFor([]string{"u1"}), "connecting sessions are invisible to lookups")

	require.NoError(t, r.Authenticate(s, "u1"))
	sessions := r.SessionsFor([]string{"u1"})
	require.Len(t, sessions, 1)
	assert.Equal(t, s.ID(), sessions[0].ID())
	assert.Equal(t, "u1", sessions[0].UserID())
}

func TestMultipleSessionsPerUser(t *testing.T) {
	r := newTestRegistry(t)

	first := r.Register(context.Background())
	second := r.Register(context.Background())
	require.NoError(t, r.Authenticate(first, "u1"))
	require.NoError(t, r.Authenticate(second, "u1"))

	assert.Len(t, r.SessionsFor([]string{"u1"}), 2, "a second device must not evict the first")
}

func TestAuthenticatePastGraceWindowCloses(t *testing.T) {
	// Long sweep interval: exercise the lazy check-on-access path.
	r := newTestRegistry(t, WithGraceWindow(20*time.Millisecond), WithSweepInterval(time.Hour))

	s := r.Register(context.Background())
	time.Sleep(50 * time.Millisecond)

	require.ErrorIs(t, r.Authenticate(s, "u1"), ErrGraceExpired)
	assert.Empty(t, r.SessionsFor([]string{"u1"}))

	select {
	case <-s.Conn().Done():
	default:
		t.Fatal("expired session's channel must be closed")
	}
}

func TestJanitorEvictsStaleHandshakes(t *testing.T) {
	r := newTestRegistry(t, WithGraceWindow(20*time.Millisecond), WithSweepInterval(10*time.Millisecond))

	s := r.Register(context.Background())

	require.Eventually(t, func() bool {
		select {
		case <-s.Conn().Done():
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "janitor should close the unauthenticated session")

	assert.ErrorIs(t, r.Authenticate(s, "u1"), ErrSessionClosed)
	assert.Zero(t, r.Stats().TotalSessions)
}

func TestAuthenticatedSessionSurvivesSweep(t *testing.T) {
	r := newTestRegistry(t, WithGraceWindow(20*time.Millisecond), WithSweepInterval(10*time.Millisecond))

	s := r.Register(context.Background())
	require.NoError(t, r.Authenticate(s, "u1"))

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, r.SessionsFor([]string{"u1"}), 1)
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	s := r.Register(context.Background())
	require.NoError(t, r.Authenticate(s, "u1"))

	r.Remove(s)
	r.Remove(s)
	assert.Empty(t, r.SessionsFor([]string{"u1"}))
	assert.Zero(t, r.Stats().TotalSessions)
}

func TestSessionsForSkipsUnknownIDs(t *testing.T) {
	r := newTestRegistry(t)

	s := r.Register(context.Background())
	require.NoError(t, r.Authenticate(s, "u1"))

	sessions := r.SessionsFor([]string{"u1", "ghost", "another-ghost"})
	assert.Len(t, sessions, 1, "ids without a live session are skipped, not errors")
}

func TestTouchAdvancesLastActivity(t *testing.T) {
	r := newTestRegistry(t)

	s := r.Register(context.Background())
	before := s.LastActivity()
	time.Sleep(5 * time.Millisecond)
	r.Touch(s)
	assert.True(t, s.LastActivity().After(before))
}

func TestStatsSnapshot(t *testing.T) {
	r := newTestRegistry(t)

	a := r.Register(context.Background())
	r.Register(context.Background()) // stays connecting
	require.NoError(t, r.Authenticate(a, "u1"))

	stats := r.Stats()
	assert.Equal(t, 1, stats.ConnectedUsers)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.PendingHandshakes)
	assert.Greater(t, stats.Uptime, time.Duration(0))
}

func TestConnectorSendAndClose(t *testing.T) {
	conn := NewConnector(context.Background(), 1)

	assert.True(t, conn.Send([]byte("one"), 10*time.Millisecond))
	// Mailbox full: the send times out instead of blocking the caller.
	assert.False(t, conn.Send([]byte("two"), 10*time.Millisecond))

	got := <-conn.Recv()
	assert.Equal(t, []byte("one"), got)

	conn.Close()
	conn.Close() // safe to call twice
	assert.False(t, conn.Send([]byte("three"), 10*time.Millisecond))
}

func TestConnectorClosedSendFailsWithFreeBuffer(t *testing.T) {
	conn := NewConnector(context.Background(), 8)
	conn.Close()

	// Room in the mailbox must not mask the closed state: the router relies
	// on a false return to deregister the session.
	for range 100 {
		assert.False(t, conn.Send([]byte("x"), time.Millisecond))
	}
}

func TestConnectorStaleCloseDoesNotTouchNewerConnections(t *testing.T) {
	old := NewConnector(context.Background(), 1)
	old.Close()

	fresh := NewConnector(context.Background(), 1)
	// The ws handler closes the connector once itself and once via Remove;
	// the stale second close must never reach a later connection.
	old.Close()

	select {
	case <-fresh.Done():
		t.Fatal("closing a dead connector cancelled an unrelated live one")
	default:
	}
	assert.True(t, fresh.Send([]byte("x"), 10*time.Millisecond))
	fresh.Close()
}
