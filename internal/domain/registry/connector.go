package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the push channel attached to a single live client connection.
// Transports (websocket, SSE) pump Recv into the wire; the notification
// router feeds it through Send. A false Send return means the channel is
// dead or saturated and its session must be deregistered.
type Connector interface {
	ID() uuid.UUID
	Send(data []byte, timeout time.Duration) bool
	Recv() <-chan []byte
	Done() <-chan struct{}
	Close()
}

// connect is the concrete implementation, unexported to force interface usage.
// Each connection gets a fresh allocation: the registry, the transport pump
// and the router all hold references concurrently, so instances are never
// recycled.
type connect struct {
	id        uuid.UUID
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	// Buffered mailbox decoupling the fan-out from individual delivery.
	// A slow consumer saturates only its own mailbox, never the router.
	sendCh chan []byte

	closeOnce    sync.Once
	droppedCount uint64
}

// NewConnector builds a connector bound to ctx.
func NewConnector(ctx context.Context, bufferSize int) Connector {
	childCtx, cancel := context.WithCancel(ctx)
	return &connect{
		id:        uuid.New(),
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan []byte, bufferSize),
	}
}

func (c *connect) ID() uuid.UUID { return c.id }

// Send enqueues data into the mailbox, waiting up to timeout for space.
// The timeout keeps a stalled session from holding the fan-out hostage.
// A closed connector always reports failure, even while the mailbox still
// has room.
func (c *connect) Send(data []byte, timeout time.Duration) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- data:
		return true
	case <-timer.C:
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}
}

func (c *connect) Recv() <-chan []byte { return c.sendCh }

// Done is closed once the connector is closed; transport pump loops select
// on it to terminate.
func (c *connect) Done() <-chan struct{} { return c.ctx.Done() }

// Close terminates the channel. Safe to call from the registry, the janitor
// and the transport handler concurrently, any number of times.
func (c *connect) Close() {
	c.closeOnce.Do(c.cancelFn)
}
