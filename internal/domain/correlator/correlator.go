package correlator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kodokojo/eventgate/internal/domain/event"
)

var (
	// ErrTimeout reports that a request outlived its deadline without a
	// matching reply. It is a normal outcome, not a bus failure.
	ErrTimeout = errors.New("correlator: request timed out")

	// ErrCorrelationInFlight reports a correlation id collision with a
	// still-pending request. With UUID-strength ids this indicates a caller
	// bug, not bad luck.
	ErrCorrelationInFlight = errors.New("correlator: correlation id already pending")
)

// Dispatcher is the narrow slice of the transport the correlator publishes
// through.
type Dispatcher interface {
	Publish(ctx context.Context, ev *event.Event) error
}

// pending is the single-assignment result slot for one in-flight request.
// Whoever wins the claim flag owns the outcome: the resolver delivers the
// reply through ch, or the waiter records a timeout.
type pending struct {
	ch      chan *event.Event
	claimed atomic.Bool
}

func (p *pending) claim() bool {
	return p.claimed.CompareAndSwap(false, true)
}

// Correlator turns the one-way bus into synchronous-looking calls: it pairs
// outgoing REQUEST events with incoming REPLY events by correlation id and
// enforces a per-call deadline. Safe for many concurrent callers.
type Correlator struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	replyTopic string

	// correlation id -> *pending
	table sync.Map
}

func New(dispatcher Dispatcher, logger *slog.Logger, replyTopic string) *Correlator {
	return &Correlator{
		dispatcher: dispatcher,
		logger:     logger,
		replyTopic: replyTopic,
	}
}

// ReplyTopic is the per-instance topic backend workers must address replies
// to. It is stamped into every outgoing request.
func (c *Correlator) ReplyTopic() string { return c.replyTopic }

// Send publishes fire-and-forget, with no correlation bookkeeping.
func (c *Correlator) Send(ctx context.Context, ev *event.Event) error {
	if err := c.dispatcher.Publish(ctx, ev); err != nil {
		return fmt.Errorf("correlator: send %q: %w", ev.Type, err)
	}
	return nil
}

// Request publishes ev and blocks until the matching REPLY arrives or the
// timeout elapses. The pending slot is registered before the publish so no
// reply can slip past, and exactly one of reply/timeout wins the slot.
func (c *Correlator) Request(ctx context.Context, ev *event.Event, timeout time.Duration) (*event.Event, error) {
	if ev.CorrelationID == "" {
		ev.CorrelationID = uuid.NewString()
	}
	ev.Role = event.RoleRequest
	ev.SetHeader(event.HeaderReplyTo, c.replyTopic)

	p := &pending{ch: make(chan *event.Event, 1)}
	if _, loaded := c.table.LoadOrStore(ev.CorrelationID, p); loaded {
		return nil, fmt.Errorf("%w: %s", ErrCorrelationInFlight, ev.CorrelationID)
	}
	defer c.table.Delete(ev.CorrelationID)

	if err := c.dispatcher.Publish(ctx, ev); err != nil {
		return nil, fmt.Errorf("correlator: request %q: %w", ev.Type, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-p.ch:
		return reply, nil
	case <-ctx.Done():
		return c.expire(p, ctx.Err())
	case <-timer.C:
		return c.expire(p, ErrTimeout)
	}
}

// expire races the result slot against a concurrent resolve. Losing the race
// means a reply was matched in the same instant; honor it instead.
func (c *Correlator) expire(p *pending, cause error) (*event.Event, error) {
	if p.claim() {
		return nil, cause
	}
	return <-p.ch, nil
}

// Resolve is the bus-receive callback for REPLY events. A reply with no
// pending request (expired, duplicate, or foreign) is logged and discarded;
// it is never delivered to a second caller. Reports whether a waiter was
// woken.
func (c *Correlator) Resolve(ev *event.Event) bool {
	if ev.Role != event.RoleReply || ev.CorrelationID == "" {
		c.logger.Warn("ignoring non-reply event on reply topic",
			"type", ev.Type, "role", ev.Role)
		return false
	}

	val, ok := c.table.Load(ev.CorrelationID)
	if !ok {
		c.logger.Info("discarding unmatched reply",
			"type", ev.Type, "correlation_id", ev.CorrelationID)
		return false
	}

	p := val.(*pending)
	if !p.claim() {
		c.logger.Info("discarding duplicate reply",
			"type", ev.Type, "correlation_id", ev.CorrelationID)
		return false
	}

	// Buffer of one and claim ownership guarantee this never blocks.
	p.ch <- ev
	return true
}

// PendingCount reports in-flight requests, for the stats endpoint.
func (c *Correlator) PendingCount() int {
	n := 0
	c.table.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
