package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role describes the request/reply semantics of an event on the bus.
type Role string

const (
	RoleRequest Role = "REQUEST"
	RoleReply   Role = "REPLY"
	RoleNotice  Role = "NOTICE"
)

// Routing headers shared with the backend workers. These identifiers are part
// of the wire contract and must not change without coordinating all services
// on the bus.
const (
	HeaderProjectConfigurationID = "projectConfigurationId"
	HeaderOrganisationID         = "organisationId"
	HeaderBroadcastFrom          = "broadcastFrom"
	HeaderRequesterID            = "requesterId"
	HeaderReplyTo                = "replyTo"
	HeaderFrom                   = "from"
)

// Well-known event types eligible for live push. The allow-list itself is
// configuration; these are its defaults.
const (
	TypeBrickStateUpdate = "brick.state.update"
	TypeProjectStarted   = "project.started"
)

// Event is the immutable unit of exchange on the bus. The payload is opaque
// to the gateway; only type, role, correlation id and headers are interpreted.
type Event struct {
	Type          string            `json:"type"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Role          Role              `json:"role"`
	Headers       map[string]string `json:"headers,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	OccurredAt    int64             `json:"occurredAt,omitempty"`
}

// NewRequest builds a REQUEST event with a fresh correlation id.
func NewRequest(eventType string, payload json.RawMessage) *Event {
	return &Event{
		Type:          eventType,
		CorrelationID: uuid.NewString(),
		Role:          RoleRequest,
		Headers:       map[string]string{},
		Payload:       payload,
		OccurredAt:    time.Now().UnixMilli(),
	}
}

// NewReply builds the REPLY to a request, carrying over its correlation id.
func NewReply(req *Event, payload json.RawMessage) *Event {
	return &Event{
		Type:          req.Type,
		CorrelationID: req.CorrelationID,
		Role:          RoleReply,
		Headers:       map[string]string{},
		Payload:       payload,
		OccurredAt:    time.Now().UnixMilli(),
	}
}

// NewNotice builds a one-way broadcast event.
func NewNotice(eventType string, payload json.RawMessage) *Event {
	return &Event{
		Type:       eventType,
		Role:       RoleNotice,
		Headers:    map[string]string{},
		Payload:    payload,
		OccurredAt: time.Now().UnixMilli(),
	}
}

// Header returns the value for key, or "" when absent.
func (e *Event) Header(key string) string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers[key]
}

// SetHeader stores a routing header, allocating the map lazily.
func (e *Event) SetHeader(key, value string) *Event {
	if e.Headers == nil {
		e.Headers = map[string]string{}
	}
	e.Headers[key] = value
	return e
}

// Encode serializes the event to its JSON wire shape.
func Encode(e *Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("event: cannot encode nil event")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event: encode %q: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses and validates an event from its wire shape.
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("event: decode: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("event: decode: missing type")
	}
	switch e.Role {
	case RoleRequest, RoleReply:
		if e.CorrelationID == "" {
			return nil, fmt.Errorf("event: decode: %s %q without correlation id", e.Role, e.Type)
		}
	case RoleNotice:
	default:
		return nil, fmt.Errorf("event: decode: unknown role %q", e.Role)
	}
	return &e, nil
}
