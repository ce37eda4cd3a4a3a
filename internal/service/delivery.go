package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/kodokojo/eventgate/internal/adapter/directory"
	"github.com/kodokojo/eventgate/internal/domain/model"
	"github.com/kodokojo/eventgate/internal/domain/registry"
)

// Deliverer is the primary interface for push transport handlers
// (websocket, SSE): connection lifecycle plus the authentication handshake.
type Deliverer interface {
	Subscribe(ctx context.Context) *registry.Session
	Authenticate(ctx context.Context, s *registry.Session, authorization string) (*model.User, error)
	Touch(s *registry.Session)
	Unsubscribe(s *registry.Session)
}

type DeliveryService struct {
	registry  *registry.Registry
	directory directory.Directory
}

func NewDeliveryService(reg *registry.Registry, dir directory.Directory) *DeliveryService {
	return &DeliveryService{
		registry:  reg,
		directory: dir,
	}
}

// Subscribe registers a fresh, still-anonymous session. The grace-window
// clock starts immediately.
func (s *DeliveryService) Subscribe(ctx context.Context) *registry.Session {
	return s.registry.Register(ctx)
}

// Authenticate verifies a Basic credential pair against the user directory
// and promotes the session. The error distinguishes malformed credentials,
// rejected credentials, and an expired grace window.
func (s *DeliveryService) Authenticate(ctx context.Context, sess *registry.Session, authorization string) (*model.User, error) {
	username, password, err := ParseBasicAuthorization(authorization)
	if err != nil {
		return nil, err
	}

	user, err := s.directory.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %q", ErrBadCredentials, username)
		}
		return nil, fmt.Errorf("service: user lookup: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return nil, fmt.Errorf("%w: user %q", ErrBadCredentials, username)
	}

	if err := s.registry.Authenticate(sess, user.Identifier); err != nil {
		return nil, err
	}
	return user, nil
}

// Touch records heartbeat activity on an authenticated session.
func (s *DeliveryService) Touch(sess *registry.Session) {
	s.registry.Touch(sess)
}

// Unsubscribe removes and closes the session. Idempotent.
func (s *DeliveryService) Unsubscribe(sess *registry.Session) {
	s.registry.Remove(sess)
}
