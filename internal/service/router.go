package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kodokojo/eventgate/internal/adapter/directory"
	"github.com/kodokojo/eventgate/internal/domain/event"
	"github.com/kodokojo/eventgate/internal/domain/registry"
	"golang.org/x/sync/errgroup"
)

// RoutingConfig is the injected routing table: which notice types are
// pushed, which instance marker breaks broadcast loops, and how long a
// single session may stall a push attempt.
type RoutingConfig struct {
	AllowedTypes []string
	InstanceID   string
	PushTimeout  time.Duration
}

// Router computes the audience of backend notices and fans them out to live
// sessions. One dispatch never blocks on, or fails because of, a single
// recipient.
type Router struct {
	registry  *registry.Registry
	directory directory.Directory
	logger    *slog.Logger

	allowed     map[string]struct{}
	instanceID  string
	pushTimeout time.Duration
}

func NewRouter(reg *registry.Registry, dir directory.Directory, logger *slog.Logger, cfg RoutingConfig) *Router {
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[t] = struct{}{}
	}
	pushTimeout := cfg.PushTimeout
	if pushTimeout <= 0 {
		pushTimeout = 500 * time.Millisecond
	}
	return &Router{
		registry:    reg,
		directory:   dir,
		logger:      logger,
		allowed:     allowed,
		instanceID:  cfg.InstanceID,
		pushTimeout: pushTimeout,
	}
}

// Dispatch pushes a NOTICE to every connected user in its audience,
// concurrently and independently. Sessions whose push fails are removed.
// Returns the number of sessions the event was delivered to.
func (r *Router) Dispatch(ctx context.Context, ev *event.Event) int {
	if ev.Role != event.RoleNotice {
		return 0
	}
	if from := ev.Header(event.HeaderBroadcastFrom); from != "" && from == r.instanceID {
		// Echo of our own broadcast, already handled.
		return 0
	}
	if _, ok := r.allowed[ev.Type]; !ok {
		r.logger.Debug("notice type not eligible for push", "type", ev.Type)
		return 0
	}

	audience, ok := r.audience(ctx, ev)
	if !ok {
		return 0
	}

	sessions := r.registry.SessionsFor(audience)
	if len(sessions) == 0 {
		return 0
	}

	data, err := event.Encode(ev)
	if err != nil {
		r.logger.Error("cannot serialize notice for push", "type", ev.Type, "err", err)
		return 0
	}

	var delivered atomic.Int64
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *registry.Session) {
			defer wg.Done()
			if s.Conn().Send(data, r.pushTimeout) {
				delivered.Add(1)
				return
			}
			r.logger.Warn("push failed, removing session",
				"session_id", s.ID(), "user_id", s.UserID())
			r.registry.Remove(s)
		}(s)
	}
	wg.Wait()

	r.logger.Debug("notice dispatched",
		"type", ev.Type,
		"audience", len(audience),
		"sessions", len(sessions),
		"delivered", delivered.Load(),
	)
	return int(delivered.Load())
}

// audience resolves the routing headers to a deduplicated set of user ids.
// Exactly one of the project/organisation headers is expected; a notice
// carrying neither is dropped.
func (r *Router) audience(ctx context.Context, ev *event.Event) ([]string, bool) {
	seen := make(map[string]struct{})

	switch {
	case ev.Header(event.HeaderProjectConfigurationID) != "":
		projectID := ev.Header(event.HeaderProjectConfigurationID)
		project, err := r.directory.ProjectByID(ctx, projectID)
		if err != nil {
			r.logger.Warn("audience unresolvable, dropping notice",
				"type", ev.Type, "project_id", projectID, "err", err)
			return nil, false
		}
		collect(seen, project.Members, project.Leads)

	case ev.Header(event.HeaderOrganisationID) != "":
		orgID := ev.Header(event.HeaderOrganisationID)
		org, err := r.directory.OrganisationByID(ctx, orgID)
		if err != nil {
			r.logger.Warn("audience unresolvable, dropping notice",
				"type", ev.Type, "organisation_id", orgID, "err", err)
			return nil, false
		}

		// Resolve the organisation's projects concurrently. A single
		// failed project lookup narrows the audience instead of dropping
		// the whole notice.
		members := make([][]string, len(org.ProjectIDs))
		g, gCtx := errgroup.WithContext(ctx)
		for i, projectID := range org.ProjectIDs {
			g.Go(func() error {
				project, err := r.directory.ProjectByID(gCtx, projectID)
				if err != nil {
					r.logger.Warn("skipping unresolvable project in organisation audience",
						"project_id", projectID, "err", err)
					return nil
				}
				ids := make([]string, 0, len(project.Members)+len(project.Leads))
				ids = append(ids, project.Members...)
				ids = append(ids, project.Leads...)
				members[i] = ids
				return nil
			})
		}
		_ = g.Wait()
		for _, ids := range members {
			collect(seen, ids)
		}

	default:
		r.logger.Warn("notice without routing scope header, dropping", "type", ev.Type)
		return nil, false
	}

	if len(seen) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, true
}

func collect(into map[string]struct{}, lists ...[]string) {
	for _, list := range lists {
		for _, id := range list {
			if id != "" {
				into[id] = struct{}{}
			}
		}
	}
}
