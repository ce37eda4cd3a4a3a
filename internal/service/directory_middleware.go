package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/kodokojo/eventgate/internal/adapter/directory"
	"github.com/kodokojo/eventgate/internal/domain/model"
)

// directoryMiddleware decorates the directory collaborator with timing and
// outcome logging, keeping observability out of the client itself.
type directoryMiddleware struct {
	next   directory.Directory
	logger *slog.Logger
}

func NewDirectoryMiddleware(next directory.Directory, logger *slog.Logger) directory.Directory {
	return &directoryMiddleware{next: next, logger: logger}
}

func (m *directoryMiddleware) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	start := time.Now()
	user, err := m.next.UserByUsername(ctx, username)
	m.log("user_by_username", err, start, "username", username)
	return user, err
}

func (m *directoryMiddleware) ProjectByID(ctx context.Context, id string) (*model.Project, error) {
	start := time.Now()
	project, err := m.next.ProjectByID(ctx, id)
	m.log("project_by_id", err, start, "project_id", id)
	return project, err
}

func (m *directoryMiddleware) OrganisationByID(ctx context.Context, id string) (*model.Organisation, error) {
	start := time.Now()
	org, err := m.next.OrganisationByID(ctx, id)
	m.log("organisation_by_id", err, start, "organisation_id", id)
	return org, err
}

func (m *directoryMiddleware) log(op string, err error, start time.Time, args ...any) {
	args = append(args, "op", op, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		m.logger.Warn("directory lookup failed", append(args, "err", err)...)
		return
	}
	m.logger.Debug("directory lookup", args...)
}
