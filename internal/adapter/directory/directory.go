package directory

import (
	"context"
	"errors"

	"github.com/kodokojo/eventgate/internal/domain/model"
)

// ErrNotFound reports that the directory has no record for the identifier.
var ErrNotFound = errors.New("directory: not found")

// Directory is the external collaborator resolving users, projects and
// organisations. The gateway only needs these three lookups: credentials
// verification and audience computation.
type Directory interface {
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	ProjectByID(ctx context.Context, id string) (*model.Project, error)
	OrganisationByID(ctx context.Context, id string) (*model.Organisation, error)
}
