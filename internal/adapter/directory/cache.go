package directory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kodokojo/eventgate/internal/domain/model"
)

// Interface guard
var _ Directory = (*CachingDirectory)(nil)

// CachingDirectory is a cache-aside decorator for project and organisation
// lookups, which fire on every fan-out. Entries expire quickly so membership
// changes propagate within the TTL. User lookups are never cached: they back
// credential checks and must stay fresh.
type CachingDirectory struct {
	next     Directory
	projects *expirable.LRU[string, *model.Project]
	orgs     *expirable.LRU[string, *model.Organisation]
}

func NewCachingDirectory(next Directory, size int, ttl time.Duration) *CachingDirectory {
	return &CachingDirectory{
		next:     next,
		projects: expirable.NewLRU[string, *model.Project](size, nil, ttl),
		orgs:     expirable.NewLRU[string, *model.Organisation](size, nil, ttl),
	}
}

func (c *CachingDirectory) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return c.next.UserByUsername(ctx, username)
}

func (c *CachingDirectory) ProjectByID(ctx context.Context, id string) (*model.Project, error) {
	if cached, ok := c.projects.Get(id); ok {
		return cached, nil
	}
	project, err := c.next.ProjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.projects.Add(id, project)
	return project, nil
}

func (c *CachingDirectory) OrganisationByID(ctx context.Context, id string) (*model.Organisation, error) {
	if cached, ok := c.orgs.Get(id); ok {
		return cached, nil
	}
	org, err := c.next.OrganisationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.orgs.Add(id, org)
	return org, nil
}
