package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kodokojo/eventgate/internal/domain/model"
	"github.com/sony/gobreaker"
)

// Interface guard
var _ Directory = (*Client)(nil)

// Client talks to the directory service over HTTP. All calls go through a
// circuit breaker so a dead directory fails fast instead of piling up
// blocked fan-outs.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "directory",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A miss is an answer, not an outage.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
		}),
	}
}

func (c *Client) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := c.get(ctx, "/api/v1/users/by-username/"+url.PathEscape(username), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ProjectByID(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	if err := c.get(ctx, "/api/v1/projects/"+url.PathEscape(id), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) OrganisationByID(ctx context.Context, id string) (*model.Organisation, error) {
	var org model.Organisation
	if err := c.get(ctx, "/api/v1/organisations/"+url.PathEscape(id), &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("directory: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("directory: %s: %w", path, err)
		}
		defer res.Body.Close()

		switch {
		case res.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case res.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("directory: %s: unexpected status %d", path, res.StatusCode)
		}

		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("directory: %s: decode: %w", path, err)
		}
		return nil, nil
	})
	return err
}
