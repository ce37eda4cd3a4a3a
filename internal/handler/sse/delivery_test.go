package sse

import (
	"bufio"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodokojo/eventgate/internal/adapter/directory"
	"github.com/kodokojo/eventgate/internal/domain/model"
	"github.com/kodokojo/eventgate/internal/domain/registry"
	"github.com/kodokojo/eventgate/internal/service"
)

type staticDirectory struct {
	users map[string]*model.User
}

func (d *staticDirectory) UserByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := d.users[username]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return u, nil
}

func (d *staticDirectory) ProjectByID(context.Context, string) (*model.Project, error) {
	return nil, directory.ErrNotFound
}

func (d *staticDirectory) OrganisationByID(context.Context, string) (*model.Organisation, error) {
	return nil, directory.ErrNotFound
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func newSSEFixture(t *testing.T) (*registry.Registry, *httptest.Server) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	reg := registry.NewRegistry(logger, registry.WithMailboxSize(8))
	t.Cleanup(reg.Shutdown)

	dir := &staticDirectory{users: map[string]*model.User{
		"jdoe": {Identifier: "u1", Username: "jdoe", Password: "secret"},
	}}
	deliverer := service.NewDeliveryService(reg, dir)

	srv := httptest.NewServer(NewHandler(logger, deliverer, 30*time.Second))
	t.Cleanup(srv.Close)
	return reg, srv
}

func TestRejectsBadCredentials(t *testing.T) {
	_, srv := newSSEFixture(t)

	tests := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"not basic", "Bearer token"},
		{"wrong password", basicAuth("jdoe", "wrong")},
		{"unknown user", basicAuth("ghost", "secret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
			require.NoError(t, err)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}

			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestStreamsPushedEvents(t *testing.T) {
	reg, srv := newSSEFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", basicAuth("jdoe", "secret"))

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The session is registered before the response headers are written, so
	// it is visible once the request succeeded.
	require.Eventually(t, func() bool {
		return len(reg.SessionsFor([]string{"u1"})) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sessions := reg.SessionsFor([]string{"u1"})
	require.True(t, sessions[0].Conn().Send([]byte(`{"state":"RUNNING"}`), time.Second))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: {\"state\":\"RUNNING\"}\n", line)
}
