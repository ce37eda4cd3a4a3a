package service

import (
	"context"
	"encoding/base64"
	"log/slog"
	"testing"

	"github.com/kodokojo/eventgate/internal/adapter/directory"
	"github.com/kodokojo/eventgate/internal/domain/model"
	"github.com/kodokojo/eventgate/internal/domain/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basic(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestParseBasicAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
		user    string
		pass    string
	}{
		{name: "valid", value: basic("jdoe", "secret"), user: "jdoe", pass: "secret"},
		{name: "password with colon", value: basic("jdoe", "se:cret"), user: "jdoe", pass: "se:cret"},
		{name: "empty", value: "", wantErr: true},
		{name: "wrong scheme", value: "Bearer abc", wantErr: true},
		{name: "not base64", value: "Basic !!!", wantErr: true},
		{name: "no separator", value: "Basic " + base64.StdEncoding.EncodeToString([]byte("jdoe")), wantErr: true},
		{name: "empty username", value: basic("", "secret"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, pass, err := ParseBasicAuthorization(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.user, user)
			assert.Equal(t, tt.pass, pass)
		})
	}
}

type fakeDirectory struct {
	users    map[string]*model.User
	projects map[string]*model.Project
	orgs     map[string]*model.Organisation
}

func (d *fakeDirectory) UserByUsername(_ context.Context, username string) (*model.User, error) {
	if u, ok := d.users[username]; ok {
		return u, nil
	}
	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) ProjectByID(_ context.Context, id string) (*model.Project, error) {
	if p, ok := d.projects[id]; ok {
		return p, nil
	}
	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) OrganisationByID(_ context.Context, id string) (*model.Organisation, error) {
	if o, ok := d.orgs[id]; ok {
		return o, nil
	}
	return nil, directory.ErrNotFound
}

func newTestDelivery(t *testing.T) (*DeliveryService, *registry.Registry) {
	t.Helper()
	reg := registry.NewRegistry(slog.New(slog.DiscardHandler))
	t.Cleanup(reg.Shutdown)

	dir := &fakeDirectory{
		users: map[string]*model.User{
			"jdoe": {Identifier: "u1", Username: "jdoe", Password: "secret"},
		},
	}
	return NewDeliveryService(reg, dir), reg
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, reg := newTestDelivery(t)

	sess := svc.Subscribe(context.Background())
	user, err := svc.Authenticate(context.Background(), sess, basic("jdoe", "secret"))
	require.NoError(t, err)
	assert.Equal(t, "u1", user.Identifier)
	assert.Len(t, reg.SessionsFor([]string{"u1"}), 1)
}

func TestAuthenticateBadPassword(t *testing.T) {
	svc, reg := newTestDelivery(t)

	sess := svc.Subscribe(context.Background())
	_, err := svc.Authenticate(context.Background(), sess, basic("jdoe", "nope"))
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Empty(t, reg.SessionsFor([]string{"u1"}))
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc, _ := newTestDelivery(t)

	sess := svc.Subscribe(context.Background())
	_, err := svc.Authenticate(context.Background(), sess, basic("ghost", "secret"))
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	svc, _ := newTestDelivery(t)

	sess := svc.Subscribe(context.Background())
	_, err := svc.Authenticate(context.Background(), sess, "Basic not-base64!!!")
	assert.ErrorIs(t, err, ErrMalformedCredentials)
}
