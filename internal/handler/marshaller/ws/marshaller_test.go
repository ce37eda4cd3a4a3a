package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthentication(t *testing.T) {
	raw := []byte(`{"entity":"user","action":"authentication","data":{"authorization":"Basic amRvZTpzZWNyZXQ="}}`)

	authorization, err := ParseAuthentication(raw)
	require.NoError(t, err)
	assert.Equal(t, "Basic amRvZTpzZWNyZXQ=", authorization)
}

func TestParseAuthenticationRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `not json at all`},
		{"wrong entity", `{"entity":"brick","action":"authentication","data":{"authorization":"Basic x"}}`},
		{"wrong action", `{"entity":"user","action":"ping","data":{"authorization":"Basic x"}}`},
		{"no data", `{"entity":"user","action":"authentication"}`},
		{"no authorization", `{"entity":"user","action":"authentication","data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAuthentication([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestAuthenticationAck(t *testing.T) {
	ack, err := AuthenticationAck("u1")
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(ack, &env))
	assert.Equal(t, "user", env.Entity)
	assert.Equal(t, "authentication", env.Action)
	assert.JSONEq(t, `{"message":"success","identifier":"u1"}`, string(env.Data))
}
