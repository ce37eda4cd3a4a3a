// Package ws defines the JSON envelope spoken on the legacy websocket push
// channel: {"entity": ..., "action": ..., "data": {...}}.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotAuthentication = errors.New("ws envelope: not an authentication handshake")

type Envelope struct {
	Entity string          `json:"entity"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type authData struct {
	Authorization string `json:"authorization"`
}

// ParseAuthentication extracts the Basic authorization value from a
// handshake envelope. Anything that is not a user/authentication envelope
// with an authorization field is rejected.
func ParseAuthentication(raw []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("ws envelope: %w", err)
	}
	if env.Entity != "user" || env.Action != "authentication" || len(env.Data) == 0 {
		return "", ErrNotAuthentication
	}
	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("ws envelope: data: %w", err)
	}
	if data.Authorization == "" {
		return "", ErrNotAuthentication
	}
	return data.Authorization, nil
}

// AuthenticationAck builds the success reply carrying the resolved user id.
func AuthenticationAck(userID string) ([]byte, error) {
	data, err := json.Marshal(map[string]string{
		"message":    "success",
		"identifier": userID,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Entity: "user",
		Action: "authentication",
		Data:   data,
	})
}
