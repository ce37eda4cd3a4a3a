package service

import (
	"encoding/base64"
	"errors"
	"strings"
)

var (
	// ErrMalformedCredentials reports an Authorization value that is not a
	// well-formed Basic credential pair. Treated as absent credentials.
	ErrMalformedCredentials = errors.New("service: malformed basic credentials")

	// ErrBadCredentials reports a well-formed pair that failed verification.
	ErrBadCredentials = errors.New("service: invalid credentials")
)

const basicPrefix = "Basic "

// ParseBasicAuthorization decodes an "Authorization: Basic <base64>" value
// into its username and password.
func ParseBasicAuthorization(value string) (username, password string, err error) {
	if !strings.HasPrefix(value, basicPrefix) {
		return "", "", ErrMalformedCredentials
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, basicPrefix))
	if err != nil {
		return "", "", ErrMalformedCredentials
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok || username == "" {
		return "", "", ErrMalformedCredentials
	}
	return username, password, nil
}
