// Package auth defines the pluggable authentication strategies guarding
// the publish surfaces. The in-band "pub auth" command, HTTP basic auth,
// and the external bearer-token oracle are all front-ends to the same
// three-way outcome: accepted, rejected, or could-not-check.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidCredentials is the rejection outcome: the credentials were
// checked and found wrong. Any other non-nil error from Authenticate
// means the credentials could not be checked at all, which callers must
// surface as a distinct failure class.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials carries whatever a client presented. Name is the
// publisher name when the surface supplies one (basic auth username);
// Secret is the password or bearer token.
type Credentials struct {
	Name   string
	Secret string
}

// Authenticator validates credentials. A nil return accepts them.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) error
}

// SecretAuthenticator compares the presented secret against the
// configured shared secret in constant time.
type SecretAuthenticator struct {
	secret []byte
}

// NewSecretAuthenticator creates an authenticator for the given shared secret.
func NewSecretAuthenticator(secret string) *SecretAuthenticator {
	return &SecretAuthenticator{secret: []byte(secret)}
}

// Authenticate implements the Authenticator interface.
func (a *SecretAuthenticator) Authenticate(_ context.Context, creds Credentials) error {
	if subtle.ConstantTimeCompare(a.secret, []byte(creds.Secret)) == 1 {
		return nil
	}
	return ErrInvalidCredentials
}

// RemoteAuthenticator forwards a bearer token to an external validation
// URL and treats the response purely as a boolean oracle: 2xx accepts,
// 401/403 rejects, anything else is a validation-service failure. The
// response body is never interpreted.
type RemoteAuthenticator struct {
	url    string
	client *http.Client
}

// NewRemoteAuthenticator creates an authenticator that validates tokens
// against the given URL.
func NewRemoteAuthenticator(url string) *RemoteAuthenticator {
	return &RemoteAuthenticator{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Authenticate implements the Authenticator interface.
func (a *RemoteAuthenticator) Authenticate(ctx context.Context, creds Credentials) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, nil)
	if err != nil {
		return fmt.Errorf("building validation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Secret)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("reaching validation service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("validation service returned %s", resp.Status)
	}
}
