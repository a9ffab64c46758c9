package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/courier/internal/auth"
)

func TestSecretAuthenticator(t *testing.T) {
	a := auth.NewSecretAuthenticator("hunter2")
	ctx := context.Background()

	t.Run("accepts the configured secret", func(t *testing.T) {
		require.NoError(t, a.Authenticate(ctx, auth.Credentials{Secret: "hunter2"}))
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		err := a.Authenticate(ctx, auth.Credentials{Secret: "letmein"})
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("rejects an empty secret", func(t *testing.T) {
		err := a.Authenticate(ctx, auth.Credentials{})
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestRemoteAuthenticator(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts on 2xx", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		a := auth.NewRemoteAuthenticator(srv.URL)
		require.NoError(t, a.Authenticate(ctx, auth.Credentials{Secret: "tok-123"}))
		assert.Equal(t, "Bearer tok-123", gotAuth)
	})

	t.Run("rejects on 401 and 403", func(t *testing.T) {
		for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(code)
			}))
			a := auth.NewRemoteAuthenticator(srv.URL)
			err := a.Authenticate(ctx, auth.Credentials{Secret: "tok"})
			require.ErrorIs(t, err, auth.ErrInvalidCredentials)
			srv.Close()
		}
	})

	t.Run("surfaces a 5xx as a service failure, not a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		a := auth.NewRemoteAuthenticator(srv.URL)
		err := a.Authenticate(ctx, auth.Credentials{Secret: "tok"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("surfaces a transport error as a service failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // nothing is listening anymore

		a := auth.NewRemoteAuthenticator(srv.URL)
		err := a.Authenticate(ctx, auth.Credentials{Secret: "tok"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}
