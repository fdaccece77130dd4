package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

func TestSessionsHandler_SignupLoginLogout(t *testing.T) {
	ts := setupAPITest(t)

	token, userID := ts.signup(t, "alice@example.com")

	t.Run("me returns the identity", func(t *testing.T) {
		w := ts.jsonRequest(http.MethodGet, "/api/v1/sessions/me", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		identity := decode[simpleblog.Identity](t, w)
		assert.Equal(t, userID, identity.ID)
		assert.Equal(t, "alice@example.com", identity.Email)
		assert.Equal(t, "Test User", identity.Name)
	})

	t.Run("login with the same credentials", func(t *testing.T) {
		w := ts.jsonRequest(http.MethodPost, "/api/v1/sessions/login", "", simpleblog.Credentials{
			Email:    "alice@example.com",
			Password: "correct horse",
		})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[SessionResponse](t, w)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, userID, resp.Session.UserID)
	})

	t.Run("login with a wrong password", func(t *testing.T) {
		w := ts.jsonRequest(http.MethodPost, "/api/v1/sessions/login", "", simpleblog.Credentials{
			Email:    "alice@example.com",
			Password: "wrong password",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logout ends every session", func(t *testing.T) {
		w := ts.jsonRequest(http.MethodDelete, "/api/v1/sessions", token, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = ts.jsonRequest(http.MethodGet, "/api/v1/sessions/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "the token outlives the session but no longer authenticates")
	})
}

func TestSessionsHandler_SignupErrors(t *testing.T) {
	ts := setupAPITest(t)
	ts.signup(t, "bob@example.com")

	tests := []struct {
		name   string
		input  simpleblog.SignupInput
		status int
	}{
		{"duplicate email", simpleblog.SignupInput{Email: "bob@example.com", Password: "another password"}, http.StatusConflict},
		{"invalid email", simpleblog.SignupInput{Email: "not-an-email", Password: "long enough"}, http.StatusUnprocessableEntity},
		{"short password", simpleblog.SignupInput{Email: "carol@example.com", Password: "short"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.jsonRequest(http.MethodPost, "/api/v1/sessions/signup", "", tt.input)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/signup", nil)
		w := ts.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionsHandler_RequiresToken(t *testing.T) {
	ts := setupAPITest(t)

	t.Run("missing token", func(t *testing.T) {
		w := ts.jsonRequest(http.MethodGet, "/api/v1/sessions/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("forged token", func(t *testing.T) {
		other, err := NewAuth("another-secret", ts.blog.Sessions)
		require.NoError(t, err)
		forged, err := other.IssueToken(&simpleblog.Session{ID: "sid", UserID: "u1"})
		require.NoError(t, err)

		w := ts.jsonRequest(http.MethodGet, "/api/v1/sessions/me", forged, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestNewAuth_Validation(t *testing.T) {
	_, err := NewAuth("", simpleblog.NewSessionGateway(nil, nil))
	assert.Error(t, err)

	_, err = NewAuth("secret", nil)
	assert.Error(t, err)
}
