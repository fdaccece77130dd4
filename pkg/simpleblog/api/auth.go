package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// sessionClaim carries the identity service session ID inside the bearer token.
const sessionClaim = "sid"

type contextKey string

const (
	identityKey  contextKey = "identity"
	sessionIDKey contextKey = "session_id"
)

// Auth issues bearer tokens for sessions and resolves them back to an
// identity on each request. The token only wraps the session ID; the
// identity service stays the source of truth, so a logout takes effect
// before the token expires.
type Auth struct {
	jwt      *jwtauth.JWTAuth
	sessions *simpleblog.SessionGateway
}

// NewAuth creates an Auth signing HS256 tokens with secret.
func NewAuth(secret string, sessions *simpleblog.SessionGateway) (*Auth, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if sessions == nil {
		return nil, errors.New("session gateway is required")
	}
	return &Auth{
		jwt:      jwtauth.New("HS256", []byte(secret), nil),
		sessions: sessions,
	}, nil
}

// IssueToken returns a bearer token for session that expires with it.
func (a *Auth) IssueToken(session *simpleblog.Session) (string, error) {
	claims := map[string]interface{}{
		sessionClaim: session.ID,
		"sub":        session.UserID,
	}
	jwtauth.SetIssuedNow(claims)
	if !session.ExpiresAt.IsZero() {
		jwtauth.SetExpiry(claims, session.ExpiresAt)
	} else {
		jwtauth.SetExpiryIn(claims, 24*time.Hour)
	}
	_, token, err := a.jwt.Encode(claims)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Verifier extracts and verifies the bearer token from the Authorization
// header or the jwt cookie.
func (a *Auth) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(a.jwt)
}

// Authenticator rejects requests without a verified token or whose session
// no longer resolves to an identity. It must run after Verifier.
func (a *Auth) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			slog.Debug("Rejected bearer token", "error", err)
			renderError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sessionID, _ := claims[sessionClaim].(string)
		identity := a.sessions.CurrentIdentity(r.Context(), sessionID)
		if identity == nil {
			renderError(w, r, http.StatusUnauthorized, "Session expired")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Required chains Verifier and Authenticator.
func (a *Auth) Required(next http.Handler) http.Handler {
	return a.Verifier()(a.Authenticator(next))
}

// IdentityFromContext returns the authenticated identity, nil outside an
// authenticated route.
func IdentityFromContext(ctx context.Context) *simpleblog.Identity {
	identity, _ := ctx.Value(identityKey).(*simpleblog.Identity)
	return identity
}

// SessionIDFromContext returns the session ID of the authenticated request.
func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}
