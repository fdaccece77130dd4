package simpleblog

import (
	"context"
	"errors"
	"log/slog"
)

// SessionGateway is a thin pass-through to the identity service.
type SessionGateway struct {
	identity IdentityService
	logger   *slog.Logger
}

// NewSessionGateway creates a gateway over identity.
func NewSessionGateway(identity IdentityService, logger *slog.Logger) *SessionGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionGateway{identity: identity, logger: logger}
}

// CreateAccountAndSession registers an account and immediately signs it in,
// so signup and login both yield a Session.
func (g *SessionGateway) CreateAccountAndSession(ctx context.Context, in SignupInput) (*Session, error) {
	if _, err := g.identity.CreateAccount(ctx, "", in.Email, in.Password, in.Name); err != nil {
		return nil, err
	}
	return g.identity.CreateEmailPasswordSession(ctx, in.Email, in.Password)
}

// Login starts an email and password session.
func (g *SessionGateway) Login(ctx context.Context, creds Credentials) (*Session, error) {
	return g.identity.CreateEmailPasswordSession(ctx, creds.Email, creds.Password)
}

// CurrentIdentity returns the identity behind sessionID, or nil when there
// is no valid session or the identity service fails.
func (g *SessionGateway) CurrentIdentity(ctx context.Context, sessionID string) *Identity {
	if sessionID == "" {
		return nil
	}
	identity, err := g.identity.GetAccount(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			g.logger.Warn("Failed to get current identity", "error", err)
		}
		return nil
	}
	return identity
}

// Logout ends every session of the caller. Errors are logged and dropped.
func (g *SessionGateway) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := g.identity.DeleteSessions(ctx, sessionID); err != nil {
		g.logger.Warn("Failed to delete sessions", "error", err)
	}
}
