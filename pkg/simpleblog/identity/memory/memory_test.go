package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/identity/memory"
	"golang.org/x/crypto/bcrypt"
)

func TestService(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := memory.New(
		memory.WithBcryptCost(bcrypt.MinCost),
		memory.WithSessionTTL(time.Hour),
		memory.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, "", "Ada@Example.com", "password123", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, "ada@example.com", acc.Email)

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := svc.CreateAccount(ctx, "", "ada@example.com", "password123", "Other")
		assert.ErrorIs(t, err, simpleblog.ErrAccountExists)
	})

	t.Run("InvalidSignup", func(t *testing.T) {
		_, err := svc.CreateAccount(ctx, "", "bob@example.com", "short", "Bob")
		assert.ErrorIs(t, err, simpleblog.ErrInvalidAccount)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.CreateEmailPasswordSession(ctx, "ada@example.com", "nope-nope")
		assert.ErrorIs(t, err, simpleblog.ErrInvalidCredentials)
		_, err = svc.CreateEmailPasswordSession(ctx, "nobody@example.com", "password123")
		assert.ErrorIs(t, err, simpleblog.ErrInvalidCredentials)
	})

	t.Run("SessionLifecycle", func(t *testing.T) {
		first, err := svc.CreateEmailPasswordSession(ctx, "ADA@example.com", "password123")
		require.NoError(t, err)
		second, err := svc.CreateEmailPasswordSession(ctx, "ada@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, acc.ID, first.UserID)
		assert.Equal(t, now.Add(time.Hour), first.ExpiresAt)

		who, err := svc.GetAccount(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, who.ID)

		require.NoError(t, svc.DeleteSessions(ctx, first.ID))
		_, err = svc.GetAccount(ctx, first.ID)
		assert.ErrorIs(t, err, simpleblog.ErrSessionNotFound)
		_, err = svc.GetAccount(ctx, second.ID)
		assert.ErrorIs(t, err, simpleblog.ErrSessionNotFound, "all sessions of the account end")

		assert.ErrorIs(t, svc.DeleteSessions(ctx, first.ID), simpleblog.ErrSessionNotFound)
	})

	t.Run("Expiry", func(t *testing.T) {
		session, err := svc.CreateEmailPasswordSession(ctx, "ada@example.com", "password123")
		require.NoError(t, err)

		now = now.Add(2 * time.Hour)
		_, err = svc.GetAccount(ctx, session.ID)
		assert.ErrorIs(t, err, simpleblog.ErrSessionNotFound)
	})
}
