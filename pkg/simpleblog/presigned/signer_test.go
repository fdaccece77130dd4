package presigned_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
)

func TestSigner(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	signer := presigned.New(
		presigned.WithSecretKey("test-secret"),
		presigned.WithDefaultExpiration(10*time.Minute),
		presigned.WithClock(clock),
	)

	t.Run("RoundTrip", func(t *testing.T) {
		signed, err := signer.SignURL("GET", "/storage/buckets/b/files/f/preview?width=1200&project=p", 0)
		require.NoError(t, err)
		assert.Contains(t, signed, "signature=")
		assert.Contains(t, signed, "expires=")

		req := httptest.NewRequest("GET", signed, nil)
		assert.NoError(t, signer.ValidateRequest(req))
	})

	t.Run("EscapedPath", func(t *testing.T) {
		signed, err := signer.SignURL("GET", "/storage/buckets/b/files/a%2Fb%20c/view", 0)
		require.NoError(t, err)
		assert.Contains(t, signed, "/files/a%2Fb%20c/view?")

		req := httptest.NewRequest("GET", signed, nil)
		assert.NoError(t, signer.ValidateRequest(req))

		req = httptest.NewRequest("GET", strings.Replace(signed, "a%2Fb%20c", "a/b%20c", 1), nil)
		assert.ErrorIs(t, signer.ValidateRequest(req), presigned.ErrInvalidSignature)
	})

	t.Run("QueryOrderDoesNotMatter", func(t *testing.T) {
		signed, err := signer.SignURL("GET", "/files/f/view?b=2&a=1", 0)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", signed, nil)
		q := req.URL.Query()
		req.URL.RawQuery = "signature=" + q.Get("signature") + "&a=1&expires=" + q.Get("expires") + "&b=2"
		assert.NoError(t, signer.ValidateRequest(req))
	})

	t.Run("TamperedQuery", func(t *testing.T) {
		signed, err := signer.SignURL("GET", "/files/f/preview?width=100", 0)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", signed, nil)
		q := req.URL.Query()
		q.Set("width", "5000")
		req.URL.RawQuery = q.Encode()
		assert.ErrorIs(t, signer.ValidateRequest(req), presigned.ErrInvalidSignature)
	})

	t.Run("WrongMethod", func(t *testing.T) {
		signed, err := signer.SignURL("GET", "/files/f/view", 0)
		require.NoError(t, err)

		req := httptest.NewRequest("DELETE", signed, nil)
		assert.ErrorIs(t, signer.ValidateRequest(req), presigned.ErrInvalidSignature)
	})

	t.Run("Expired", func(t *testing.T) {
		signed, err := signer.SignURL("GET", "/files/f/view", time.Minute)
		require.NoError(t, err)

		later := presigned.New(
			presigned.WithSecretKey("test-secret"),
			presigned.WithClock(func() time.Time { return now.Add(2 * time.Minute) }),
		)
		req := httptest.NewRequest("GET", signed, nil)
		err = later.ValidateRequest(req)
		assert.ErrorIs(t, err, presigned.ErrExpired)
		assert.True(t, presigned.IsAuthError(err))
	})

	t.Run("MissingParams", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/files/f/view", nil)
		assert.ErrorIs(t, signer.ValidateRequest(req), presigned.ErrMissingSignature)

		req = httptest.NewRequest("GET", "/files/f/view?signature=abc", nil)
		assert.ErrorIs(t, signer.ValidateRequest(req), presigned.ErrMissingExpiration)

		req = httptest.NewRequest("GET", "/files/f/view?signature=abc&expires=soon", nil)
		assert.ErrorIs(t, signer.ValidateRequest(req), presigned.ErrInvalidExpiration)
	})

	t.Run("NoSecret", func(t *testing.T) {
		empty := presigned.New()
		assert.False(t, empty.IsEnabled())
		_, err := empty.SignURL("GET", "/files/f/view", 0)
		assert.ErrorIs(t, err, presigned.ErrNoSecretKey)
		assert.False(t, presigned.IsAuthError(err))
	})
}
