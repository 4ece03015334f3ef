package keeper

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/checkout/internal/config"
	apperrors "github.com/allisson/checkout/internal/errors"
)

// generateLocalSecretsURI generates a base64key:// URI for testing.
func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

type failingDecrypter struct{}

func (failingDecrypter) Decrypt(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("wrong key")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("local keeper", func(t *testing.T) {
		k, err := Open(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		assert.NoError(t, k.Close())
	})

	t.Run("invalid scheme", func(t *testing.T) {
		k, err := Open(ctx, "invalid://uri")
		assert.Error(t, err)
		assert.Nil(t, k)
		assert.Contains(t, err.Error(), "failed to open secrets keeper")
	})
}

func TestSealAndResolve(t *testing.T) {
	ctx := context.Background()
	k, err := Open(ctx, generateLocalSecretsURI(t))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, k.Close())
	}()

	sealed, err := Seal(ctx, k, "sk_test_123")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "sk_test_123")

	plain, err := Resolve(ctx, k, sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", plain)

	plain, err = Resolve(ctx, k, "not sealed")
	require.NoError(t, err)
	assert.Equal(t, "not sealed", plain)
}

func TestResolve_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Resolve(ctx, failingDecrypter{}, Prefix+"%%%")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = Resolve(ctx, failingDecrypter{}, Prefix+base64.StdEncoding.EncodeToString([]byte("x")))
	assert.ErrorContains(t, err, "failed to decrypt sealed value")
}

func TestResolveConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing sealed leaves config untouched", func(t *testing.T) {
		cfg := &config.Config{PaymentAPIKey: "sk_test_plain"}
		require.NoError(t, ResolveConfig(ctx, cfg))
		assert.Equal(t, "sk_test_plain", cfg.PaymentAPIKey)
	})

	t.Run("sealed value without keeper uri", func(t *testing.T) {
		cfg := &config.Config{PaymentWebhookSecret: Prefix + "abcd"}
		assert.ErrorIs(t, ResolveConfig(ctx, cfg), ErrKeeperNotConfigured)
	})

	t.Run("sealed values are decrypted", func(t *testing.T) {
		uri := generateLocalSecretsURI(t)
		k, err := Open(ctx, uri)
		require.NoError(t, err)
		apiKey, err := Seal(ctx, k, "sk_test_123")
		require.NoError(t, err)
		secret, err := Seal(ctx, k, "whsec_123")
		require.NoError(t, err)
		require.NoError(t, k.Close())

		cfg := &config.Config{
			SecretsKeeperURI:     uri,
			PaymentAPIKey:        apiKey,
			PaymentWebhookSecret: secret,
			DBConnectionString:   "postgres://localhost/checkout",
		}
		require.NoError(t, ResolveConfig(ctx, cfg))

		assert.Equal(t, "sk_test_123", cfg.PaymentAPIKey)
		assert.Equal(t, "whsec_123", cfg.PaymentWebhookSecret)
		assert.Equal(t, "postgres://localhost/checkout", cfg.DBConnectionString)
	})

	t.Run("failing field is named", func(t *testing.T) {
		fields := map[string]*string{"PAYMENT_API_KEY": new(string)}
		*fields["PAYMENT_API_KEY"] = Prefix + base64.StdEncoding.EncodeToString([]byte("x"))
		err := resolveFields(ctx, failingDecrypter{}, fields)
		assert.ErrorContains(t, err, "PAYMENT_API_KEY")
	})
}
