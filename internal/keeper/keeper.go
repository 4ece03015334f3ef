// Package keeper resolves sealed configuration values through a gocloud.dev
// secrets keeper. A sealed value has the form "keeper:<base64 ciphertext>".
package keeper

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	"github.com/allisson/checkout/internal/config"
	apperrors "github.com/allisson/checkout/internal/errors"

	// Register the keeper drivers
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// Prefix marks a sealed configuration value.
const Prefix = "keeper:"

// ErrKeeperNotConfigured is returned when sealed values are present but no keeper URI is set.
var ErrKeeperNotConfigured = apperrors.Wrap(apperrors.ErrInvalidInput, "sealed value found but SECRETS_KEEPER_URI is empty")

// Decrypter opens sealed values. *secrets.Keeper implements it.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Encrypter seals values. *secrets.Keeper implements it.
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
}

// Open opens the keeper for uri.
// Supports: base64key://, hashivault://
func Open(ctx context.Context, uri string) (*secrets.Keeper, error) {
	k, err := secrets.OpenKeeper(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open secrets keeper: %w", err)
	}
	return k, nil
}

// IsSealed reports whether value carries the keeper prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Resolve returns value unchanged unless it is sealed, in which case it is
// decoded and decrypted.
func Resolve(ctx context.Context, d Decrypter, value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "sealed value is not valid base64")
	}

	plaintext, err := d.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt sealed value: %w", err)
	}
	return string(plaintext), nil
}

// Seal encrypts plaintext and returns it in sealed form.
func Seal(ctx context.Context, e Encrypter, plaintext string) (string, error) {
	ciphertext, err := e.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt value: %w", err)
	}
	return Prefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// sealableFields lists the configuration values that may be sealed.
func sealableFields(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"DB_CONNECTION_STRING":   &cfg.DBConnectionString,
		"PAYMENT_API_KEY":        &cfg.PaymentAPIKey,
		"PAYMENT_WEBHOOK_SECRET": &cfg.PaymentWebhookSecret,
	}
}

// ResolveConfig decrypts every sealed value of cfg in place. The keeper is
// only opened when at least one value is sealed.
func ResolveConfig(ctx context.Context, cfg *config.Config) error {
	fields := sealableFields(cfg)

	sealed := false
	for _, value := range fields {
		if IsSealed(*value) {
			sealed = true
			break
		}
	}
	if !sealed {
		return nil
	}
	if cfg.SecretsKeeperURI == "" {
		return ErrKeeperNotConfigured
	}

	k, err := Open(ctx, cfg.SecretsKeeperURI)
	if err != nil {
		return err
	}
	defer func() {
		_ = k.Close()
	}()

	return resolveFields(ctx, k, fields)
}

func resolveFields(ctx context.Context, d Decrypter, fields map[string]*string) error {
	for name, value := range fields {
		plain, err := Resolve(ctx, d, *value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*value = plain
	}
	return nil
}
