package validation

import (
	"testing"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/checkout/internal/errors"
)

func TestNotBlank(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		shouldErr bool
	}{
		{name: "valid string", value: "hello", shouldErr: false},
		{name: "only whitespace", value: "   ", shouldErr: true},
		{name: "tabs and newlines", value: "\t\n", shouldErr: true},
		{name: "empty string is left to Required", value: "", shouldErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, NotBlank)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		shouldErr bool
	}{
		{name: "upper case", value: "EUR", shouldErr: false},
		{name: "lower case", value: "usd", shouldErr: false},
		{name: "too long", value: "EURO", shouldErr: true},
		{name: "digits", value: "978", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, Currency)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAbsoluteHTTPURL(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		shouldErr bool
	}{
		{name: "https url", value: "https://shop.example.com/success", shouldErr: false},
		{name: "http url with query", value: "http://localhost:3000/cancel?x=1", shouldErr: false},
		{name: "relative path", value: "/success", shouldErr: true},
		{name: "other scheme", value: "ftp://example.com/file", shouldErr: true},
		{name: "no host", value: "https://", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, AbsoluteHTTPURL)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(validation.NewError("code", "quantity must be positive"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "quantity must be positive")
}

func TestNotNilUUID(t *testing.T) {
	assert.NoError(t, validation.Validate(uuid.Must(uuid.NewV7()), NotNilUUID))
	assert.Error(t, validation.Validate(uuid.Nil, NotNilUUID))
	assert.Error(t, validation.Validate("not-a-uuid", NotNilUUID))
}

func TestUUIDString(t *testing.T) {
	assert.NoError(t, validation.Validate(uuid.NewString(), UUIDString))
	assert.Error(t, validation.Validate("cart-1", UUIDString))
}
