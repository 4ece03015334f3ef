// Package validation provides custom validation rules for the application.
package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/checkout/internal/errors"
)

var (
	// currencyRegex matches ISO-4217 alphabetic codes.
	currencyRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Currency validates a three letter ISO-4217 currency code.
var Currency = validation.NewStringRuleWithError(
	func(s string) bool {
		return currencyRegex.MatchString(s)
	},
	validation.NewError("validation_currency", "must be a three letter currency code"),
)

// AbsoluteHTTPURL validates that a string is an absolute http or https URL.
// Redirect targets handed to the payment provider must be absolute.
var AbsoluteHTTPURL = validation.NewStringRuleWithError(
	func(s string) bool {
		u, err := url.Parse(s)
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	},
	validation.NewError("validation_absolute_url", "must be an absolute http(s) URL"),
)

// NotNilUUID validates that a uuid.UUID is set.
var NotNilUUID = validation.By(func(value any) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return validation.NewError("validation_uuid_required", "must be a non-nil uuid")
	}
	return nil
})

// UUIDString validates that a string parses as a UUID.
var UUIDString = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid uuid"),
)
