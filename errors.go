package registration

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeRegistrationClosed  = "REGISTRATION_CLOSED"
	TextCodeAccountConflict     = "ACCOUNT_CONFLICT"
	TextCodeActivationFailed    = "ACTIVATION_FAILED"
	TextCodeAccountTypeMismatch = "ACCOUNT_TYPE_MISMATCH"
)

// Activation failure reasons. They are logged, never rendered.
const (
	ActivationInvalidKey       = "invalid_key"
	ActivationExpired          = "expired"
	ActivationBadIdentifier    = "bad_username"
	ActivationAlreadyActivated = "already_activated"
)

// ErrRegistrationClosed is returned while the signup gate is disabled
var ErrRegistrationClosed = errors.New("registration is closed", errors.CategoryAuthz).
	WithTextCode(TextCodeRegistrationClosed).
	WithCode(errors.CodeForbidden)

// ErrAccountConflict is returned when the identifier is already taken
var ErrAccountConflict = errors.New("an account with this identifier already exists", errors.CategoryConflict).
	WithTextCode(TextCodeAccountConflict).
	WithCode(errors.CodeConflict)

// ErrInvalidActivationToken covers forged, malformed and expired tokens alike
var ErrInvalidActivationToken = errors.New("activation failed", errors.CategoryValidation).
	WithTextCode(TextCodeActivationFailed).
	WithCode(errors.CodeBadRequest)

// NewAccountTypeMismatchError is a deployment error: the form targets a
// different account type than the view was configured with
func NewAccountTypeMismatchError(form, view AccountType) error {
	return errors.New(
		fmt.Sprintf("registration form creates %q accounts but the view is configured for %q accounts", form.Name, view.Name),
		errors.CategoryInternal,
	).
		WithTextCode(TextCodeAccountTypeMismatch).
		WithCode(errors.CodeInternal).
		WithMetadata(map[string]any{
			"form_account_type": form.Name,
			"view_account_type": view.Name,
		})
}

// IsAccountTypeMismatch checks for form and view account type mismatches
func IsAccountTypeMismatch(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeAccountTypeMismatch
	}
	return false
}

// ErrNoEmptyString empty password
var ErrNoEmptyString = errors.New("password can't be an empty string", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword wrong password
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ActivationError carries the internal reason an activation was rejected.
// Views render the same page for every reason.
type ActivationError struct {
	Reason string
	Err    error
}

func (e *ActivationError) Error() string {
	if e.Err == nil {
		return "activation rejected: " + e.Reason
	}
	return "activation rejected: " + e.Reason + ": " + e.Err.Error()
}

func (e *ActivationError) Unwrap() error {
	return ErrInvalidActivationToken
}

// IsActivationError reports whether err is a rejected activation
func IsActivationError(err error) bool {
	var actErr *ActivationError
	return errors.As(err, &actErr)
}

// ActivationReason returns the internal rejection reason, if any
func ActivationReason(err error) string {
	var actErr *ActivationError
	if errors.As(err, &actErr) {
		return actErr.Reason
	}
	return ""
}

// IsConflictError checks for identifier conflicts
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryConflict
	}

	return false
}

// isUniqueViolation matches driver messages for unique constraint failures
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
