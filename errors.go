package registry

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable machine codes of the domain error taxonomy. The HTTP layer maps
// them to status codes; a localization collaborator downstream maps them to
// user facing copy. Handlers never emit localized text.
const (
	TextCodeIdenticalUsernameEmail     = "IDENTICAL_USERNAME_EMAIL"
	TextCodeNoUsernameChange           = "NO_USERNAME_CHANGE"
	TextCodeUniqueConstraint           = "UNIQUE_CONSTRAINT"
	TextCodeAuthenticationError        = "AUTHENTICATION_ERROR"
	TextCodeAuthenticationImportedUser = "AUTHENTICATION_IMPORTED_USER"
	TextCodeInvalidOrExpiredToken      = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeInvalidEmail               = "INVALID_EMAIL"
	TextCodeResetHookMissing           = "RESET_PASSWORD_HOOK_MISSING"
	TextCodeResetHookServerError       = "RESET_PASSWORD_SERVER_ERROR"
)

// ErrNoEmptyPassword is returned when hashing an absent password
var ErrNoEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the internal sentinel for a failed
// password comparison. It never reaches callers directly; the credential
// service folds it into the generic authentication error.
var ErrMismatchedHashAndPassword = goerrors.New("mismatched password and hash", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToFindSession is the error when the request has no cookie
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeForbidden)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeForbidden)

// NewIdenticalUsernameEmailError rejects registrations where the username
// equals the email verbatim.
func NewIdenticalUsernameEmailError() *goerrors.Error {
	return goerrors.New("username and email must be different", goerrors.CategoryValidation).
		WithTextCode(TextCodeIdenticalUsernameEmail).
		WithCode(goerrors.CodeBadRequest)
}

// NewNoUsernameChangeError rejects a username patch on accounts whose
// username is derived from the email.
func NewNoUsernameChangeError() *goerrors.Error {
	return goerrors.New("username is derived from email and cannot change directly", goerrors.CategoryValidation).
		WithTextCode(TextCodeNoUsernameChange).
		WithCode(goerrors.CodeBadRequest)
}

// NewUniqueConstraintError carries the violated field and offending value.
func NewUniqueConstraintError(field, value string) *goerrors.Error {
	return goerrors.New("value already in use", goerrors.CategoryConflict).
		WithTextCode(TextCodeUniqueConstraint).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"field": field,
			"value": value,
		})
}

// NewAuthenticationError is returned both when the identifier is unknown and
// when the password is wrong, so callers cannot enumerate accounts.
func NewAuthenticationError() *goerrors.Error {
	return goerrors.New("authentication failed", goerrors.CategoryAuth).
		WithTextCode(TextCodeAuthenticationError).
		WithCode(goerrors.CodeUnauthorized)
}

// NewImportedUserError rejects login attempts against placeholder accounts.
func NewImportedUserError() *goerrors.Error {
	return goerrors.New("imported account cannot authenticate", goerrors.CategoryAuth).
		WithTextCode(TextCodeAuthenticationImportedUser).
		WithCode(goerrors.CodeUnauthorized)
}

// NewInvalidOrExpiredTokenError covers unknown, tampered, consumed, and
// expired reset tokens alike.
func NewInvalidOrExpiredTokenError() *goerrors.Error {
	return goerrors.New("invalid or expired password reset token", goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidOrExpiredToken).
		WithCode(goerrors.CodeBadRequest)
}

// NewInvalidEmailError rejects reset requests for unknown email addresses.
func NewInvalidEmailError() *goerrors.Error {
	return goerrors.New("unknown email address", goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidEmail).
		WithCode(goerrors.CodeBadRequest)
}

// NewResetHookMissingError signals a missing reset webhook URL. Without the
// hook the token cannot be delivered, so this is a hard server failure
// rather than a silent no-op.
func NewResetHookMissingError() *goerrors.Error {
	return goerrors.New("reset password hook is not configured", goerrors.CategoryOperation).
		WithTextCode(TextCodeResetHookMissing).
		WithCode(goerrors.CodeInternal)
}

// NewResetHookServerError signals a non success response from the reset
// webhook endpoint.
func NewResetHookServerError(status int) *goerrors.Error {
	return goerrors.New("reset password hook request failed", goerrors.CategoryOperation).
		WithTextCode(TextCodeResetHookServerError).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{
			"status": status,
		})
}

// HasTextCode checks whether err carries the given taxonomy code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// StatusFromError resolves the HTTP status for a domain error. Unknown
// errors collapse to an opaque 500-equivalent signal.
func StatusFromError(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		return richErr.Code
	}
	return goerrors.CodeInternal
}

// Unique index names created by the migrations, used to translate store
// level constraint violations back into the domain taxonomy.
const (
	constraintUsername   = "users_username"
	constraintLowerEmail = "users_lower_email"
	constraintResetToken = "users_reset_password_token"
)

// TranslateConstraintError maps a storage constraint violation onto the
// domain taxonomy, attributing the violated column from the driver's error
// text. Errors that are not uniqueness violations pass through untouched so
// nothing is silently swallowed.
func TranslateConstraintError(err error, record *User) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value violates unique constraint") {
		return err
	}

	value := ""
	field := ""
	switch {
	case strings.Contains(msg, constraintLowerEmail), strings.Contains(msg, "users.email"):
		field = "email"
		if record != nil {
			value = record.Email
		}
	case strings.Contains(msg, constraintResetToken):
		field = "resetToken"
	case strings.Contains(msg, constraintUsername), strings.Contains(msg, "users.username"):
		field = "username"
		if record != nil {
			value = record.Username
		}
	default:
		return goerrors.Wrap(err, goerrors.CategoryConflict, "unique constraint violated").
			WithTextCode(TextCodeUniqueConstraint).
			WithCode(goerrors.CodeBadRequest)
	}

	return NewUniqueConstraintError(field, value)
}

// IsTokenExpiredError will check for expired JWT tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed JWT errors
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
