package register

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeValidationFailure flags malformed or missing input
	TextCodeValidationFailure = "VALIDATION_FAILURE"
	// TextCodeDuplicateEmail flags signup against a taken email
	TextCodeDuplicateEmail = "DUPLICATE_EMAIL"
	// TextCodeInvalidOrExpiredCode flags a verification code that matched nothing
	TextCodeInvalidOrExpiredCode = "INVALID_OR_EXPIRED_CODE"
	// TextCodeRateLimited flags code issuance while an active code exists
	TextCodeRateLimited = "RATE_LIMITED"
	// TextCodeIncompleteRegistration flags login before the profile is done
	TextCodeIncompleteRegistration = "INCOMPLETE_REGISTRATION"
	// TextCodeInvalidCredentials flags a failed credential check
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeAccountNotFound flags a lookup miss the caller may learn about
	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	// TextCodePasswordMismatch flags password != confirm_password
	TextCodePasswordMismatch = "PASSWORD_MISMATCH"
	// TextCodeTokenExpired flags an expired bearer token
	TextCodeTokenExpired = "AUTH_TOKEN_EXPIRED"
	// TextCodeTokenMalformed flags a token that failed parsing or signature checks
	TextCodeTokenMalformed = "AUTH_TOKEN_MALFORMED"
	// TextCodeTokenRevoked flags a refresh token on the denylist
	TextCodeTokenRevoked = "AUTH_TOKEN_REVOKED"
	// TextCodeInvalidTransition flags an illegal auth status change
	TextCodeInvalidTransition = "INVALID_AUTH_STATUS_TRANSITION"
)

// ErrDuplicateEmail is returned when the signup email already owns an account.
var ErrDuplicateEmail = goerrors.New("email address is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrInvalidOrExpiredCode is returned when a submitted verification code
// matches no unconfirmed, unexpired code for the account.
var ErrInvalidOrExpiredCode = goerrors.New("verification code is invalid or expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidOrExpiredCode).
	WithCode(goerrors.CodeBadRequest)

// ErrCodeStillActive is returned when a new code is requested while an
// unexpired, unconfirmed code already exists for the account.
var ErrCodeStillActive = goerrors.New("current verification code is still valid, retry later", goerrors.CategoryConflict).
	WithTextCode(TextCodeRateLimited).
	WithCode(goerrors.CodeConflict)

// ErrIncompleteRegistration is returned when an account attempts to log in
// before finishing registration. The credential check never runs.
var ErrIncompleteRegistration = goerrors.New("registration is not complete", goerrors.CategoryAuth).
	WithTextCode(TextCodeIncompleteRegistration).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidCredentials covers both unknown account and wrong password so
// callers cannot enumerate registered identifiers.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotFound is returned by flows that legitimately disclose
// existence, e.g. forgot password.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrPasswordMismatch is returned when password and confirm password differ.
var ErrPasswordMismatch = goerrors.New("password and confirmation do not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = goerrors.New("authentication token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail parsing, signature or
// audience/issuer checks.
var ErrTokenMalformed = goerrors.New("authentication token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked is returned for refresh tokens on the denylist. Revocation
// is permanent for the token's lifetime.
var ErrTokenRevoked = goerrors.New("authentication token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid auth status transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the low level bcrypt comparison failure.
var ErrMismatchedHashAndPassword = goerrors.New("mismatched password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty password input at the hashing boundary.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// invalidPayload wraps request binding and validation failures into the
// stable validation error shape used by the HTTP surface.
func invalidPayload(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request payload").
		WithTextCode(TextCodeValidationFailure).
		WithCode(goerrors.CodeBadRequest)
}

// HasTextCode checks whether err carries the given stable machine code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsRateLimited will check for the active-code guard
func IsRateLimited(err error) bool {
	return HasTextCode(err, TextCodeRateLimited)
}

// IsDuplicateEmail will check for the unique email violation
func IsDuplicateEmail(err error) bool {
	return HasTextCode(err, TextCodeDuplicateEmail)
}

// IsTokenExpiredError will check for expired tokens, including legacy
// string-matched errors coming out of the JWT middleware.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed token errors
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
