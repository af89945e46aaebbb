// Package common defines shared constants and sentinel errors used across
// the service and transport layers of taskcamp. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUser      = errors.New("user with email or username already exists")

	// Access and refresh token errors.
	ErrTokenMissing      = errors.New("token missing")
	ErrTokenInvalid      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrRefreshTokenStale = errors.New("refresh token is expired or used")

	// Single-use token errors. Wrong and expired tokens share one value.
	ErrTokenInvalidOrExpired = errors.New("token is invalid or expired")
	ErrAlreadyVerified       = errors.New("email is already verified")

	// Authorization errors.
	ErrNotAMember             = errors.New("not a member of the project")
	ErrInsufficientPermission = errors.New("insufficient permission")

	// Request shape errors.
	ErrValidation = errors.New("validation error")

	// Internal, retryable.
	ErrInternal = errors.New("internal error")
)

// IsAuthentication reports whether err belongs to the authentication family
// (401 at the HTTP boundary).
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrTokenMissing) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrRefreshTokenStale) ||
		errors.Is(err, ErrInvalidCredentials)
}

// IsAuthorization reports whether err belongs to the authorization family
// (403 at the HTTP boundary).
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotAMember) || errors.Is(err, ErrInsufficientPermission)
}
