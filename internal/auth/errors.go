package auth

import "errors"

// Authentication outcomes. UserNotFound and InvalidCredentials are kept
// distinct internally; the HTTP layer reports both with one generic message
// so responses cannot be used to enumerate accounts.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already registered")
	ErrExternalIDExists   = errors.New("provider identity already registered")
	ErrMissingAttribute   = errors.New("provider profile is missing a required attribute")
	ErrUnknownProvider    = errors.New("unknown identity provider")
	ErrEmailNotVerified   = errors.New("provider email not verified")
)

// Session and infrastructure failures.
var (
	ErrSessionInvalid   = errors.New("session invalid")
	ErrStoreUnavailable = errors.New("credential store unavailable")
	ErrHashingFailure   = errors.New("password hashing failed")
	ErrPasswordTooLong  = errors.New("password exceeds 72 bytes")
)
