package auth

import "errors"

// Sentinel errors for authentication.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrInvalidHash        = errors.New("auth: invalid password hash")
	ErrNoSecret           = errors.New("auth: jwt secret not configured")
)
