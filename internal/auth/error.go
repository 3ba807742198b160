package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	// ErrTokenRevoked indicates the store no longer considers the token valid.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrReuseDetected indicates an already-rotated refresh token was
	// presented again, which implies it may have been exfiltrated.
	ErrReuseDetected = errors.New("token reuse detected")
)
