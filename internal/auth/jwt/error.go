package jwt

import "errors"

var ErrWhileCreatingToken = errors.New("error while creating token")
var ErrUnexpectedSignMethod = errors.New("unexpected signing method")

// ErrTokenExpired is time-based and recoverable via rotation.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenMalformed covers bad shape and bad signature; the store is
// never consulted for a malformed token.
var ErrTokenMalformed = errors.New("token malformed")
