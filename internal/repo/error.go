package repo

import "errors"

// ErrNotFound is returned when a resource is not found.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a uniqueness constraint is violated.
var ErrAlreadyExists = errors.New("already exists")

// ErrTokenReused is returned when a rotation finds the record already
// rotated or revoked. Exactly one of two concurrent rotations of the
// same token observes this.
var ErrTokenReused = errors.New("token already rotated or revoked")

// ErrTokenExpired is returned when a rotation finds the record past its
// absolute expiry.
var ErrTokenExpired = errors.New("token expired")
