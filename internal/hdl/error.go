package hdl

import "errors"

var ErrInternal = errors.New("internal error")
var ErrDecodeRequest = errors.New("decode request")
var ErrFileTooLarge = errors.New("file too large")

// ErrNotAuthorized is the uniform external message for every
// authentication failure. Classification stays in the logs.
var ErrNotAuthorized = errors.New("not authorized")

var ErrFailedToGetUUID = errors.New("failed to get uid from context")
var ErrFailedToParseUUID = errors.New("failed to parse uid")
