package http

import "errors"

var ErrNoDeviceInfo = errors.New("no device info")
var ErrNoSessionInfo = errors.New("no session info")
