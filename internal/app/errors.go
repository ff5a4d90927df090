package service

import "errors"

// Sentinel kinds for connection manager errors.
var (
	ErrInvalidHandle = errors.New("invalid tracker handle")
)
