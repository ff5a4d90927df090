package sample

import "errors"

// Sentinel kinds for sample errors.
var (
	ErrUnknownKind = errors.New("unknown stream kind")
)
