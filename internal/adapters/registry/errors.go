package registry

import "errors"

// Sentinel kinds for subscription errors.
var (
	ErrAlreadySubscribed = errors.New("stream already subscribed")
	ErrNotSubscribed     = errors.New("stream not subscribed")
)
