package apikey

import "errors"

var (
	// ErrNotFound is returned when a key does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("api key not found")

	// ErrRevoked is returned when changing a key that was already revoked.
	ErrRevoked = errors.New("api key is revoked")
)
