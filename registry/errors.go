package registry

import "errors"

// Common errors returned by the registry.
var (
	// ErrDuplicateHash is returned when admitting a hash that already exists.
	ErrDuplicateHash = errors.New("torrent hash already registered")

	// ErrNotFound is returned when a hash is unknown to the registry.
	ErrNotFound = errors.New("torrent not registered")
)
