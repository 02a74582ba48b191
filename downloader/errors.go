package downloader

import "errors"

// Common errors returned by downloader adapters.
var (
	// ErrUnreachable is returned when the backend cannot be reached.
	ErrUnreachable = errors.New("downloader unreachable")

	// ErrRejected is returned when the backend refuses an operation as
	// invalid, e.g. a duplicate or malformed torrent.
	ErrRejected = errors.New("downloader rejected operation")

	// ErrNotFound is returned when a torrent handle is unknown to the backend.
	ErrNotFound = errors.New("torrent not found")

	// ErrUnsupported is returned for capabilities the backend lacks.
	ErrUnsupported = errors.New("capability not supported by backend")
)
