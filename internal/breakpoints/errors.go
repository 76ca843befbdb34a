package breakpoints

import "errors"

var (
	// ErrInvalidFile is returned for a breakpoints file that cannot be decoded or fails validation.
	ErrInvalidFile = errors.New("invalid breakpoints file")

	// ErrWatcherClosed is returned when using a closed watcher.
	ErrWatcherClosed = errors.New("watcher is closed")
)
