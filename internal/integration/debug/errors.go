package debug

import "errors"

var (
	// ErrNoSession is returned when an operation needs a debug session and none is bound.
	ErrNoSession = errors.New("no debug session")

	// ErrSessionNotFound is returned when a session ID is not registered.
	ErrSessionNotFound = errors.New("debug session not found")

	// ErrBreakpointNotFound is returned when a breakpoint ID is not in the store.
	ErrBreakpointNotFound = errors.New("breakpoint not found")

	// ErrNoCallStack is returned when no call stack has been fetched.
	ErrNoCallStack = errors.New("no call stack")

	// ErrFrameOutOfRange is returned when selecting a frame outside the loaded stack.
	ErrFrameOutOfRange = errors.New("frame index out of range")
)
