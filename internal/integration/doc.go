// Package integration connects dapconsole to external debug adapters.
//
// The debug subpackage holds the Debug Adapter Protocol client and the
// breakpoint, variable and console logic built on it. This package provides
// the small helpers those integrations share:
//
//   - Debouncer coalesces bursts of file events into one reload.
//   - SafeGo runs background work without letting a panic kill the process.
//
// # Usage
//
//	reload := integration.NewDebouncer(200*time.Millisecond, loadBreakpoints)
//	defer reload.Stop()
//
//	integration.SafeGo(refreshStack, logPanic)
package integration
