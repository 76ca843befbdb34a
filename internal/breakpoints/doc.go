// Package breakpoints keeps a debug session's source breakpoints in step
// with a TOML breakpoints file.
//
// Load and Parse read the file into declared breakpoints. A Reloader
// replaces the session's declared set in the store and synchronizes it
// with the adapter. A Watcher calls back when the file changes on disk.
package breakpoints
