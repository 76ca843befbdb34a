// Package config loads the dapconsole configuration.
//
// Settings come from three layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← DAPCONSOLE_SECTION_KEY
//	├─────────────────────────────┤
//	│  2. Config File (TOML)      │  ← --config dapconsole.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Default()
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller after Load.
//
// # File Format
//
//	[logging]
//	level = "debug"
//
//	[adapter]
//	address = "127.0.0.1:4711"
//	dial_timeout = "2s"
//
//	[console]
//	chunk_size = 100
//	expand_depth = 2
//
//	[breakpoints]
//	file = ".dapconsole/breakpoints.toml"
//	reload_debounce = "250ms"
//
// Unknown settings are rejected. After merging, every setting is checked
// with struct tag validation and all failures are reported together as
// ValidationErrors.
package config
