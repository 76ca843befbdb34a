package breakpoints

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/dapconsole/internal/integration/debug"
	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// File is the on-disk form of a breakpoints file:
//
//	[[breakpoint]]
//	path = "cmd/server/main.go"
//	line = 42
//	condition = "req.ID == 7"
//
//	[[breakpoint]]
//	path = "internal/store/store.go"
//	line = 118
//	log_message = "loaded {n} rows"
//	enabled = false
type File struct {
	Breakpoints []Entry `toml:"breakpoint" validate:"dive"`
}

// Entry declares one source breakpoint.
type Entry struct {
	// Path is the source file, relative to the breakpoints file's directory
	// unless absolute.
	Path string `toml:"path" validate:"required"`

	Line         int    `toml:"line" validate:"min=1"`
	Column       int    `toml:"column,omitempty" validate:"min=0"`
	Condition    string `toml:"condition,omitempty"`
	HitCondition string `toml:"hit_condition,omitempty"`
	LogMessage   string `toml:"log_message,omitempty"`

	// Enabled defaults to true.
	Enabled *bool `toml:"enabled,omitempty"`
}

var validate = validator.New()

// Load reads the breakpoints file at path. A missing file declares no
// breakpoints.
func Load(path string) ([]*debug.Breakpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading breakpoints file %s: %w", path, err)
	}

	bps, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bps, nil
}

// Parse decodes a breakpoints file. Relative paths are resolved against baseDir.
func Parse(data []byte, baseDir string) ([]*debug.Breakpoint, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	bps := make([]*debug.Breakpoint, 0, len(f.Breakpoints))
	for _, e := range f.Breakpoints {
		path := e.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		bps = append(bps, &debug.Breakpoint{
			Kind:   debug.BreakpointKindSource,
			Source: &dap.Source{Name: filepath.Base(path), Path: path},
			Origin: debug.BreakpointOrigin{
				Line:         e.Line,
				Column:       e.Column,
				Condition:    e.Condition,
				HitCondition: e.HitCondition,
				LogMessage:   e.LogMessage,
			},
			Enabled: e.Enabled == nil || *e.Enabled,
		})
	}
	return bps, nil
}
