package debug

import (
	"path/filepath"
	"strconv"
	"strings"

	"go.lsp.dev/uri"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// SourceKey returns the normalized identity of a source. Sources on disk
// are keyed by their file URI so that differently spelled paths to the same
// file compare equal; adapter-provided sources are keyed by reference.
// It returns "" for a source without any identity.
func SourceKey(src *dap.Source) string {
	if src == nil {
		return ""
	}

	if src.Path != "" {
		return string(uri.File(normalizePath(src.Path)))
	}
	if src.SourceReference > 0 {
		return "ref:" + strconv.Itoa(src.SourceReference)
	}
	if src.Name != "" {
		return "name:" + src.Name
	}
	return ""
}

// SameSource reports whether a and b identify the same source.
func SameSource(a, b *dap.Source) bool {
	ka := SourceKey(a)
	return ka != "" && ka == SourceKey(b)
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "file://") {
		if u, err := uri.Parse(path); err == nil {
			path = u.Filename()
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}
