package config

import (
	"strconv"
	"strings"
)

// envOverrides converts prefixed environment variables into a settings map.
// DAPCONSOLE_ADAPTER_DIAL_TIMEOUT=2s becomes adapter.dial_timeout = "2s".
// Variables without a section and key are ignored.
func envOverrides(prefix string, environ []string) map[string]any {
	settings := make(map[string]any)

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}

		section, key, ok := envToPath(strings.TrimPrefix(name, prefix))
		if !ok {
			continue
		}
		setByPath(settings, []string{section, key}, parseValue(key, value))
	}

	return settings
}

// envToPath converts ADAPTER_DIAL_TIMEOUT to ("adapter", "dial_timeout").
func envToPath(name string) (section, key string, ok bool) {
	section, key, ok = strings.Cut(strings.ToLower(name), "_")
	if !ok || section == "" || key == "" {
		return "", "", false
	}
	return section, key, true
}

// parseValue converts an environment value to the type the setting expects.
// Lists are comma separated.
func parseValue(key, s string) any {
	if strings.HasSuffix(key, "_paths") {
		var out []any
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}

// setByPath sets a value in a nested map, creating intermediate maps.
func setByPath(data map[string]any, path []string, value any) {
	current := data
	for _, part := range path[:len(path)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// DeepMerge recursively merges src into dst. Values in src override values
// in dst; maps are merged, everything else is replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}

	for key, srcVal := range src {
		dstVal, exists := dst[key]
		if !exists {
			dst[key] = srcVal
			continue
		}

		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dstVal.(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
		} else {
			dst[key] = srcVal
		}
	}

	return dst
}
