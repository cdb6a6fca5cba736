package runner

import (
	"fmt"
	"strconv"
)

// paramString returns params[key] as a string, or def when absent.
func paramString(params map[string]any, key, def string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(s), nil
	default:
		return "", fmt.Errorf("param %q: expected string, got %T", key, v)
	}
}

// paramInt returns params[key] as an int, or def when absent. YAML
// decodes integers as int; interpolated values arrive as strings.
func paramInt(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("param %q: %v is not an integer", key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("param %q: expected integer, got %T", key, v)
	}
}
