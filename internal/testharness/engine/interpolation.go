package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// variablePattern matches {{ variable }} templates.
var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Interpolate replaces {{ variable }} placeholders in template with values
// from state. Unknown variables are left unchanged.
func Interpolate(template string, state *ExecutionState) string {
	if state == nil {
		return template
	}
	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		m := variablePattern.FindStringSubmatch(match)
		value, exists := state.Outputs[m[1]]
		if !exists {
			return match
		}
		return valueToString(value)
	})
}

// InterpolateParams returns a copy of params with every string value
// interpolated. A string that is exactly one "{{ var }}" keeps the type of
// the referenced value.
func InterpolateParams(params map[string]any, state *ExecutionState) map[string]any {
	if params == nil {
		return nil
	}
	result := make(map[string]any, len(params))
	for key, value := range params {
		result[key] = interpolateValue(value, state)
	}
	return result
}

func interpolateValue(value any, state *ExecutionState) any {
	switch v := value.(type) {
	case string:
		return interpolateString(v, state)
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = interpolateValue(val, state)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = interpolateValue(val, state)
		}
		return result
	default:
		return value
	}
}

func interpolateString(s string, state *ExecutionState) any {
	if state == nil {
		return s
	}
	trimmed := strings.TrimSpace(s)
	if isPureVariableRef(trimmed) {
		m := variablePattern.FindStringSubmatch(trimmed)
		if value, exists := state.Outputs[m[1]]; exists {
			return value
		}
		return s
	}
	return Interpolate(s, state)
}

// isPureVariableRef checks if s is exactly a single variable reference.
func isPureVariableRef(s string) bool {
	matches := variablePattern.FindAllStringIndex(s, -1)
	return len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s)
}

func valueToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
