package engine

import (
	"fmt"
	"strings"
)

// defaultChecker compares the output named key with expected. The
// expectation "present" only requires the key to exist.
func defaultChecker(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(key)
	if !exists {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Message:  fmt.Sprintf("key %q not found in outputs", key),
		}
	}

	if s, ok := expected.(string); ok && s == "present" {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Actual:   actual,
			Passed:   true,
			Message:  fmt.Sprintf("%s = %v", key, actual),
		}
	}

	passed := valuesEqual(expected, actual)
	result := &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
	}
	if passed {
		result.Message = fmt.Sprintf("%s = %v", key, expected)
	} else {
		result.Message = fmt.Sprintf("expected %v, got %v", expected, actual)
	}
	return result
}

// valuesEqual compares loosely: numbers by value and everything else by
// its printed form, so YAML ints match JSON float64s.
func valuesEqual(expected, actual any) bool {
	if en, ok := ToFloat64(expected); ok {
		if an, ok := ToFloat64(actual); ok {
			return en == an
		}
	}
	return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
}

// ToFloat64 converts numeric types to float64 for comparison.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint8:
		return float64(n), true
	default:
		return 0, false
	}
}

// CheckerContains passes when the "value" output contains expected: a
// substring for strings, an element for lists.
func CheckerContains(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get("value")
	r := &ExpectResult{Key: key, Expected: expected, Actual: actual}
	if !exists {
		r.Message = `output key "value" not found`
		return r
	}

	switch a := actual.(type) {
	case string:
		r.Passed = strings.Contains(a, fmt.Sprintf("%v", expected))
	case []string:
		for _, item := range a {
			if valuesEqual(expected, item) {
				r.Passed = true
				break
			}
		}
	case []any:
		for _, item := range a {
			if valuesEqual(expected, item) {
				r.Passed = true
				break
			}
		}
	default:
		r.Message = fmt.Sprintf("cannot search %T", actual)
		return r
	}

	if r.Passed {
		r.Message = fmt.Sprintf("value contains %v", expected)
	} else {
		r.Message = fmt.Sprintf("%v does not contain %v", actual, expected)
	}
	return r
}

// CheckerValueIn passes when the "value" output equals one of the
// expected list items.
func CheckerValueIn(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get("value")
	r := &ExpectResult{Key: key, Expected: expected, Actual: actual}
	if !exists {
		r.Message = `output key "value" not found`
		return r
	}
	list, ok := expected.([]any)
	if !ok {
		r.Message = fmt.Sprintf("expected a list, got %T", expected)
		return r
	}
	for _, item := range list {
		if valuesEqual(item, actual) {
			r.Passed = true
			r.Message = fmt.Sprintf("%v in %v", actual, list)
			return r
		}
	}
	r.Message = fmt.Sprintf("%v not in %v", actual, list)
	return r
}

// CheckerSaveAs stores the "value" output under the name given as
// expected, for use as {{ name }} in later steps.
func CheckerSaveAs(key string, expected any, state *ExecutionState) *ExpectResult {
	name, ok := expected.(string)
	r := &ExpectResult{Key: key, Expected: expected}
	if !ok || name == "" {
		r.Message = "save_as needs a name"
		return r
	}
	actual, exists := state.Get("value")
	if !exists {
		r.Message = `output key "value" not found`
		return r
	}
	state.Set(name, actual)
	r.Actual = actual
	r.Passed = true
	r.Message = fmt.Sprintf("saved %v as %s", actual, name)
	return r
}

// CheckerErrorContains passes when the "error" output contains expected.
func CheckerErrorContains(key string, expected any, state *ExecutionState) *ExpectResult {
	actual, _ := state.Get("error")
	msg, _ := actual.(string)
	want := fmt.Sprintf("%v", expected)
	r := &ExpectResult{Key: key, Expected: expected, Actual: actual}
	r.Passed = msg != "" && strings.Contains(msg, want)
	if r.Passed {
		r.Message = fmt.Sprintf("error contains %q", want)
	} else {
		r.Message = fmt.Sprintf("error %q does not contain %q", msg, want)
	}
	return r
}
