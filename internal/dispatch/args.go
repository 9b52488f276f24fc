package dispatch

import (
	"math"
)

// ============================================================================
// ARGUMENT EXTRACTION
// ============================================================================
//
// Arguments arrive as a JSON-decoded map, so numbers are float64 and arrays
// are []interface{}. Every helper returns a validation_error naming the
// argument and the expected type; handlers never see a malformed value.

func stringArg(args map[string]interface{}, key string) (string, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", Errorf(KindValidationError, "%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", Errorf(KindValidationError, "%s must be a string", key)
	}
	return s, nil
}

func optionalString(args map[string]interface{}, key string) (string, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", Errorf(KindValidationError, "%s must be a string", key)
	}
	return s, nil
}

// optionalStringPtr distinguishes "absent" from "present and empty" for
// partial updates.
func optionalStringPtr(args map[string]interface{}, key string) (*string, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, Errorf(KindValidationError, "%s must be a string", key)
	}
	return &s, nil
}

// intArg reads an optional integer, applying def when absent. Fractional
// values are rejected rather than truncated.
func intArg(args map[string]interface{}, key string, def int) (int, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, Errorf(KindValidationError, "%s must be an integer", key)
	}
	return int(f), nil
}

func floatArg(args map[string]interface{}, key string, def float64) (float64, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, Errorf(KindValidationError, "%s must be a number", key)
	}
	return f, nil
}

func boolArg(args map[string]interface{}, key string, def bool) (bool, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, Errorf(KindValidationError, "%s must be a boolean", key)
	}
	return b, nil
}

func stringListArg(args map[string]interface{}, key string) ([]string, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, Errorf(KindValidationError, "%s must be an array of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, Errorf(KindValidationError, "%s must be an array of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func objectArg(args map[string]interface{}, key string) (map[string]interface{}, *ToolError) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, Errorf(KindValidationError, "%s must be an object", key)
	}
	return m, nil
}
