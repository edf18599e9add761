package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// referencePattern is the inline variable reference syntax shared with the
// flow editor: {{Variable name}}. The grammar is a stable external contract;
// the engine only detects, extracts and substitutes.
var referencePattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Parse substitutes every variable reference in text with the referenced
// variable's current value. References are matched by name first, then by
// id. Unresolved references substitute to the empty string. Strings without
// references are returned unchanged.
func Parse(variables Variables, text string) string {
	if text == "" || !strings.Contains(text, "{{") {
		return text
	}
	return referencePattern.ReplaceAllStringFunc(text, func(match string) string {
		ref := strings.TrimSpace(match[2 : len(match)-2])
		v := variables.FindByName(ref)
		if v == nil {
			v = variables.FindByID(ref)
		}
		if v == nil || v.Value == nil {
			return ""
		}
		return Stringify(v.Value)
	})
}

// DeepParse applies Parse to every string leaf of an arbitrarily nested
// map/slice structure, preserving structure and non-string leaves exactly.
// It never mutates the variable table and never mutates its input.
func DeepParse(variables Variables, value any) any {
	switch v := value.(type) {
	case string:
		return Parse(variables, v)
	case map[string]any:
		parsed := make(map[string]any, len(v))
		for key, val := range v {
			parsed[key] = DeepParse(variables, val)
		}
		return parsed
	case []any:
		parsed := make([]any, len(v))
		for i, val := range v {
			parsed[i] = DeepParse(variables, val)
		}
		return parsed
	default:
		return value
	}
}

// Stringify renders a variable value for substitution into text. Lists are
// joined with ", "; nil list elements render as empty segments.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(v, ", ")
	case float64:
		// JSON numbers decode as float64; keep integers free of a trailing ".0".
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
