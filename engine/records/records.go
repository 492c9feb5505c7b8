// Package records provides the result-record type returned by knowledge store
// queries plus safe accessors for its dynamically typed fields. JSON numbers
// arrive as float64 while in-process values are usually int, so every numeric
// accessor handles both.
package records

import (
	"encoding/json"
	"strings"

	"github.com/graphrag-collective/pipeline-engine/engine/faults"
)

// Record is a single row returned by a graph query. Values may be nil when the
// query matched a node but an optional property was absent.
type Record map[string]any

// String returns the string value for key, or "" when absent or not a string.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the int value for key, handling both int and float64 storage.
func (r Record) Int(key string) (int, bool) {
	return AnyToInt(r[key])
}

// Float returns the float64 value for key.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Bool returns the bool value for key, or false when absent or not a bool.
func (r Record) Bool(key string) bool {
	v, _ := r[key].(bool)
	return v
}

// HasNullField reports whether any field of the record holds a nil value.
// A record with nulls represents a partial match from the store.
func (r Record) HasNullField() bool {
	for _, v := range r {
		if v == nil {
			return true
		}
	}
	return false
}

// Clone returns a shallow-value deep-structure copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// CloneSlice deep-copies a slice of records.
func CloneSlice(rs []Record) []Record {
	if rs == nil {
		return nil
	}
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// CountWithNulls returns how many records contain at least one null field.
func CountWithNulls(rs []Record) int {
	n := 0
	for _, r := range rs {
		if r.HasNullField() {
			n++
		}
	}
	return n
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// AnyToInt converts int-like dynamic values to int.
func AnyToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// ExtractJSON locates and parses the first JSON object embedded in model
// output. Models often wrap the object in prose or code fences, so we scan for
// a balanced brace span instead of unmarshalling the whole string.
func ExtractJSON(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, faults.Parsef("no JSON object in output")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					var out map[string]any
					if err := json.Unmarshal([]byte(text[start:i+1]), &out); err != nil {
						return nil, faults.Wrap(faults.KindParse, err, "invalid JSON object in output")
					}
					return out, nil
				}
			}
		}
	}
	return nil, faults.Parsef("unbalanced JSON object in output")
}
