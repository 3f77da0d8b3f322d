// Package normalize converts heterogeneous upstream record shapes into the
// canonical models. Absent fields are a default-filling condition, never an
// error; only a record missing its id is rejected.
package normalize

import (
	"fmt"
	"strconv"
	"time"
)

// errMissingID marks a record that cannot even be minimally identified.
var errMissingID = fmt.Errorf("record has no id")

// getMap walks a nested path of maps and returns the map at the end,
// or nil when any step is absent or not a map.
func getMap(m map[string]any, path ...string) map[string]any {
	cur := m
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// getString returns the string at path, or fallback when absent.
// Numeric values are stringified, matching how upstream sometimes reports
// rule ids as numbers.
func getString(m map[string]any, fallback string, path ...string) string {
	parent := m
	if len(path) > 1 {
		parent = getMap(m, path[:len(path)-1]...)
		if parent == nil {
			return fallback
		}
	}
	switch v := parent[path[len(path)-1]].(type) {
	case string:
		if v == "" {
			return fallback
		}
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fallback
	}
}

// getInt returns the integer at path, or fallback when absent. JSON decoding
// yields float64 for all numbers; string-encoded integers also occur.
func getInt(m map[string]any, fallback int, path ...string) int {
	parent := m
	if len(path) > 1 {
		parent = getMap(m, path[:len(path)-1]...)
		if parent == nil {
			return fallback
		}
	}
	switch v := parent[path[len(path)-1]].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return fallback
	default:
		return fallback
	}
}

// getStringSlice returns the string slice at path, or an empty slice.
func getStringSlice(m map[string]any, path ...string) []string {
	parent := m
	if len(path) > 1 {
		parent = getMap(m, path[:len(path)-1]...)
		if parent == nil {
			return []string{}
		}
	}
	raw, ok := parent[path[len(path)-1]].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// getTime parses the timestamp at path. Missing or unparseable timestamps
// fall back to the Unix epoch so normalization stays deterministic; such
// records never advance the watermark.
func getTime(m map[string]any, path ...string) time.Time {
	raw := getString(m, "", path...)
	if raw == "" {
		return time.Unix(0, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Unix(0, 0).UTC()
}
