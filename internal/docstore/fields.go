package docstore

import "time"

// Field accessors treat every field as optional-with-default so a malformed
// document degrades to zero values instead of failing a whole listing fetch.

// String returns the named field as a string, or "" when absent or mistyped.
func (d Document) String(field string) string {
	if v, ok := d[field].(string); ok {
		return v
	}
	return ""
}

// Strings returns the named set-valued field. Decoded JSON may surface the
// slice as []any, so both shapes are accepted; anything else yields nil.
func (d Document) Strings(field string) []string {
	switch v := d[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Time returns the named field as a time.Time. Stored timestamps may be
// native or RFC 3339 strings; absent or unparseable values yield fallback.
func (d Document) Time(field string, fallback time.Time) time.Time {
	switch v := d[field].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return fallback
}
