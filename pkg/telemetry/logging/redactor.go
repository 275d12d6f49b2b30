package logging

import (
	"strings"
)

// RedactedValue replaces the value of a sensitive attribute.
const RedactedValue = "[REDACTED]"

// Redactor masks the values of sensitive record attributes. Attribute names
// match case-insensitively. A nil *Redactor redacts nothing.
type Redactor struct {
	attributes map[string]struct{}
}

// NewRedactor creates a redactor for the given attribute names.
func NewRedactor(attributes []string) *Redactor {
	r := &Redactor{attributes: make(map[string]struct{}, len(attributes))}
	for _, a := range attributes {
		if a = strings.TrimSpace(a); a != "" {
			r.attributes[strings.ToLower(a)] = struct{}{}
		}
	}
	return r
}

// IsSensitive reports whether attribute's values are masked.
func (r *Redactor) IsSensitive(attribute string) bool {
	if r == nil || len(r.attributes) == 0 {
		return false
	}
	_, ok := r.attributes[strings.ToLower(attribute)]
	return ok
}

// RedactValue returns RedactedValue for sensitive attributes and value
// unchanged otherwise.
func (r *Redactor) RedactValue(attribute string, value interface{}) interface{} {
	if r.IsSensitive(attribute) {
		return RedactedValue
	}
	return value
}

// RedactRecord returns a copy of record with sensitive values masked.
// Nested maps are masked recursively. The input is never modified.
func (r *Redactor) RedactRecord(record map[string]interface{}) map[string]interface{} {
	if record == nil {
		return nil
	}

	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		switch {
		case r.IsSensitive(k):
			out[k] = RedactedValue
		case isMap(v):
			out[k] = r.RedactRecord(v.(map[string]interface{}))
		default:
			out[k] = v
		}
	}
	return out
}

func isMap(v interface{}) bool {
	_, ok := v.(map[string]interface{})
	return ok
}
