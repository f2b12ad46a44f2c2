// Package osrf decodes remote objects returned by the ILS gateway.
//
// The backend serves two incompatible encodings of the same logical
// records: plain JSON objects keyed by field name, and a tagged form
// {"__c": classTag, "__p": [values...]} where field order is defined by
// the class, not the payload. This package normalizes both behind a
// single field-access contract driven by per-class field tables.
package osrf

import (
	"strconv"
)

// Reserved keys of the tagged wire form.
const (
	classKey   = "__c"
	payloadKey = "__p"
)

// Object is a decoded remote object, regardless of wire encoding.
//
// Exactly one of fields or slots is populated. Class carries the class
// tag declared on the wire; it is empty for keyed objects that arrived
// without one.
type Object struct {
	Class  string
	fields map[string]any
	slots  []any
}

// AsObject interprets a decoded JSON value as a remote object.
//
// Returns false for nil, scalars, and arrays. A map with the reserved
// payload key is treated as the tagged positional form; any other map
// is a keyed object. Detection never goes beyond the reserved key;
// field tables are selected by the declared class tag.
func AsObject(v any) (*Object, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if raw, ok := m[payloadKey]; ok {
		slots, ok := raw.([]any)
		if !ok {
			return nil, false
		}
		class, _ := m[classKey].(string)
		return &Object{Class: class, slots: slots}, true
	}
	return &Object{fields: m}, true
}

// Keyed reports whether the object arrived as a named-key mapping.
func (o *Object) Keyed() bool {
	return o.fields != nil
}

// Int64 coerces a decoded scalar to an integer id.
//
// The gateway serializes numbers as JSON numbers or, for some legacy
// methods, as decimal strings; both are accepted.
func Int64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// String coerces a decoded scalar to a string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
