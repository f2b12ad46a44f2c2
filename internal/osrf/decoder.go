package osrf

import (
	"errors"
	"fmt"
)

// ErrNoPayload indicates a gateway response without a payload array.
var ErrNoPayload = errors.New("response envelope has no payload")

// FieldValue resolves a logical field on an object.
//
// Keyed objects are indexed directly by name; positional objects go
// through the field table. Returns nil when the object is nil, the
// field is absent from the table, or the slot holds null.
//
// A non-nil result may itself be a remote object (a fleshed foreign
// key); callers re-invoke the decoder with that object's own field
// table. The decoder never assumes a foreign key is a bare scalar.
func FieldValue(o *Object, name string, table FieldTable) any {
	if o == nil {
		return nil
	}
	if o.fields != nil {
		return o.fields[name]
	}
	i, ok := table.Index(name)
	if !ok || i >= len(o.slots) {
		return nil
	}
	return o.slots[i]
}

// FieldBool resolves a protocol boolean field.
//
// The wire serializes booleans as the strings "t" and "f"; some newer
// methods emit native JSON booleans. Absence or null means unknown and
// is returned as nil, never defaulted to false.
func FieldBool(o *Object, name string, table FieldTable) *bool {
	v := FieldValue(o, name, table)
	switch b := v.(type) {
	case bool:
		return &b
	case string:
		switch b {
		case "t":
			t := true
			return &t
		case "f":
			f := false
			return &f
		}
	}
	return nil
}

// FieldString resolves a field as a string, with "" for absent/null.
func FieldString(o *Object, name string, table FieldTable) string {
	s, _ := String(FieldValue(o, name, table))
	return s
}

// FieldID resolves a field that may arrive either as a bare identifier
// or as a fleshed object carrying its own "id" field.
//
// The registry is consulted with the fleshed object's declared class so
// a positional flesh decodes through the right table.
func FieldID(o *Object, name string, table FieldTable, reg *Registry) (int64, bool) {
	v := FieldValue(o, name, table)
	if v == nil {
		return 0, false
	}
	if nested, ok := AsObject(v); ok {
		nt, _ := reg.Lookup(nested.Class)
		return Int64(FieldValue(nested, "id", nt))
	}
	return Int64(v)
}

// Unwrap extracts the first payload element from a gateway response
// envelope. The element may be a single object or an array of objects;
// both are returned as-is for the caller to interpret.
func Unwrap(resp any) (any, error) {
	m, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected envelope type %T: %w", resp, ErrNoPayload)
	}
	payload, ok := m["payload"].([]any)
	if !ok || len(payload) == 0 {
		return nil, ErrNoPayload
	}
	return payload[0], nil
}
