package osrf

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.UnmarshalFromString(raw, &v))
	return v
}

func TestFieldValue_KeyedAndPositionalEquivalence(t *testing.T) {
	reg := DefaultRegistry()
	table, ok := reg.Lookup("ccs")
	require.True(t, ok)

	keyed := decode(t, `{"id": 7, "name": "Reshelving", "holdable": "t", "opac_visible": "f"}`)
	tagged := decode(t, `{"__c": "ccs", "__p": [7, "Reshelving", "t", "f"]}`)

	ko, ok := AsObject(keyed)
	require.True(t, ok)
	to, ok := AsObject(tagged)
	require.True(t, ok)
	assert.True(t, ko.Keyed())
	assert.False(t, to.Keyed())
	assert.Equal(t, "ccs", to.Class)

	// Every field in the class table resolves identically in both forms.
	for _, name := range []string{"id", "name", "holdable", "opac_visible"} {
		assert.Equal(t, FieldValue(ko, name, table), FieldValue(to, name, table),
			"field %q should decode identically", name)
	}
}

func TestFieldValue_StatusByTableIndex(t *testing.T) {
	reg := DefaultRegistry()
	table, _ := reg.Lookup("acp")
	idx, ok := table.Index("status")
	require.True(t, ok)
	assert.Equal(t, 8, idx)

	slots := make([]any, 18)
	slots[8] = float64(0)
	o := &Object{Class: "acp", slots: slots}
	id, ok := Int64(FieldValue(o, "status", table))
	require.True(t, ok)
	assert.Equal(t, int64(0), id)
}

func TestFieldBool_TriState(t *testing.T) {
	reg := DefaultRegistry()
	table, _ := reg.Lookup("acp")

	o, _ := AsObject(decode(t, `{"holdable": "t", "circulate": "f", "deleted": null}`))

	holdable := FieldBool(o, "holdable", table)
	require.NotNil(t, holdable)
	assert.True(t, *holdable)

	circulate := FieldBool(o, "circulate", table)
	require.NotNil(t, circulate)
	assert.False(t, *circulate)

	// Null and absent both mean unknown, not false.
	assert.Nil(t, FieldBool(o, "deleted", table))
	assert.Nil(t, FieldBool(o, "opac_visible", table))
}

func TestFieldID_BareAndFleshed(t *testing.T) {
	reg := DefaultRegistry()
	table, _ := reg.Lookup("acp")

	bare, _ := AsObject(decode(t, `{"call_number": 12}`))
	id, ok := FieldID(bare, "call_number", table, reg)
	require.True(t, ok)
	assert.Equal(t, int64(12), id)

	fleshed, _ := AsObject(decode(t,
		`{"call_number": {"__c": "acn", "__p": [12, null, null, 55, "PZ7.S1", 3]}}`))
	id, ok = FieldID(fleshed, "call_number", table, reg)
	require.True(t, ok)
	assert.Equal(t, int64(12), id)
}

func TestAsObject_RejectsNonObjects(t *testing.T) {
	for _, v := range []any{nil, "x", float64(3), []any{1, 2}} {
		_, ok := AsObject(v)
		assert.False(t, ok)
	}
}

func TestUnwrap(t *testing.T) {
	resp := decode(t, `{"payload": [{"id": 1}], "status": 200}`)
	first, err := Unwrap(resp)
	require.NoError(t, err)
	m, ok := first.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), m["id"])

	_, err = Unwrap(decode(t, `{"status": 200}`))
	assert.ErrorIs(t, err, ErrNoPayload)

	// A payload whose first element is an array is handed back whole.
	arr, err := Unwrap(decode(t, `{"payload": [[1, 2, 3]]}`))
	require.NoError(t, err)
	assert.Len(t, arr, 3)
}

func TestParseEvent(t *testing.T) {
	ev, ok := ParseEvent(decode(t,
		`{"ilsevent": 7014, "textcode": "OPEN_CIRCULATION_EXISTS", "desc": "open circulation exists"}`))
	require.True(t, ok)
	assert.False(t, ev.Success())
	assert.Equal(t, "OPEN_CIRCULATION_EXISTS", ev.TextCode)

	ok2, isEv := ParseEvent(decode(t, `{"ilsevent": 0, "textcode": "SUCCESS"}`))
	require.True(t, isEv)
	assert.True(t, ok2.Success())

	_, isEv = ParseEvent(decode(t, `{"id": 9}`))
	assert.False(t, isEv)
}
