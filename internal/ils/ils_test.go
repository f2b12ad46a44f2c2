package ils

import (
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwicklabs/circd/internal/osrf"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func obj(t *testing.T, raw string) *osrf.Object {
	t.Helper()
	var v any
	require.NoError(t, json.UnmarshalFromString(raw, &v))
	o, ok := osrf.AsObject(v)
	require.True(t, ok)
	return o
}

func TestDecodeCopy_FleshedStatusAndLocation(t *testing.T) {
	reg := osrf.DefaultRegistry()
	o := obj(t, `{
		"id": 101, "barcode": "I200", "call_number": 12,
		"circ_lib": 3, "owning_lib": 3,
		"status": {"__c": "ccs", "__p": [7, "Reshelving", "t", "t"]},
		"location": {"id": 5, "name": "Stacks", "owning_lib": 3, "opac_visible": "t"},
		"holdable": "t", "opac_visible": null
	}`)

	c, err := DecodeCopy(o, reg)
	require.NoError(t, err)
	assert.Equal(t, int64(101), c.ID)
	assert.Equal(t, "I200", c.Barcode)
	assert.Equal(t, int64(7), c.Status.ID)
	assert.Equal(t, "Reshelving", c.Status.Name)
	require.NotNil(t, c.Location)
	assert.Equal(t, "Stacks", c.Location.Name)
	assert.Nil(t, c.OpacVisible, "null visibility stays unknown")
	assert.True(t, c.Available())
}

func TestDecodeCopy_BareStatusID(t *testing.T) {
	reg := osrf.DefaultRegistry()
	c, err := DecodeCopy(obj(t, `{"id": 4, "barcode": "B1", "status": 1}`), reg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Status.ID)
	assert.False(t, c.Available())
}

func TestVolume_DisplayLabel(t *testing.T) {
	v := &Volume{Prefix: "REF", Label: "PZ7.S1", Suffix: "c.2"}
	assert.Equal(t, "REF PZ7.S1 c.2", v.DisplayLabel())

	bare := &Volume{Label: "PZ7.S1"}
	assert.Equal(t, "PZ7.S1", bare.DisplayLabel())
}

func TestDecodeVolume_WithFleshedCopies(t *testing.T) {
	reg := osrf.DefaultRegistry()
	v, err := DecodeVolume(obj(t, `{
		"id": 12, "record": 55, "label": "PZ7.S1", "owning_lib": 3,
		"copies": [
			{"id": 1, "barcode": "A", "status": 0},
			{"id": 2, "barcode": "B", "status": 1}
		]
	}`), reg)
	require.NoError(t, err)
	assert.Equal(t, int64(55), v.Record)
	require.Len(t, v.Copies, 2)
	assert.Equal(t, "A", v.Copies[0].Barcode)
}

func TestDecodeCirculation_Timestamps(t *testing.T) {
	reg := osrf.DefaultRegistry()
	c, err := DecodeCirculation(obj(t, `{
		"id": 9, "usr": 42, "target_copy": 101,
		"xact_start": "2026-08-01T10:00:00-0400",
		"due_date": "2026-08-15T23:59:59-0400",
		"checkin_time": null
	}`), reg)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.PatronID)
	require.NotNil(t, c.DueDate)
	assert.Equal(t, 15, c.DueDate.Day())
	assert.Nil(t, c.CheckinTime)
	assert.True(t, c.Open())
}

func TestDecodeHold_PositionalForm(t *testing.T) {
	reg := osrf.DefaultRegistry()
	h, err := DecodeHold(obj(t, `{"__c": "ahr", "__p":
		[77, "T", 55, 42, 3, "f", null, "2026-08-01T10:00:00-0400",
		 null, null, null, null, null, null]}`), reg)
	require.NoError(t, err)
	assert.Equal(t, int64(77), h.ID)
	assert.Equal(t, HoldTypeTitle, h.Type)
	assert.Equal(t, int64(42), h.PatronID)
	require.NotNil(t, h.Frozen)
	assert.False(t, *h.Frozen)
	assert.Nil(t, h.ThawDate)
	require.NotNil(t, h.RequestTime)
}

func TestParseTime(t *testing.T) {
	assert.Nil(t, ParseTime(nil))
	assert.Nil(t, ParseTime(""))
	assert.Nil(t, ParseTime("not a time"))

	ts := ParseTime("2026-08-29T12:00:00Z")
	require.NotNil(t, ts)
	assert.Equal(t, time.Month(8), ts.Month())
}

func TestPatron_DisplayName(t *testing.T) {
	assert.Equal(t, "Smith, Jo", (&Patron{FamilyName: "Smith", FirstGivenName: "Jo"}).DisplayName())
	assert.Equal(t, "Smith", (&Patron{FamilyName: "Smith"}).DisplayName())
	assert.Equal(t, "jsmith", (&Patron{Usrname: "jsmith"}).DisplayName())
}
