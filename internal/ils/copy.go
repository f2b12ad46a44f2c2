package ils

import (
	"fmt"

	"github.com/fenwicklabs/circd/internal/osrf"
)

// copy status ids with authoritative availability semantics.
const (
	StatusAvailable  int64 = 0
	StatusReshelving int64 = 7
)

// CopyStatus is a copy's circulation status.
type CopyStatus struct {
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	Holdable    *bool  `json:"holdable,omitempty"`
	OpacVisible *bool  `json:"opacVisible,omitempty"`
}

// CopyLocation is a shelving location.
type CopyLocation struct {
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	OwningLib   int64  `json:"owningLib,omitempty"`
	Holdable    *bool  `json:"holdable,omitempty"`
	OpacVisible *bool  `json:"opacVisible,omitempty"`
	Circulate   *bool  `json:"circulate,omitempty"`
}

// Copy is an item record.
type Copy struct {
	ID          int64         `json:"id"`
	Barcode     string        `json:"barcode"`
	CallNumber  int64         `json:"callNumber,omitempty"`
	CircLib     int64         `json:"circLib,omitempty"`
	OwningLib   int64         `json:"owningLib,omitempty"`
	Status      CopyStatus    `json:"status"`
	Location    *CopyLocation `json:"location,omitempty"`
	Holdable    *bool         `json:"holdable,omitempty"`
	Circulate   *bool         `json:"circulate,omitempty"`
	OpacVisible *bool         `json:"opacVisible,omitempty"`
	Deleted     *bool         `json:"deleted,omitempty"`
}

// Available reports whether the copy counts as available. Only the
// authoritative status set qualifies; everything else is total-only.
func (c *Copy) Available() bool {
	return c.Status.ID == StatusAvailable || c.Status.ID == StatusReshelving
}

// DecodeCopy builds a Copy view from a remote object.
//
// Status and location may arrive as bare ids or fleshed objects; both
// forms are handled without knowing ahead of time which was sent.
func DecodeCopy(o *osrf.Object, reg *osrf.Registry) (*Copy, error) {
	table := tableFor(o, "acp", reg)

	id, ok := osrf.Int64(osrf.FieldValue(o, "id", table))
	if !ok {
		return nil, fmt.Errorf("copy record has no id")
	}

	c := &Copy{
		ID:          id,
		Barcode:     osrf.FieldString(o, "barcode", table),
		Holdable:    osrf.FieldBool(o, "holdable", table),
		Circulate:   osrf.FieldBool(o, "circulate", table),
		OpacVisible: osrf.FieldBool(o, "opac_visible", table),
		Deleted:     osrf.FieldBool(o, "deleted", table),
	}
	c.CallNumber, _ = osrf.FieldID(o, "call_number", table, reg)
	c.CircLib, _ = osrf.FieldID(o, "circ_lib", table, reg)
	c.OwningLib, _ = osrf.FieldID(o, "owning_lib", table, reg)

	statusVal := osrf.FieldValue(o, "status", table)
	if nested, ok := osrf.AsObject(statusVal); ok {
		c.Status = decodeStatus(nested, reg)
	} else if sid, ok := osrf.Int64(statusVal); ok {
		c.Status = CopyStatus{ID: sid}
	}

	if nested, ok := osrf.AsObject(osrf.FieldValue(o, "location", table)); ok {
		loc := decodeLocation(nested, reg)
		c.Location = &loc
	}
	return c, nil
}

func decodeStatus(o *osrf.Object, reg *osrf.Registry) CopyStatus {
	table := tableFor(o, "ccs", reg)
	id, _ := osrf.Int64(osrf.FieldValue(o, "id", table))
	return CopyStatus{
		ID:          id,
		Name:        osrf.FieldString(o, "name", table),
		Holdable:    osrf.FieldBool(o, "holdable", table),
		OpacVisible: osrf.FieldBool(o, "opac_visible", table),
	}
}

func decodeLocation(o *osrf.Object, reg *osrf.Registry) CopyLocation {
	table := tableFor(o, "acpl", reg)
	id, _ := osrf.Int64(osrf.FieldValue(o, "id", table))
	owning, _ := osrf.FieldID(o, "owning_lib", table, reg)
	return CopyLocation{
		ID:          id,
		Name:        osrf.FieldString(o, "name", table),
		OwningLib:   owning,
		Holdable:    osrf.FieldBool(o, "holdable", table),
		OpacVisible: osrf.FieldBool(o, "opac_visible", table),
		Circulate:   osrf.FieldBool(o, "circulate", table),
	}
}

// tableFor selects the field table by the object's declared class tag,
// falling back to the expected class for keyed objects that carry none.
func tableFor(o *osrf.Object, expected string, reg *osrf.Registry) osrf.FieldTable {
	class := expected
	if o != nil && o.Class != "" {
		class = o.Class
	}
	table, _ := reg.Lookup(class)
	return table
}
