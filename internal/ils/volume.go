package ils

import (
	"fmt"
	"strings"

	"github.com/fenwicklabs/circd/internal/osrf"
)

// Volume is a call number record grouping copies under a bib record.
type Volume struct {
	ID        int64   `json:"id"`
	Record    int64   `json:"record"`
	Label     string  `json:"label"`
	Prefix    string  `json:"prefix,omitempty"`
	Suffix    string  `json:"suffix,omitempty"`
	OwningLib int64   `json:"owningLib,omitempty"`
	Deleted   *bool   `json:"deleted,omitempty"`
	Copies    []*Copy `json:"copies,omitempty"`
}

// DisplayLabel composes prefix, label and suffix, falling back to the
// bare label when the affixes are absent.
func (v *Volume) DisplayLabel() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.Prefix, v.Label, v.Suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// DecodeVolume builds a Volume view, including fleshed copies when the
// backend expanded them.
func DecodeVolume(o *osrf.Object, reg *osrf.Registry) (*Volume, error) {
	table := tableFor(o, "acn", reg)

	id, ok := osrf.Int64(osrf.FieldValue(o, "id", table))
	if !ok {
		return nil, fmt.Errorf("volume record has no id")
	}

	v := &Volume{
		ID:      id,
		Label:   osrf.FieldString(o, "label", table),
		Prefix:  affix(osrf.FieldValue(o, "prefix", table), reg),
		Suffix:  affix(osrf.FieldValue(o, "suffix", table), reg),
		Deleted: osrf.FieldBool(o, "deleted", table),
	}
	v.Record, _ = osrf.FieldID(o, "record", table, reg)
	v.OwningLib, _ = osrf.FieldID(o, "owning_lib", table, reg)

	if copies, ok := osrf.FieldValue(o, "copies", table).([]any); ok {
		for _, raw := range copies {
			co, ok := osrf.AsObject(raw)
			if !ok {
				continue
			}
			c, err := DecodeCopy(co, reg)
			if err != nil {
				continue
			}
			v.Copies = append(v.Copies, c)
		}
	}
	return v, nil
}

// affix handles call number prefixes/suffixes, which some backend
// versions flesh into {id, label} records and others send as strings.
func affix(v any, reg *osrf.Registry) string {
	if s, ok := osrf.String(v); ok {
		return s
	}
	if o, ok := osrf.AsObject(v); ok {
		table, _ := reg.Lookup(o.Class)
		return osrf.FieldString(o, "label", table)
	}
	return ""
}
