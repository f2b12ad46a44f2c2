package ils

import (
	"fmt"

	"github.com/fenwicklabs/circd/internal/osrf"
)

// OrgUnit is one node of the org hierarchy.
type OrgUnit struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Shortname   string `json:"shortname,omitempty"`
	ParentOU    *int64 `json:"parentOu,omitempty"`
	OpacVisible *bool  `json:"opacVisible,omitempty"`
}

// DecodeOrgUnit builds an OrgUnit view from a remote object.
func DecodeOrgUnit(o *osrf.Object, reg *osrf.Registry) (*OrgUnit, error) {
	table := tableFor(o, "aou", reg)

	id, ok := osrf.Int64(osrf.FieldValue(o, "id", table))
	if !ok {
		return nil, fmt.Errorf("org unit record has no id")
	}

	u := &OrgUnit{
		ID:          id,
		Name:        osrf.FieldString(o, "name", table),
		Shortname:   osrf.FieldString(o, "shortname", table),
		OpacVisible: osrf.FieldBool(o, "opac_visible", table),
	}
	if parent, ok := osrf.FieldID(o, "parent_ou", table, reg); ok {
		u.ParentOU = &parent
	}
	return u, nil
}

// Patron is the minimal patron view used for display enrichment.
type Patron struct {
	ID             int64
	Usrname        string
	FamilyName     string
	FirstGivenName string
	HomeOU         int64
}

// DisplayName renders "Family, Given" with graceful degradation.
func (p *Patron) DisplayName() string {
	switch {
	case p.FamilyName != "" && p.FirstGivenName != "":
		return p.FamilyName + ", " + p.FirstGivenName
	case p.FamilyName != "":
		return p.FamilyName
	default:
		return p.Usrname
	}
}

// DecodePatron builds a Patron view from a remote object.
func DecodePatron(o *osrf.Object, reg *osrf.Registry) (*Patron, error) {
	table := tableFor(o, "au", reg)

	id, ok := osrf.Int64(osrf.FieldValue(o, "id", table))
	if !ok {
		return nil, fmt.Errorf("patron record has no id")
	}
	p := &Patron{
		ID:             id,
		Usrname:        osrf.FieldString(o, "usrname", table),
		FamilyName:     osrf.FieldString(o, "family_name", table),
		FirstGivenName: osrf.FieldString(o, "first_given_name", table),
	}
	p.HomeOU, _ = osrf.FieldID(o, "home_ou", table, reg)
	return p, nil
}
