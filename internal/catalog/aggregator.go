// Package catalog aggregates nested volume/copy trees into flattened,
// scope-filtered availability summaries, backed by short-TTL caches for
// org and item lookups.
package catalog

import (
	"github.com/fenwicklabs/circd/internal/ils"
)

// ScopeParams filter the aggregation to an org subtree.
//
// A zero ScopeOrg disables org filtering. MaxDepth counts hops from the
// scope root; negative means unlimited within the subtree.
type ScopeParams struct {
	ScopeOrg int64
	MaxDepth int
}

// Record is one flattened copy row.
type Record struct {
	CopyID       int64  `json:"copyId"`
	Barcode      string `json:"barcode"`
	CallNumber   string `json:"callNumber"`
	OrgID        int64  `json:"orgId"`
	OrgName      string `json:"orgName,omitempty"`
	StatusID     int64  `json:"statusId"`
	StatusName   string `json:"statusName,omitempty"`
	LocationName string `json:"locationName,omitempty"`
	Available    bool   `json:"available"`
}

// Summary is the aggregate over a record's copy tree.
type Summary struct {
	Total     int      `json:"total"`
	Available int      `json:"available"`
	Records   []Record `json:"copies"`
}

// Aggregate flattens the volume tree into scope-filtered copy rows.
//
// A copy is included only if copy-, location-, and status-level opac
// visibility are all not explicitly false; unknown counts as visible.
// Availability comes from the authoritative status set, so the
// available count can never exceed the total.
func Aggregate(volumes []*ils.Volume, orgs *OrgTree, p ScopeParams) Summary {
	var allowed map[int64]struct{}
	if p.ScopeOrg != 0 && orgs != nil {
		allowed = orgs.AllowedOrgs(p.ScopeOrg, p.MaxDepth)
	}

	var out Summary
	for _, vol := range volumes {
		if vol.Deleted != nil && *vol.Deleted {
			continue
		}
		label := vol.DisplayLabel()
		for _, c := range vol.Copies {
			if c.Deleted != nil && *c.Deleted {
				continue
			}
			org := c.CircLib
			if org == 0 {
				org = vol.OwningLib
			}
			if allowed != nil {
				if _, ok := allowed[org]; !ok {
					continue
				}
			}
			if !visible(c) {
				continue
			}

			rec := Record{
				CopyID:     c.ID,
				Barcode:    c.Barcode,
				CallNumber: label,
				OrgID:      org,
				StatusID:   c.Status.ID,
				StatusName: c.Status.Name,
				Available:  c.Available(),
			}
			if c.Location != nil {
				rec.LocationName = c.Location.Name
			}
			if orgs != nil {
				if name, ok := orgs.Name(org); ok {
					rec.OrgName = name
				}
			}
			out.Records = append(out.Records, rec)
			out.Total++
			if rec.Available {
				out.Available++
			}
		}
	}
	return out
}

// visible applies the conjunctive tri-state visibility rule across the
// copy, its location, and its status. Unknown (nil) is treated as
// visible at every level.
func visible(c *ils.Copy) bool {
	if explicitlyFalse(c.OpacVisible) {
		return false
	}
	if c.Location != nil && explicitlyFalse(c.Location.OpacVisible) {
		return false
	}
	if explicitlyFalse(c.Status.OpacVisible) {
		return false
	}
	return true
}

func explicitlyFalse(b *bool) bool {
	return b != nil && !*b
}
