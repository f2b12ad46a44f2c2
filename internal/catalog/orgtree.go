package catalog

import (
	"github.com/fenwicklabs/circd/internal/ils"
)

// OrgTree indexes the org hierarchy for scope walks and name lookups.
type OrgTree struct {
	byID     map[int64]*ils.OrgUnit
	children map[int64][]int64
}

// NewOrgTree builds an index over the full org unit list.
func NewOrgTree(units []*ils.OrgUnit) *OrgTree {
	t := &OrgTree{
		byID:     make(map[int64]*ils.OrgUnit, len(units)),
		children: make(map[int64][]int64),
	}
	for _, u := range units {
		t.byID[u.ID] = u
		if u.ParentOU != nil {
			t.children[*u.ParentOU] = append(t.children[*u.ParentOU], u.ID)
		}
	}
	return t
}

// Name returns the display name of an org unit.
func (t *OrgTree) Name(id int64) (string, bool) {
	u, ok := t.byID[id]
	if !ok {
		return "", false
	}
	return u.Name, true
}

// AllowedOrgs computes the org ids reachable within maxDepth hops of
// the scope root.
//
// Depth is measured from the scope root (depth 0), not from the
// hierarchy's absolute root, and orgs outside the scope subtree are
// excluded entirely regardless of their absolute depth. A negative
// maxDepth means the whole subtree.
func (t *OrgTree) AllowedOrgs(scope int64, maxDepth int) map[int64]struct{} {
	allowed := make(map[int64]struct{})
	if _, ok := t.byID[scope]; !ok {
		return allowed
	}

	type node struct {
		id    int64
		depth int
	}
	queue := []node{{id: scope, depth: 0}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if maxDepth >= 0 && n.depth > maxDepth {
			continue
		}
		allowed[n.id] = struct{}{}
		for _, child := range t.children[n.id] {
			queue = append(queue, node{id: child, depth: n.depth + 1})
		}
	}
	return allowed
}
