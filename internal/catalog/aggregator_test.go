package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwicklabs/circd/internal/ils"
)

func boolPtr(b bool) *bool { return &b }

func orgFixture() *OrgTree {
	parent := func(id int64) *int64 { return &id }
	return NewOrgTree([]*ils.OrgUnit{
		{ID: 1, Name: "Consortium"},
		{ID: 2, Name: "East System", ParentOU: parent(1)},
		{ID: 3, Name: "East Branch", ParentOU: parent(2)},
		{ID: 4, Name: "East Bookmobile", ParentOU: parent(3)},
		{ID: 5, Name: "West System", ParentOU: parent(1)},
	})
}

func TestAllowedOrgs_DepthFromScopeRoot(t *testing.T) {
	tree := orgFixture()

	// Depth counts from the scope root, not the absolute root.
	allowed := tree.AllowedOrgs(2, 1)
	assert.Equal(t, map[int64]struct{}{2: {}, 3: {}}, allowed)

	// Orgs outside the scope subtree are excluded regardless of their
	// absolute depth: West System is depth 1 from the consortium but
	// unreachable from East System.
	_, ok := allowed[5]
	assert.False(t, ok)

	// Unlimited depth covers the whole subtree.
	all := tree.AllowedOrgs(2, -1)
	assert.Len(t, all, 3)
}

func TestAggregate_AvailabilityInvariant(t *testing.T) {
	vols := []*ils.Volume{
		{ID: 1, Label: "PZ7.S1", OwningLib: 3, Copies: []*ils.Copy{
			{ID: 1, Barcode: "A", CircLib: 3, Status: ils.CopyStatus{ID: ils.StatusAvailable}},
			{ID: 2, Barcode: "B", CircLib: 3, Status: ils.CopyStatus{ID: 1, Name: "Checked out"}},
			{ID: 3, Barcode: "C", CircLib: 3, Status: ils.CopyStatus{ID: ils.StatusReshelving}},
		}},
	}

	sum := Aggregate(vols, orgFixture(), ScopeParams{})
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Available)
	assert.LessOrEqual(t, sum.Available, sum.Total)
}

func TestAggregate_ScopeFiltersCopies(t *testing.T) {
	vols := []*ils.Volume{
		{ID: 1, Label: "X", Copies: []*ils.Copy{
			{ID: 1, Barcode: "A", CircLib: 3, Status: ils.CopyStatus{ID: 0}},
			{ID: 2, Barcode: "B", CircLib: 5, Status: ils.CopyStatus{ID: 0}},
		}},
	}
	tree := orgFixture()

	sum := Aggregate(vols, tree, ScopeParams{ScopeOrg: 2, MaxDepth: 2})
	require.Len(t, sum.Records, 1)
	assert.Equal(t, "A", sum.Records[0].Barcode)

	// Every returned org id is a member of the allowed set.
	allowed := tree.AllowedOrgs(2, 2)
	for _, r := range sum.Records {
		_, ok := allowed[r.OrgID]
		assert.True(t, ok)
	}
}

func TestAggregate_TriStateVisibility(t *testing.T) {
	vols := []*ils.Volume{
		{ID: 1, Label: "X", Copies: []*ils.Copy{
			// Unknown visibility at every level: included.
			{ID: 1, Barcode: "unknown", Status: ils.CopyStatus{ID: 0}},
			// Explicit false at the copy level: excluded.
			{ID: 2, Barcode: "copy-hidden", OpacVisible: boolPtr(false), Status: ils.CopyStatus{ID: 0}},
			// Explicit false at the location level: excluded.
			{ID: 3, Barcode: "loc-hidden", Status: ils.CopyStatus{ID: 0},
				Location: &ils.CopyLocation{ID: 9, OpacVisible: boolPtr(false)}},
			// Explicit false at the status level: excluded.
			{ID: 4, Barcode: "status-hidden", Status: ils.CopyStatus{ID: 0, OpacVisible: boolPtr(false)}},
			// Explicit true everywhere: included.
			{ID: 5, Barcode: "visible", OpacVisible: boolPtr(true),
				Status:   ils.CopyStatus{ID: 0, OpacVisible: boolPtr(true)},
				Location: &ils.CopyLocation{ID: 9, OpacVisible: boolPtr(true)}},
		}},
	}

	sum := Aggregate(vols, nil, ScopeParams{})
	barcodes := make([]string, 0, len(sum.Records))
	for _, r := range sum.Records {
		barcodes = append(barcodes, r.Barcode)
	}
	assert.ElementsMatch(t, []string{"unknown", "visible"}, barcodes)
}

func TestAggregate_CallNumberLabelComposition(t *testing.T) {
	vols := []*ils.Volume{
		{ID: 1, Prefix: "REF", Label: "QA76", Suffix: "v.2", Copies: []*ils.Copy{
			{ID: 1, Barcode: "A", Status: ils.CopyStatus{ID: 0}},
		}},
	}
	sum := Aggregate(vols, nil, ScopeParams{})
	require.Len(t, sum.Records, 1)
	assert.Equal(t, "REF QA76 v.2", sum.Records[0].CallNumber)
}

func TestAggregate_DeletedCopiesExcluded(t *testing.T) {
	vols := []*ils.Volume{
		{ID: 1, Label: "X", Copies: []*ils.Copy{
			{ID: 1, Barcode: "live", Status: ils.CopyStatus{ID: 0}},
			{ID: 2, Barcode: "gone", Deleted: boolPtr(true), Status: ils.CopyStatus{ID: 0}},
		}},
	}
	sum := Aggregate(vols, nil, ScopeParams{})
	assert.Equal(t, 1, sum.Total)
}
