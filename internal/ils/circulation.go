package ils

import (
	"fmt"
	"time"

	"github.com/fenwicklabs/circd/internal/osrf"
)

// Circulation is one checkout transaction.
//
// Lifecycle: open (checkin_time nil) until returned, or closed against
// a lost/missing/damaged billing. XactFinish closes the money side and
// may trail the checkin.
type Circulation struct {
	ID               int64      `json:"id"`
	PatronID         int64      `json:"patronId,omitempty"`
	CopyID           int64      `json:"copyId,omitempty"`
	XactStart        *time.Time `json:"xactStart,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	CheckinTime      *time.Time `json:"checkinTime,omitempty"`
	XactFinish       *time.Time `json:"xactFinish,omitempty"`
	RenewalRemaining int64      `json:"renewalRemaining,omitempty"`
}

// Open reports whether the circulation is still outstanding.
func (c *Circulation) Open() bool {
	return c.CheckinTime == nil && c.XactFinish == nil
}

// DecodeCirculation builds a Circulation view from a remote object.
func DecodeCirculation(o *osrf.Object, reg *osrf.Registry) (*Circulation, error) {
	table := tableFor(o, "circ", reg)

	id, ok := osrf.Int64(osrf.FieldValue(o, "id", table))
	if !ok {
		return nil, fmt.Errorf("circulation record has no id")
	}

	c := &Circulation{
		ID:          id,
		XactStart:   ParseTime(osrf.FieldValue(o, "xact_start", table)),
		DueDate:     ParseTime(osrf.FieldValue(o, "due_date", table)),
		CheckinTime: ParseTime(osrf.FieldValue(o, "checkin_time", table)),
		XactFinish:  ParseTime(osrf.FieldValue(o, "xact_finish", table)),
	}
	c.PatronID, _ = osrf.FieldID(o, "usr", table, reg)
	c.CopyID, _ = osrf.FieldID(o, "target_copy", table, reg)
	c.RenewalRemaining, _ = osrf.Int64(osrf.FieldValue(o, "renewal_remaining", table))
	return c, nil
}
