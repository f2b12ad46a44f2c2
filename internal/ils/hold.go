package ils

import (
	"fmt"
	"time"

	"github.com/fenwicklabs/circd/internal/osrf"
)

// Hold target types.
const (
	HoldTypeTitle  = "T"
	HoldTypeVolume = "V"
	HoldTypeCopy   = "C"
)

// Hold is a hold request record.
type Hold struct {
	ID              int64      `json:"id"`
	Type            string     `json:"holdType"`
	Target          int64      `json:"target"`
	PatronID        int64      `json:"patronId,omitempty"`
	PickupLib       int64      `json:"pickupLib,omitempty"`
	Frozen          *bool      `json:"frozen,omitempty"`
	ThawDate        *time.Time `json:"thawDate,omitempty"`
	RequestTime     *time.Time `json:"requestTime,omitempty"`
	CaptureTime     *time.Time `json:"captureTime,omitempty"`
	ShelfExpireTime *time.Time `json:"shelfExpireTime,omitempty"`
	FulfillmentTime *time.Time `json:"fulfillmentTime,omitempty"`
	CancelTime      *time.Time `json:"cancelTime,omitempty"`
	CancelCause     int64      `json:"cancelCause,omitempty"`
	CurrentCopy     int64      `json:"currentCopy,omitempty"`
}

// DecodeHold builds a Hold view from a remote object.
func DecodeHold(o *osrf.Object, reg *osrf.Registry) (*Hold, error) {
	table := tableFor(o, "ahr", reg)

	id, ok := osrf.Int64(osrf.FieldValue(o, "id", table))
	if !ok {
		return nil, fmt.Errorf("hold record has no id")
	}

	h := &Hold{
		ID:              id,
		Type:            osrf.FieldString(o, "hold_type", table),
		Frozen:          osrf.FieldBool(o, "frozen", table),
		ThawDate:        ParseTime(osrf.FieldValue(o, "thaw_date", table)),
		RequestTime:     ParseTime(osrf.FieldValue(o, "request_time", table)),
		CaptureTime:     ParseTime(osrf.FieldValue(o, "capture_time", table)),
		ShelfExpireTime: ParseTime(osrf.FieldValue(o, "shelf_expire_time", table)),
		FulfillmentTime: ParseTime(osrf.FieldValue(o, "fulfillment_time", table)),
		CancelTime:      ParseTime(osrf.FieldValue(o, "cancel_time", table)),
	}
	h.Target, _ = osrf.Int64(osrf.FieldValue(o, "target", table))
	h.PatronID, _ = osrf.FieldID(o, "usr", table, reg)
	h.PickupLib, _ = osrf.FieldID(o, "pickup_lib", table, reg)
	h.CancelCause, _ = osrf.Int64(osrf.FieldValue(o, "cancel_cause", table))
	h.CurrentCopy, _ = osrf.FieldID(o, "current_copy", table, reg)
	return h, nil
}
