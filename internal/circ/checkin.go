package circ

import (
	"context"
	"errors"

	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/ils"
	"github.com/fenwicklabs/circd/internal/osrf"
)

// Checkin terminal outcomes.
const (
	CheckinReshelve     = "reshelve"
	CheckinHoldCaptured = "hold_captured"
	CheckinInTransit    = "in_transit"
)

// CheckinRequest describes a checkin attempt.
type CheckinRequest struct {
	Actor       Actor
	ItemBarcode string
	Override    bool
}

// CapturedHold identifies the hold a checkin was captured for.
type CapturedHold struct {
	ID       int64 `json:"id"`
	PatronID int64 `json:"patronId"`
}

// CheckinResult is the normalized outcome of a checkin.
//
// WasOverdue is derived only when both the due date and checkin time
// decode cleanly; otherwise it stays nil and is omitted from JSON,
// never defaulted to false.
type CheckinResult struct {
	Status     string           `json:"status"`
	Hold       *CapturedHold    `json:"hold,omitempty"`
	DestOrg    int64            `json:"destOrg,omitempty"`
	WasOverdue *bool            `json:"wasOverdue,omitempty"`
	Circ       *ils.Circulation `json:"circ,omitempty"`
}

// Checkin returns an item and classifies the terminal outcome: back to
// the shelf, captured for a hold, or routed into transit.
func (o *Orchestrator) Checkin(ctx context.Context, req CheckinRequest) (*CheckinResult, error) {
	details := map[string]any{
		"itemBarcode": req.ItemBarcode,
		"override":    req.Override,
	}

	if req.ItemBarcode == "" {
		return nil, ErrMissingItemBarcode
	}

	args := map[string]any{"copy_barcode": req.ItemBarcode}

	value, err := o.gw.Invoke(ctx, svcCirc, methodCheckin, args)

	var de *gateway.DomainError
	if err != nil && errors.As(err, &de) && req.Override && OverrideEligible(de.Code) {
		value, err = o.gw.Invoke(ctx, svcCirc, methodCheckin+overrideSuffix, args)
	}
	if err != nil {
		out := o.classifyCircFailure(err)
		o.emit(ctx, req.Actor, "checkin", details, out)
		return nil, out
	}

	result := o.classifyCheckin(value)
	details["status"] = result.Status
	if result.Hold != nil {
		details["holdId"] = result.Hold.ID
	}
	o.emit(ctx, req.Actor, "checkin", details, nil)
	return result, nil
}

// classifyCheckin inspects the reply payload for the three terminal
// branches. Hold capture wins over transit when both appear, matching
// the backend's routing order.
func (o *Orchestrator) classifyCheckin(value any) *CheckinResult {
	result := &CheckinResult{Status: CheckinReshelve}

	payload, ok := value.(map[string]any)
	if !ok {
		return result
	}

	if circObj, ok := osrf.AsObject(payload["circ"]); ok {
		if circ, err := ils.DecodeCirculation(circObj, o.reg); err == nil {
			result.Circ = circ
			if circ.DueDate != nil && circ.CheckinTime != nil {
				overdue := circ.CheckinTime.After(*circ.DueDate)
				result.WasOverdue = &overdue
			}
		}
	}

	if holdObj, ok := osrf.AsObject(payload["hold"]); ok {
		if hold, err := ils.DecodeHold(holdObj, o.reg); err == nil {
			result.Status = CheckinHoldCaptured
			result.Hold = &CapturedHold{ID: hold.ID, PatronID: hold.PatronID}
			return result
		}
	}

	if transitObj, ok := osrf.AsObject(payload["transit"]); ok {
		table, _ := o.reg.Lookup(classOf(transitObj, "atc"))
		if dest, ok := osrf.FieldID(transitObj, "dest", table, o.reg); ok {
			result.Status = CheckinInTransit
			result.DestOrg = dest
		}
	}
	return result
}
