// Package holds drives the hold lifecycle against the ILS backend:
// placement, freeze and thaw, pickup changes, cancellation, and shelf
// clearing.
//
// A hold moves from queued through capture onto the pickup shelf, and
// ends fulfilled, expired, or cancelled. Cancellation is terminal;
// every mutation here checks the retrieved hold state before touching
// the backend so terminal holds are never modified.
package holds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/audit"
	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/ils"
	"github.com/fenwicklabs/circd/internal/logging"
	"github.com/fenwicklabs/circd/internal/osrf"
)

// Backend services and methods driven by this package.
const (
	svcCirc = "open-ils.circ"

	methodHoldCreate     = "open-ils.circ.holds.create"
	methodHoldRetrieve   = "open-ils.circ.hold.retrieve"
	methodHoldUpdate     = "open-ils.circ.hold.update"
	methodHoldCancel     = "open-ils.circ.hold.cancel"
	methodClearShelf     = "open-ils.circ.hold.clear_shelf.process"
	methodShelfExpired   = "open-ils.circ.captured_holds.expired_on_shelf.retrieve"
	methodPCRUDUpdateAHR = "open-ils.pcrud.update.ahr"
)

// clearShelfTimeout bounds the detached bulk request; the backend
// processes the shelf on its own schedule after accepting it.
const clearShelfTimeout = 5 * time.Minute

// CancelReason enumerates why a hold was cancelled. Cancellation is
// terminal regardless of reason.
type CancelReason string

const (
	CancelPatronRequest CancelReason = "patron-request"
	CancelStaff         CancelReason = "staff-cancel"
	CancelItemNotFound  CancelReason = "item-not-found"
	CancelTargetDeleted CancelReason = "target-deleted"
	CancelItemDamaged   CancelReason = "item-damaged"
)

// cancelCauses maps each reason to the backend cancellation cause id.
var cancelCauses = map[CancelReason]int64{
	CancelPatronRequest: 1,
	CancelStaff:         2,
	CancelItemNotFound:  3,
	CancelTargetDeleted: 4,
	CancelItemDamaged:   5,
}

// Validation and state errors surfaced before any backend mutation.
var (
	ErrMissingPatron    = errors.New("patron id is required")
	ErrMissingTarget    = errors.New("hold target id is required")
	ErrMissingPickupLib = errors.New("pickup library is required")
	ErrInvalidHoldType  = errors.New("hold type must be title, volume, or copy")
	ErrInvalidReason    = errors.New("unknown cancellation reason")
	ErrHoldNotFound     = errors.New("hold not found")
	ErrHoldCancelled    = errors.New("hold is cancelled")
	ErrHoldFulfilled    = errors.New("hold is fulfilled")
	ErrAlreadyCaptured  = errors.New("hold is already captured")
	ErrThawDateInPast   = errors.New("thaw date is in the past")
)

// Actor identifies who performed a staff action, for audit emission.
type Actor struct {
	Name      string
	IP        string
	UserAgent string
	RequestID string
}

// Manager drives hold lifecycle workflows.
type Manager struct {
	gw     *gateway.Gateway
	reg    *osrf.Registry
	audit  audit.Sink
	logger *zap.Logger
	now    func() time.Time
}

// New creates a holds manager.
func New(gw *gateway.Gateway, reg *osrf.Registry, sink audit.Sink, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		gw:     gw,
		reg:    reg,
		audit:  sink,
		logger: logger,
		now:    time.Now,
	}
}

// PlaceRequest describes a new hold.
type PlaceRequest struct {
	Actor     Actor
	PatronID  int64
	Type      string
	Target    int64
	PickupLib int64
	Frozen    bool
	ThawDate  *time.Time
}

// Place queues a new hold and returns its id.
func (m *Manager) Place(ctx context.Context, req PlaceRequest) (int64, error) {
	details := map[string]any{
		"patron":    req.PatronID,
		"holdType":  req.Type,
		"target":    req.Target,
		"pickupLib": req.PickupLib,
	}

	if err := validatePlace(req); err != nil {
		return 0, err
	}

	args := map[string]any{
		"patronid":   req.PatronID,
		"hold_type":  req.Type,
		"target":     req.Target,
		"pickup_lib": req.PickupLib,
	}
	if req.Frozen {
		args["frozen"] = "t"
		if req.ThawDate != nil {
			args["thaw_date"] = req.ThawDate.Format(time.RFC3339)
		}
	}

	value, err := m.gw.Invoke(ctx, svcCirc, methodHoldCreate, args)
	if err != nil {
		m.emit(ctx, req.Actor, "place_hold", details, err)
		return 0, err
	}

	id, ok := osrf.Int64(value)
	if !ok {
		err = fmt.Errorf("hold creation reply carried no hold id")
		m.emit(ctx, req.Actor, "place_hold", details, err)
		return 0, err
	}
	details["holdId"] = id
	m.emit(ctx, req.Actor, "place_hold", details, nil)
	return id, nil
}

func validatePlace(req PlaceRequest) error {
	switch {
	case req.PatronID == 0:
		return ErrMissingPatron
	case req.Target == 0:
		return ErrMissingTarget
	case req.PickupLib == 0:
		return ErrMissingPickupLib
	}
	switch req.Type {
	case ils.HoldTypeTitle, ils.HoldTypeVolume, ils.HoldTypeCopy:
		return nil
	default:
		return ErrInvalidHoldType
	}
}

// Cancel terminates a hold with an enumerated reason. A cancelled hold
// never returns to the queue.
func (m *Manager) Cancel(ctx context.Context, actor Actor, holdID int64, reason CancelReason, note string) error {
	details := map[string]any{"holdId": holdID, "reason": string(reason)}

	cause, ok := cancelCauses[reason]
	if !ok {
		return ErrInvalidReason
	}

	hold, err := m.retrieve(ctx, holdID)
	if err != nil {
		m.emit(ctx, actor, "cancel_hold", details, err)
		return err
	}
	if hold.CancelTime != nil {
		// Already terminal; repeating the cancellation is a no-op.
		return nil
	}
	if hold.FulfillmentTime != nil {
		return ErrHoldFulfilled
	}

	_, err = m.gw.Invoke(ctx, svcCirc, methodHoldCancel, holdID, cause, note)
	m.emit(ctx, actor, "cancel_hold", details, err)
	return err
}

// Freeze suspends a queued hold. A nil thaw date freezes indefinitely;
// a dated freeze reactivates automatically on the backend side.
//
// A captured hold is already on its way to the shelf and cannot be
// frozen.
func (m *Manager) Freeze(ctx context.Context, actor Actor, holdID int64, thawDate *time.Time) error {
	details := map[string]any{"holdId": holdID}
	if thawDate != nil {
		details["thawDate"] = thawDate.Format(time.RFC3339)
		if thawDate.Before(m.now()) {
			return ErrThawDateInPast
		}
	}

	err := m.mutate(ctx, holdID, func(h *ils.Hold) (map[string]any, error) {
		if h.CaptureTime != nil {
			return nil, ErrAlreadyCaptured
		}
		fields := map[string]any{"frozen": "t"}
		if thawDate != nil {
			fields["thaw_date"] = thawDate.Format(time.RFC3339)
		} else {
			fields["thaw_date"] = nil
		}
		return fields, nil
	})
	m.emit(ctx, actor, "freeze_hold", details, err)
	return err
}

// Thaw reactivates a frozen hold: the frozen flag drops and any thaw
// date clears. Nothing else on the hold changes.
func (m *Manager) Thaw(ctx context.Context, actor Actor, holdID int64) error {
	details := map[string]any{"holdId": holdID}

	err := m.mutate(ctx, holdID, func(h *ils.Hold) (map[string]any, error) {
		return map[string]any{"frozen": "f", "thaw_date": nil}, nil
	})
	m.emit(ctx, actor, "thaw_hold", details, err)
	return err
}

// ChangePickup redirects a hold to a different pickup library.
func (m *Manager) ChangePickup(ctx context.Context, actor Actor, holdID, pickupLib int64) error {
	details := map[string]any{"holdId": holdID, "pickupLib": pickupLib}
	if pickupLib == 0 {
		return ErrMissingPickupLib
	}

	err := m.mutate(ctx, holdID, func(h *ils.Hold) (map[string]any, error) {
		return map[string]any{"pickup_lib": pickupLib}, nil
	})
	m.emit(ctx, actor, "change_pickup_lib", details, err)
	return err
}

// Retrieve returns the decoded hold.
func (m *Manager) Retrieve(ctx context.Context, holdID int64) (*ils.Hold, error) {
	return m.retrieve(ctx, holdID)
}

// ClearShelf asks the backend to process an org's expired pickup
// shelf. The request is detached: this returns as soon as the work is
// handed off, and the shelf is not guaranteed clear at that point.
// Callers observe completion by polling ShelfExpired.
func (m *Manager) ClearShelf(ctx context.Context, actor Actor, orgID int64) {
	details := map[string]any{"orgId": orgID}

	// The parent request finishes before the backend does; detach from
	// its cancellation but keep an upper bound.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearShelfTimeout)
	go func() {
		defer cancel()
		_, err := m.gw.Invoke(bg, svcCirc, methodClearShelf, orgID)
		if err != nil {
			m.logger.With(logging.ContextFields(bg)...).Warn("clear-shelf request failed",
				zap.Int64("org", orgID),
				zap.Error(err))
		}
		m.emit(bg, actor, "clear_shelf", details, err)
	}()
}

// ShelfExpired lists holds sitting expired on an org's pickup shelf.
// An empty list after a ClearShelf hand-off means the sweep finished.
func (m *Manager) ShelfExpired(ctx context.Context, orgID int64) ([]*ils.Hold, error) {
	value, err := m.gw.Invoke(ctx, svcCirc, methodShelfExpired, orgID)
	if err != nil {
		return nil, err
	}

	list, ok := value.([]any)
	if !ok {
		if value == nil {
			return nil, nil
		}
		list = []any{value}
	}
	holds := make([]*ils.Hold, 0, len(list))
	for _, raw := range list {
		obj, ok := osrf.AsObject(raw)
		if !ok {
			continue
		}
		h, err := ils.DecodeHold(obj, m.reg)
		if err != nil {
			m.logger.Warn("skipping undecodable shelf hold", zap.Error(err))
			continue
		}
		holds = append(holds, h)
	}
	return holds, nil
}

// retrieve fetches and decodes one hold, checking existence.
func (m *Manager) retrieve(ctx context.Context, holdID int64) (*ils.Hold, error) {
	value, err := m.gw.Invoke(ctx, svcCirc, methodHoldRetrieve, holdID)
	if err != nil {
		return nil, err
	}
	obj, ok := osrf.AsObject(value)
	if !ok {
		return nil, ErrHoldNotFound
	}
	return ils.DecodeHold(obj, m.reg)
}

// mutate retrieves the hold, rejects terminal states, asks patch for
// the field changes, and writes them back. Only the patched fields
// move; the update method leaves the rest of the record alone.
func (m *Manager) mutate(ctx context.Context, holdID int64, patch func(*ils.Hold) (map[string]any, error)) error {
	hold, err := m.retrieve(ctx, holdID)
	if err != nil {
		return err
	}
	if hold.CancelTime != nil {
		return ErrHoldCancelled
	}
	if hold.FulfillmentTime != nil {
		return ErrHoldFulfilled
	}

	fields, err := patch(hold)
	if err != nil {
		return err
	}
	fields["id"] = holdID

	op := gateway.Operation{
		Name:    "hold.update",
		Primary: gateway.Strategy{Name: "specialized", Service: svcCirc, Method: methodHoldUpdate},
		Fallback: &gateway.Strategy{
			Name:    "generic",
			Service: "open-ils.pcrud",
			Method:  methodPCRUDUpdateAHR,
		},
	}
	_, err = m.gw.Run(ctx, op, fields)
	return err
}

// emit records one audit event for a workflow attempt.
func (m *Manager) emit(ctx context.Context, actor Actor, action string, details map[string]any, err error) {
	ev := audit.Event{
		Action:    action,
		Actor:     actor.Name,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		RequestID: actor.RequestID,
		Status:    audit.StatusSuccess,
		Details:   details,
	}
	if err != nil {
		ev.Status = audit.StatusFailure
		ev.Error = err.Error()
	}
	m.audit.Record(ctx, ev)
}
