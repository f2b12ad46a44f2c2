// Package circ orchestrates staff circulation workflows against the
// ILS backend: checkout, checkin, renewal, item creation, and batch
// copy maintenance.
//
// Each workflow is a sequence of dependent remote calls through the
// gateway; results come back decoded and normalized, with business
// rejections carrying enough structure for an override retry.
package circ

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/audit"
	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/ils"
	"github.com/fenwicklabs/circd/internal/osrf"
)

// Backend services and methods driven by this package.
const (
	svcCirc   = "open-ils.circ"
	svcCat    = "open-ils.cat"
	svcSearch = "open-ils.search"
	svcActor  = "open-ils.actor"
	svcPCRUD  = "open-ils.pcrud"

	methodCheckout        = "open-ils.circ.checkout.full"
	methodRenew           = "open-ils.circ.renew"
	methodCheckin         = "open-ils.circ.checkin"
	methodVolumesByLabel  = "open-ils.search.asset.call_number.retrieve_by_label"
	methodVolumeCreate    = "open-ils.cat.call_number.create"
	methodCopyCreate      = "open-ils.cat.copy.create"
	methodCopyStatusSet   = "open-ils.cat.copy.status.update"
	methodCopyLocationSet = "open-ils.cat.copy.location.update"
	methodCopyTransfer    = "open-ils.cat.transfer_copies_to_volume"
	methodCopyDelete      = "open-ils.cat.copy.delete"
	methodCopyHistory     = "open-ils.circ.copy_checkout_history.retrieve"
	methodPatronRetrieve  = "open-ils.actor.user.retrieve"

	// Generic persistence fallbacks for deployments without the
	// specialized cataloging methods.
	methodPCRUDCreateACN = "open-ils.pcrud.create.acn"
	methodPCRUDCreateACP = "open-ils.pcrud.create.acp"
	methodPCRUDUpdateACP = "open-ils.pcrud.update.acp"
	methodPCRUDDeleteACP = "open-ils.pcrud.delete.acp"

	// overrideSuffix selects the override-capable variant of a
	// circulation method.
	overrideSuffix = ".override"
)

// Validation errors surfaced before any backend contact.
var (
	ErrMissingPatronBarcode = errors.New("patron barcode is required")
	ErrMissingItemBarcode   = errors.New("item barcode is required")
	ErrMissingLabel         = errors.New("call number label is required")
	ErrMissingRecord        = errors.New("bib record id is required")
	ErrMissingOwningLib     = errors.New("owning library is required")
	ErrEmptyBatch           = errors.New("batch contains no items")
)

// Actor identifies who performed a staff action, for audit emission.
type Actor struct {
	Name      string
	IP        string
	UserAgent string
	RequestID string
}

// CopyResolver resolves item barcodes to decoded copies. The catalog
// service satisfies it; tests substitute fakes.
type CopyResolver interface {
	CopyByBarcode(ctx context.Context, barcode string) (*ils.Copy, error)
}

// Orchestrator drives circulation workflows.
type Orchestrator struct {
	gw     *gateway.Gateway
	reg    *osrf.Registry
	copies CopyResolver
	audit  audit.Sink
	logger *zap.Logger
}

// New creates a circulation orchestrator.
func New(gw *gateway.Gateway, reg *osrf.Registry, copies CopyResolver, sink audit.Sink, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		gw:     gw,
		reg:    reg,
		copies: copies,
		audit:  sink,
		logger: logger,
	}
}

// emit records one audit event for a workflow attempt.
func (o *Orchestrator) emit(ctx context.Context, actor Actor, action string, details map[string]any, err error) {
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
	o.audit.Record(ctx, ev)
}

// extractID pulls a record id out of a creation reply, which may be a
// bare id, a keyed object, or a tagged positional record.
func (o *Orchestrator) extractID(value any, class string) (int64, error) {
	if id, ok := osrf.Int64(value); ok {
		return id, nil
	}
	if obj, ok := osrf.AsObject(value); ok {
		table, _ := o.reg.Lookup(classOf(obj, class))
		if id, ok := osrf.Int64(osrf.FieldValue(obj, "id", table)); ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("reply carried no %s id", class)
}

func classOf(obj *osrf.Object, fallback string) string {
	if obj.Class != "" {
		return obj.Class
	}
	return fallback
}
