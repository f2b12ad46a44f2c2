package circ

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/ils"
	"github.com/fenwicklabs/circd/internal/logging"
	"github.com/fenwicklabs/circd/internal/osrf"
)

// CreateItemRequest describes a volume-plus-copy creation.
type CreateItemRequest struct {
	Actor     Actor
	Record    int64
	OwningLib int64
	Label     string
	Prefix    string
	Suffix    string
	Barcode   string
	CircLib   int64
	Location  int64
}

// CreateItemResult reports both steps of the transaction.
type CreateItemResult struct {
	VolumeID      int64 `json:"volumeId"`
	VolumeCreated bool  `json:"volumeCreated"`
	CopyID        int64 `json:"copyId"`
}

// ItemCreateError reports a copy-creation failure after the volume
// step already committed.
type ItemCreateError struct {
	VolumeID      int64
	VolumeCreated bool
	Err           error
}

func (e *ItemCreateError) Error() string {
	return fmt.Sprintf("copy creation failed under volume %d: %v", e.VolumeID, e.Err)
}

func (e *ItemCreateError) Unwrap() error {
	return e.Err
}

// CreateItem runs the two-step item creation transaction.
//
// Step 1 finds or creates the volume keyed by (label, bib record,
// owning org); an existing volume is reused and no create call is
// issued. Step 2 creates the copy under that volume. Each step applies
// the gateway fallback policy independently. The steps are not atomic:
// a step-2 failure leaves step 1's volume in place, and the returned
// *ItemCreateError names it so callers can reconcile.
func (o *Orchestrator) CreateItem(ctx context.Context, req CreateItemRequest) (*CreateItemResult, error) {
	details := map[string]any{
		"record":    req.Record,
		"owningLib": req.OwningLib,
		"label":     req.Label,
		"barcode":   req.Barcode,
	}

	if err := validateCreateItem(req); err != nil {
		return nil, err
	}

	volumeID, created, err := o.findOrCreateVolume(ctx, req)
	if err != nil {
		o.emit(ctx, req.Actor, "create_item", details, err)
		return nil, err
	}
	details["volumeId"] = volumeID
	details["volumeCreated"] = created

	copyID, err := o.createCopy(ctx, volumeID, req)
	if err != nil {
		wrapped := &ItemCreateError{VolumeID: volumeID, VolumeCreated: created, Err: err}
		o.emit(ctx, req.Actor, "create_item", details, wrapped)
		return nil, wrapped
	}
	details["copyId"] = copyID

	o.emit(ctx, req.Actor, "create_item", details, nil)
	return &CreateItemResult{VolumeID: volumeID, VolumeCreated: created, CopyID: copyID}, nil
}

func validateCreateItem(req CreateItemRequest) error {
	switch {
	case req.Label == "":
		return ErrMissingLabel
	case req.Record == 0:
		return ErrMissingRecord
	case req.OwningLib == 0:
		return ErrMissingOwningLib
	case req.Barcode == "":
		return ErrMissingItemBarcode
	}
	return nil
}

// findOrCreateVolume reuses an existing volume with an identical label
// on the same bib under the same owning org, creating one only when no
// match exists.
func (o *Orchestrator) findOrCreateVolume(ctx context.Context, req CreateItemRequest) (int64, bool, error) {
	value, err := o.gw.Invoke(ctx, svcSearch, methodVolumesByLabel, req.Record, req.OwningLib, req.Label)
	if err == nil {
		if existing, ok := o.matchVolume(value, req); ok {
			o.logger.With(logging.ContextFields(ctx)...).Debug("reusing existing volume",
				zap.Int64("volume", existing),
				zap.String("label", req.Label))
			return existing, false, nil
		}
	}
	// A lookup failure falls through to creation: the backend enforces
	// label uniqueness and will reject a true duplicate.

	op := gateway.Operation{
		Name:    "volume.create",
		Primary: gateway.Strategy{Name: "specialized", Service: svcCat, Method: methodVolumeCreate},
		Fallback: &gateway.Strategy{
			Name:    "generic",
			Service: svcPCRUD,
			Method:  methodPCRUDCreateACN,
			Params: func(args []any) []any {
				// record, owning_lib, label -> one positional acn record.
				return []any{map[string]any{
					"__c": "acn",
					"__p": []any{nil, nil, nil, args[0], args[2], args[1], req.Prefix, req.Suffix, "f"},
				}}
			},
		},
	}
	value, err = o.gw.Run(ctx, op, req.Record, req.OwningLib, req.Label)
	if err != nil {
		return 0, false, fmt.Errorf("creating volume %q: %w", req.Label, err)
	}
	id, err := o.extractID(value, "acn")
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// matchVolume scans a volume search reply for an exact label match.
func (o *Orchestrator) matchVolume(value any, req CreateItemRequest) (int64, bool) {
	list, ok := value.([]any)
	if !ok {
		// Some backend versions return a single record instead of a list.
		list = []any{value}
	}
	for _, raw := range list {
		obj, ok := osrf.AsObject(raw)
		if !ok {
			continue
		}
		vol, err := ils.DecodeVolume(obj, o.reg)
		if err != nil {
			continue
		}
		if vol.Deleted != nil && *vol.Deleted {
			continue
		}
		if vol.Label == req.Label && vol.Record == req.Record && vol.OwningLib == req.OwningLib {
			return vol.ID, true
		}
	}
	return 0, false
}

func (o *Orchestrator) createCopy(ctx context.Context, volumeID int64, req CreateItemRequest) (int64, error) {
	op := gateway.Operation{
		Name:    "copy.create",
		Primary: gateway.Strategy{Name: "specialized", Service: svcCat, Method: methodCopyCreate},
		Fallback: &gateway.Strategy{
			Name:    "generic",
			Service: svcPCRUD,
			Method:  methodPCRUDCreateACP,
			Params: func(args []any) []any {
				// volume, barcode, location, circ_lib -> positional acp.
				slots := make([]any, 18)
				slots[1] = args[1] // barcode
				slots[2] = args[0] // call_number
				slots[3] = args[3] // circ_lib
				slots[9] = args[2] // location
				return []any{map[string]any{"__c": "acp", "__p": slots}}
			},
		},
	}
	value, err := o.gw.Run(ctx, op, volumeID, req.Barcode, req.Location, req.CircLib)
	if err != nil {
		return 0, err
	}
	return o.extractID(value, "acp")
}
