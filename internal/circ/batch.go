package circ

import (
	"context"

	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/ils"
)

// BatchRequest carries a bulk copy-maintenance action.
type BatchRequest struct {
	Actor    Actor
	Barcodes []string

	// Exactly one of these is meaningful, selected by the action.
	StatusID   int64
	LocationID int64
	VolumeID   int64
}

// BatchRow is the per-item outcome, in submission order.
type BatchRow struct {
	Barcode string `json:"barcode"`
	CopyID  int64  `json:"copyId,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BatchResult aggregates per-item outcomes. A nonzero FailCount is not
// an aggregate failure: items after a failed one are still attempted.
type BatchResult struct {
	Results   []BatchRow `json:"results"`
	FailCount int        `json:"failCount"`
}

// UpdateStatus sets the status of each item in the batch.
func (o *Orchestrator) UpdateStatus(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	return o.runBatch(ctx, "update_status", req, func(ctx context.Context, c *ils.Copy) error {
		op := gateway.Operation{
			Name:     "copy.status.update",
			Primary:  gateway.Strategy{Service: svcCat, Method: methodCopyStatusSet},
			Fallback: &gateway.Strategy{Service: svcPCRUD, Method: methodPCRUDUpdateACP, Params: acpFieldPatch(c.ID, "status", req.StatusID)},
		}
		_, err := o.gw.Run(ctx, op, c.ID, req.StatusID)
		return err
	})
}

// UpdateLocation sets the shelving location of each item in the batch.
func (o *Orchestrator) UpdateLocation(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	return o.runBatch(ctx, "update_location", req, func(ctx context.Context, c *ils.Copy) error {
		op := gateway.Operation{
			Name:     "copy.location.update",
			Primary:  gateway.Strategy{Service: svcCat, Method: methodCopyLocationSet},
			Fallback: &gateway.Strategy{Service: svcPCRUD, Method: methodPCRUDUpdateACP, Params: acpFieldPatch(c.ID, "location", req.LocationID)},
		}
		_, err := o.gw.Run(ctx, op, c.ID, req.LocationID)
		return err
	})
}

// Transfer moves each item in the batch to another volume.
func (o *Orchestrator) Transfer(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	return o.runBatch(ctx, "transfer", req, func(ctx context.Context, c *ils.Copy) error {
		_, err := o.gw.Invoke(ctx, svcCat, methodCopyTransfer, req.VolumeID, []any{c.ID})
		return err
	})
}

// Delete marks each item in the batch deleted.
func (o *Orchestrator) Delete(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	return o.runBatch(ctx, "delete", req, func(ctx context.Context, c *ils.Copy) error {
		op := gateway.Operation{
			Name:     "copy.delete",
			Primary:  gateway.Strategy{Service: svcCat, Method: methodCopyDelete},
			Fallback: &gateway.Strategy{Service: svcPCRUD, Method: methodPCRUDDeleteACP},
		}
		_, err := o.gw.Run(ctx, op, c.ID)
		return err
	})
}

// runBatch processes items strictly sequentially so per-item audit
// records preserve submission order, and a failure on one item never
// prevents the rest from being attempted.
func (o *Orchestrator) runBatch(ctx context.Context, action string, req BatchRequest, apply func(context.Context, *ils.Copy) error) (*BatchResult, error) {
	if len(req.Barcodes) == 0 {
		return nil, ErrEmptyBatch
	}

	result := &BatchResult{Results: make([]BatchRow, 0, len(req.Barcodes))}
	for _, barcode := range req.Barcodes {
		row := BatchRow{Barcode: barcode}
		details := map[string]any{"barcode": barcode}

		copyRec, err := o.copies.CopyByBarcode(ctx, barcode)
		if err == nil {
			row.CopyID = copyRec.ID
			details["copyId"] = copyRec.ID
			err = apply(ctx, copyRec)
		}

		if err != nil {
			row.Error = err.Error()
			result.FailCount++
		} else {
			row.Success = true
		}
		o.emit(ctx, req.Actor, action, details, err)
		result.Results = append(result.Results, row)
	}
	return result, nil
}

// acpFieldPatch builds the generic-persistence payload for a partial
// copy update.
func acpFieldPatch(copyID int64, field string, value int64) func([]any) []any {
	return func([]any) []any {
		return []any{map[string]any{"id": copyID, field: value}}
	}
}
