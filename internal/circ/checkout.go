package circ

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/ils"
	"github.com/fenwicklabs/circd/internal/logging"
	"github.com/fenwicklabs/circd/internal/osrf"
)

// CheckoutRequest describes a checkout or renewal attempt.
type CheckoutRequest struct {
	Actor         Actor
	PatronBarcode string
	ItemBarcode   string
	Override      bool
}

// CheckoutResult is a completed checkout or renewal.
type CheckoutResult struct {
	Circ       *ils.Circulation `json:"circ"`
	Overridden bool             `json:"overridden,omitempty"`
}

// Checkout checks an item out to a patron.
//
// On a business rejection the returned error is a *Failure carrying
// the code and override contract. When the request carries the
// override flag and the code is eligible, the override-capable method
// variant is retried exactly once before the failure surfaces.
func (o *Orchestrator) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	return o.circulate(ctx, "checkout", methodCheckout, req)
}

// Renew renews an existing circulation.
func (o *Orchestrator) Renew(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	return o.circulate(ctx, "renew", methodRenew, req)
}

func (o *Orchestrator) circulate(ctx context.Context, action, method string, req CheckoutRequest) (*CheckoutResult, error) {
	details := map[string]any{
		"patronBarcode": req.PatronBarcode,
		"itemBarcode":   req.ItemBarcode,
		"override":      req.Override,
	}

	if req.PatronBarcode == "" {
		return nil, ErrMissingPatronBarcode
	}
	if req.ItemBarcode == "" {
		return nil, ErrMissingItemBarcode
	}

	args := map[string]any{
		"patron_barcode": req.PatronBarcode,
		"copy_barcode":   req.ItemBarcode,
	}

	value, err := o.gw.Invoke(ctx, svcCirc, method, args)
	overridden := false

	var de *gateway.DomainError
	if err != nil && errors.As(err, &de) && req.Override && OverrideEligible(de.Code) {
		// One privileged retry; cascading retries are the caller's
		// decision, never the orchestrator's.
		o.logger.With(logging.ContextFields(ctx)...).Info("retrying with override",
			zap.String("action", action),
			zap.String("code", de.Code),
			zap.String("item", req.ItemBarcode))
		value, err = o.gw.Invoke(ctx, svcCirc, method+overrideSuffix, args)
		overridden = err == nil
	}

	if err != nil {
		out := o.classifyCircFailure(err)
		o.emit(ctx, req.Actor, action, details, out)
		return nil, out
	}

	result := &CheckoutResult{Overridden: overridden}
	if payload, ok := value.(map[string]any); ok {
		if circObj, ok := osrf.AsObject(payload["circ"]); ok {
			if circ, decodeErr := ils.DecodeCirculation(circObj, o.reg); decodeErr == nil {
				result.Circ = circ
				details["circId"] = circ.ID
			}
		}
	}

	o.emit(ctx, req.Actor, action, details, nil)
	return result, nil
}

// classifyCircFailure converts gateway errors into caller-facing ones.
func (o *Orchestrator) classifyCircFailure(err error) error {
	var de *gateway.DomainError
	if errors.As(err, &de) {
		return newFailure(de.Code, de.Desc)
	}
	return err
}
