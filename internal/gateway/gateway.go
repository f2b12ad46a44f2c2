// Package gateway issues remote calls against the ILS backend and
// classifies their results.
//
// Every reply passes through the same pipeline: unwrap the envelope,
// check for a backend event, and hand a clean payload (or a typed
// error) to the orchestrators. Operations with two equivalent backend
// entry points are modeled as a primary strategy plus an optional
// fallback tried at most once.
package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/osrf"
)

// Gateway classifies backend replies and drives method fallback.
type Gateway struct {
	transport Transport
	logger    *zap.Logger
	metrics   *Metrics
}

// New creates a gateway over the given transport.
func New(transport Transport, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		transport: transport,
		logger:    logger,
		metrics:   newMetrics(logger),
	}
}

// Invoke issues one call and classifies the result.
//
// A reply carrying an event with code zero (or no event at all) is
// success and yields the payload value. A nonzero event with a text
// code becomes a *DomainError. Transport failures come back wrapped in
// *TransportError unless they are method resolution failures, which
// surface as ErrMethodNotFound for the fallback chain.
func (g *Gateway) Invoke(ctx context.Context, service, method string, params ...any) (any, error) {
	g.metrics.recordCall(ctx, service, method)

	raw, err := g.transport.Invoke(ctx, service, method, params)
	if err != nil {
		if errors.Is(err, ErrMethodNotFound) {
			g.metrics.recordFailure(ctx, service, method, "method_not_found")
			return nil, err
		}
		g.metrics.recordFailure(ctx, service, method, "transport")
		return nil, &TransportError{Service: service, Method: method, Err: err}
	}

	value, err := osrf.Unwrap(raw)
	if err != nil {
		g.metrics.recordFailure(ctx, service, method, "transport")
		return nil, &TransportError{Service: service, Method: method, Err: err}
	}

	if ev, ok := osrf.ParseEvent(value); ok {
		if ev.Success() {
			// Success events wrap their data in the event payload.
			if ev.Payload != nil {
				return ev.Payload, nil
			}
			return value, nil
		}
		if _, unsupported := unsupportedCodes[ev.TextCode]; unsupported {
			g.metrics.recordFailure(ctx, service, method, "method_not_found")
		} else {
			g.metrics.recordFailure(ctx, service, method, "domain")
		}
		return nil, &DomainError{
			Code:      ev.TextCode,
			Desc:      ev.Desc,
			EventCode: ev.Code,
			Payload:   ev.Payload,
		}
	}
	return value, nil
}

// Strategy is one named backend entry point for an operation.
//
// Params, when set, reshapes the operation arguments into the layout
// the method expects; the generic persistence methods take a fully
// positional payload that differs from the specialized variants.
type Strategy struct {
	Name    string
	Service string
	Method  string
	Params  func(args []any) []any
}

// Operation is an ordered list of equivalent backend entry points,
// exposed to callers as a single composed call.
//
// FallbackWhen decides whether a primary failure makes the fallback
// applicable; when nil, only method resolution failures qualify. The
// fallback is attempted at most once.
type Operation struct {
	Name         string
	Primary      Strategy
	Fallback     *Strategy
	FallbackWhen func(err error) bool
}

// Run executes the operation, applying the fallback policy.
func (g *Gateway) Run(ctx context.Context, op Operation, args ...any) (any, error) {
	value, err := g.invokeStrategy(ctx, op.Primary, args)
	if err == nil || op.Fallback == nil {
		return value, err
	}

	applicable := op.FallbackWhen
	if applicable == nil {
		applicable = isUnsupported
	}
	if !applicable(err) {
		return nil, err
	}

	g.logger.Warn("primary method unavailable, retrying with fallback",
		zap.String("operation", op.Name),
		zap.String("primary", op.Primary.Method),
		zap.String("fallback", op.Fallback.Method),
		zap.Error(err))
	g.metrics.recordFallback(ctx, op.Name)

	return g.invokeStrategy(ctx, *op.Fallback, args)
}

func (g *Gateway) invokeStrategy(ctx context.Context, s Strategy, args []any) (any, error) {
	params := args
	if s.Params != nil {
		params = s.Params(args)
	}
	return g.Invoke(ctx, s.Service, s.Method, params...)
}
