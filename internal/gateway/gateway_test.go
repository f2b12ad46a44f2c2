package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTransport replays canned replies keyed by method name and records
// every invocation.
type fakeTransport struct {
	replies map[string]any
	errs    map[string]error
	calls   []string
}

func (f *fakeTransport) Invoke(_ context.Context, _, method string, _ []any) (any, error) {
	f.calls = append(f.calls, method)
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	reply, ok := f.replies[method]
	if !ok {
		return nil, fmt.Errorf("no canned reply for %s: %w", method, ErrMethodNotFound)
	}
	return reply, nil
}

func envelope(first any) any {
	return map[string]any{"payload": []any{first}, "status": float64(200)}
}

func TestInvoke_SuccessEventCodeZero(t *testing.T) {
	ft := &fakeTransport{replies: map[string]any{
		"open-ils.circ.checkout.full": envelope(map[string]any{
			"ilsevent": float64(0),
			"textcode": "SUCCESS",
			"payload":  map[string]any{"circ": map[string]any{"id": float64(9)}},
		}),
	}}
	g := New(ft, zap.NewNop())

	value, err := g.Invoke(context.Background(), "open-ils.circ", "open-ils.circ.checkout.full")
	require.NoError(t, err)
	assert.NotNil(t, value)
}

func TestInvoke_PlainPayloadWithoutEvent(t *testing.T) {
	ft := &fakeTransport{replies: map[string]any{
		"open-ils.search.asset.copy.retrieve": envelope(map[string]any{"id": float64(4)}),
	}}
	g := New(ft, zap.NewNop())

	value, err := g.Invoke(context.Background(), "open-ils.search", "open-ils.search.asset.copy.retrieve")
	require.NoError(t, err)
	m := value.(map[string]any)
	assert.Equal(t, float64(4), m["id"])
}

func TestInvoke_DomainError(t *testing.T) {
	ft := &fakeTransport{replies: map[string]any{
		"open-ils.circ.checkout.full": envelope(map[string]any{
			"ilsevent": float64(7014),
			"textcode": "OPEN_CIRCULATION_EXISTS",
			"desc":     "open circulation exists",
		}),
	}}
	g := New(ft, zap.NewNop())

	_, err := g.Invoke(context.Background(), "open-ils.circ", "open-ils.circ.checkout.full")
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "OPEN_CIRCULATION_EXISTS", de.Code)
	assert.Equal(t, int64(7014), de.EventCode)
}

func TestInvoke_TransportError(t *testing.T) {
	ft := &fakeTransport{errs: map[string]error{
		"open-ils.circ.checkin": errors.New("connection refused"),
	}}
	g := New(ft, zap.NewNop())

	_, err := g.Invoke(context.Background(), "open-ils.circ", "open-ils.circ.checkin")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "open-ils.circ.checkin", te.Method)
}

func TestRun_FallbackOnMethodNotFound(t *testing.T) {
	ft := &fakeTransport{replies: map[string]any{
		"open-ils.pcrud.create.acn": envelope(map[string]any{"id": float64(12)}),
	}}
	g := New(ft, zap.NewNop())

	op := Operation{
		Name:    "volume.create",
		Primary: Strategy{Name: "specialized", Service: "open-ils.cat", Method: "open-ils.cat.call_number.create"},
		Fallback: &Strategy{
			Name: "generic", Service: "open-ils.pcrud", Method: "open-ils.pcrud.create.acn",
		},
	}

	value, err := g.Run(context.Background(), op)
	require.NoError(t, err)
	m := value.(map[string]any)
	assert.Equal(t, float64(12), m["id"])
	assert.Equal(t, []string{"open-ils.cat.call_number.create", "open-ils.pcrud.create.acn"}, ft.calls)
}

func TestRun_FallbackOnUnsupportedDomainCode(t *testing.T) {
	ft := &fakeTransport{replies: map[string]any{
		"open-ils.cat.call_number.create": envelope(map[string]any{
			"ilsevent": float64(5000),
			"textcode": "UNSUPPORTED_REQUEST",
		}),
		"open-ils.pcrud.create.acn": envelope(map[string]any{"id": float64(3)}),
	}}
	g := New(ft, zap.NewNop())

	op := Operation{
		Name:     "volume.create",
		Primary:  Strategy{Service: "open-ils.cat", Method: "open-ils.cat.call_number.create"},
		Fallback: &Strategy{Service: "open-ils.pcrud", Method: "open-ils.pcrud.create.acn"},
	}

	_, err := g.Run(context.Background(), op)
	require.NoError(t, err)
	assert.Len(t, ft.calls, 2)
}

func TestRun_NoFallbackOnGenuineDomainError(t *testing.T) {
	ft := &fakeTransport{replies: map[string]any{
		"open-ils.circ.checkout.full": envelope(map[string]any{
			"ilsevent": float64(7014),
			"textcode": "OPEN_CIRCULATION_EXISTS",
		}),
	}}
	g := New(ft, zap.NewNop())

	op := Operation{
		Name:     "checkout",
		Primary:  Strategy{Service: "open-ils.circ", Method: "open-ils.circ.checkout.full"},
		Fallback: &Strategy{Service: "open-ils.pcrud", Method: "open-ils.pcrud.create.circ"},
	}

	_, err := g.Run(context.Background(), op)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{"open-ils.circ.checkout.full"}, ft.calls, "fallback must not fire on a business rejection")
}

func TestRun_FallbackAttemptedAtMostOnce(t *testing.T) {
	// Both the primary and the fallback are missing: the failure must
	// surface after exactly two attempts, never loop.
	ft := &fakeTransport{}
	g := New(ft, zap.NewNop())

	op := Operation{
		Name:     "volume.create",
		Primary:  Strategy{Service: "open-ils.cat", Method: "open-ils.cat.call_number.create"},
		Fallback: &Strategy{Service: "open-ils.pcrud", Method: "open-ils.pcrud.create.acn"},
	}

	_, err := g.Run(context.Background(), op)
	require.Error(t, err)
	assert.Len(t, ft.calls, 2)
}

func TestRun_ParamsReshapedForFallback(t *testing.T) {
	var got []any
	ft := &fakeTransport{replies: map[string]any{
		"open-ils.pcrud.create.acp": envelope(map[string]any{"id": float64(1)}),
	}}
	g := New(&captureTransport{inner: ft, params: &got}, zap.NewNop())

	op := Operation{
		Name:    "copy.create",
		Primary: Strategy{Service: "open-ils.cat", Method: "open-ils.cat.copy.create"},
		Fallback: &Strategy{
			Service: "open-ils.pcrud",
			Method:  "open-ils.pcrud.create.acp",
			Params: func(args []any) []any {
				// Generic persistence wants one fully positional record.
				return []any{map[string]any{"__c": "acp", "__p": args}}
			},
		},
	}

	_, err := g.Run(context.Background(), op, "token", float64(12), "B100")
	require.NoError(t, err)
	require.Len(t, got, 1)
	rec := got[0].(map[string]any)
	assert.Equal(t, "acp", rec["__c"])
}

type captureTransport struct {
	inner  Transport
	params *[]any
}

func (c *captureTransport) Invoke(ctx context.Context, service, method string, params []any) (any, error) {
	*c.params = params
	return c.inner.Invoke(ctx, service, method, params)
}
