package holds

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/audit"
	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/ils"
	"github.com/fenwicklabs/circd/internal/osrf"
)

// holdBackend is a stateful fake: holds live in a map of keyed field
// maps, retrieve and update mutate them, and every call is logged.
type holdBackend struct {
	mu      sync.Mutex
	holds   map[int64]map[string]any
	nextID  int64
	calls   []string
	cleared chan int64
	expired []map[string]any
}

func newHoldBackend() *holdBackend {
	return &holdBackend{
		holds:   make(map[int64]map[string]any),
		nextID:  100,
		cleared: make(chan int64, 1),
	}
}

func (b *holdBackend) seed(fields map[string]any) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	fields["id"] = float64(id)
	b.holds[id] = fields
	return id
}

func (b *holdBackend) get(id int64) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := make(map[string]any, len(b.holds[id]))
	for k, v := range b.holds[id] {
		copied[k] = v
	}
	return copied
}

func (b *holdBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *holdBackend) Invoke(_ context.Context, _, method string, params []any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, method)

	switch method {
	case methodHoldCreate:
		b.nextID++
		return envelope(float64(b.nextID)), nil

	case methodHoldRetrieve:
		id := asID(params[0])
		h, ok := b.holds[id]
		if !ok {
			return envelope(map[string]any{
				"ilsevent": float64(1915),
				"textcode": "ACTION_HOLD_REQUEST_NOT_FOUND",
				"desc":     "no such hold",
			}), nil
		}
		return envelope(h), nil

	case methodHoldUpdate:
		fields, _ := params[0].(map[string]any)
		id := asID(fields["id"])
		h, ok := b.holds[id]
		if !ok {
			return nil, fmt.Errorf("update of unknown hold %d", id)
		}
		for k, v := range fields {
			if k == "id" {
				continue
			}
			if v == nil {
				delete(h, k)
				continue
			}
			h[k] = v
		}
		return envelope(float64(id)), nil

	case methodHoldCancel:
		id := asID(params[0])
		h := b.holds[id]
		h["cancel_time"] = time.Now().UTC().Format(time.RFC3339)
		h["cancel_cause"] = params[1]
		return envelope(float64(1)), nil

	case methodClearShelf:
		select {
		case b.cleared <- asID(params[0]):
		default:
		}
		return envelope(float64(1)), nil

	case methodShelfExpired:
		list := make([]any, 0, len(b.expired))
		for _, h := range b.expired {
			list = append(list, h)
		}
		return envelope(list), nil
	}
	return nil, fmt.Errorf("unexpected method %s: %w", method, gateway.ErrMethodNotFound)
}

func asID(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func envelope(first any) any {
	return map[string]any{"payload": []any{first}, "status": float64(200)}
}

type dropSink struct{}

func (dropSink) Record(context.Context, audit.Event) {}

func newTestManager(t *testing.T, b *holdBackend) *Manager {
	t.Helper()
	gw := gateway.New(b, zap.NewNop())
	return New(gw, osrf.DefaultRegistry(), dropSink{}, zap.NewNop())
}

func TestPlace_Validation(t *testing.T) {
	b := newHoldBackend()
	m := newTestManager(t, b)
	ctx := context.Background()

	_, err := m.Place(ctx, PlaceRequest{Type: "T", Target: 55, PickupLib: 3})
	assert.ErrorIs(t, err, ErrMissingPatron)

	_, err = m.Place(ctx, PlaceRequest{PatronID: 42, Type: "X", Target: 55, PickupLib: 3})
	assert.ErrorIs(t, err, ErrInvalidHoldType)

	assert.Empty(t, b.callLog(), "validation failures must not reach the backend")
}

func TestPlace_ReturnsHoldID(t *testing.T) {
	b := newHoldBackend()
	m := newTestManager(t, b)

	id, err := m.Place(context.Background(), PlaceRequest{
		PatronID: 42, Type: ils.HoldTypeTitle, Target: 55, PickupLib: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)
}

func TestFreezeThenThaw_RestoresStateExactly(t *testing.T) {
	b := newHoldBackend()
	id := b.seed(map[string]any{
		"hold_type": "T", "target": float64(55), "usr": float64(42),
		"pickup_lib": float64(3), "request_time": "2026-08-01T09:00:00Z",
	})
	before := b.get(id)
	m := newTestManager(t, b)
	ctx := context.Background()

	thaw := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Freeze(ctx, Actor{}, id, &thaw))

	frozen := b.get(id)
	assert.Equal(t, "t", frozen["frozen"])
	assert.Equal(t, "2026-12-01T00:00:00Z", frozen["thaw_date"])

	require.NoError(t, m.Thaw(ctx, Actor{}, id))

	after := b.get(id)
	assert.Equal(t, "f", after["frozen"])
	assert.NotContains(t, after, "thaw_date")

	// Nothing else moved across the round trip.
	for k, v := range before {
		if k == "frozen" || k == "thaw_date" {
			continue
		}
		assert.Equal(t, v, after[k], k)
	}
}

func TestFreeze_IndefiniteWithoutThawDate(t *testing.T) {
	b := newHoldBackend()
	id := b.seed(map[string]any{"hold_type": "T", "target": float64(55)})
	m := newTestManager(t, b)

	require.NoError(t, m.Freeze(context.Background(), Actor{}, id, nil))
	h := b.get(id)
	assert.Equal(t, "t", h["frozen"])
	assert.NotContains(t, h, "thaw_date")
}

func TestFreeze_RejectedAfterCapture(t *testing.T) {
	b := newHoldBackend()
	id := b.seed(map[string]any{
		"hold_type": "T", "target": float64(55),
		"capture_time": "2026-08-20T10:00:00Z",
	})
	m := newTestManager(t, b)

	err := m.Freeze(context.Background(), Actor{}, id, nil)
	assert.ErrorIs(t, err, ErrAlreadyCaptured)
	assert.NotContains(t, b.get(id), "frozen")
}

func TestFreeze_RejectsPastThawDate(t *testing.T) {
	b := newHoldBackend()
	id := b.seed(map[string]any{"hold_type": "T", "target": float64(55)})
	m := newTestManager(t, b)

	past := time.Now().Add(-time.Hour)
	err := m.Freeze(context.Background(), Actor{}, id, &past)
	assert.ErrorIs(t, err, ErrThawDateInPast)
}

func TestCancel_TerminalAndIdempotent(t *testing.T) {
	b := newHoldBackend()
	id := b.seed(map[string]any{"hold_type": "T", "target": float64(55)})
	m := newTestManager(t, b)
	ctx := context.Background()

	require.NoError(t, m.Cancel(ctx, Actor{}, id, CancelStaff, "shelf weeding"))
	h := b.get(id)
	assert.Contains(t, h, "cancel_time")
	assert.Equal(t, int64(2), asID(h["cancel_cause"]))

	// Cancelled is terminal for every other mutation.
	assert.ErrorIs(t, m.Freeze(ctx, Actor{}, id, nil), ErrHoldCancelled)
	assert.ErrorIs(t, m.Thaw(ctx, Actor{}, id), ErrHoldCancelled)
	assert.ErrorIs(t, m.ChangePickup(ctx, Actor{}, id, 5), ErrHoldCancelled)

	// Repeating the cancellation is a quiet no-op.
	calls := len(b.callLog())
	require.NoError(t, m.Cancel(ctx, Actor{}, id, CancelStaff, ""))
	assert.Equal(t, calls+1, len(b.callLog()), "only the retrieve runs, no second cancel call")
}

func TestCancel_UnknownReason(t *testing.T) {
	b := newHoldBackend()
	m := newTestManager(t, b)

	err := m.Cancel(context.Background(), Actor{}, 1, CancelReason("whim"), "")
	assert.ErrorIs(t, err, ErrInvalidReason)
	assert.Empty(t, b.callLog())
}

func TestChangePickup(t *testing.T) {
	b := newHoldBackend()
	id := b.seed(map[string]any{"hold_type": "T", "target": float64(55), "pickup_lib": float64(3)})
	m := newTestManager(t, b)

	require.NoError(t, m.ChangePickup(context.Background(), Actor{}, id, 7))
	assert.Equal(t, int64(7), asID(b.get(id)["pickup_lib"]))
}

func TestClearShelf_ReturnsBeforeBackendFinishes(t *testing.T) {
	b := newHoldBackend()
	m := newTestManager(t, b)

	m.ClearShelf(context.Background(), Actor{}, 3)

	select {
	case org := <-b.cleared:
		assert.Equal(t, int64(3), org)
	case <-time.After(2 * time.Second):
		t.Fatal("clear-shelf request never reached the backend")
	}
}

func TestShelfExpired_DecodesHolds(t *testing.T) {
	b := newHoldBackend()
	b.expired = []map[string]any{
		{"id": float64(7), "hold_type": "T", "usr": float64(42), "shelf_expire_time": "2026-08-25T00:00:00Z"},
		{"id": float64(8), "hold_type": "C", "usr": float64(43)},
	}
	m := newTestManager(t, b)

	holds, err := m.ShelfExpired(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, holds, 2)
	assert.Equal(t, int64(7), holds[0].ID)
	assert.Equal(t, int64(42), holds[0].PatronID)
	assert.NotNil(t, holds[0].ShelfExpireTime)
}

func TestRetrieve_NotFoundSurfacesDomainError(t *testing.T) {
	b := newHoldBackend()
	m := newTestManager(t, b)

	_, err := m.Retrieve(context.Background(), 999)
	var de *gateway.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ACTION_HOLD_REQUEST_NOT_FOUND", de.Code)
}
