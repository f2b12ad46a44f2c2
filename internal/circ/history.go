package circ

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenwicklabs/circd/internal/ils"
	"github.com/fenwicklabs/circd/internal/logging"
	"github.com/fenwicklabs/circd/internal/osrf"
)

// maxEnrichmentLookups caps the patron-name fan-out for one history
// request. Rows beyond the cap come back unenriched rather than
// failing the request or flooding the backend.
const maxEnrichmentLookups = 20

// HistoryRow is one circulation with optional display enrichment.
type HistoryRow struct {
	Circ       *ils.Circulation `json:"circ"`
	PatronName string           `json:"patronName,omitempty"`
}

// CopyHistory lists past circulations of a copy, newest first as the
// backend returns them, enriched with patron display names.
//
// Enrichment lookups run concurrently but bounded; any individual
// lookup failure degrades that row to unenriched.
func (o *Orchestrator) CopyHistory(ctx context.Context, copyID int64, limit int) ([]HistoryRow, error) {
	if limit <= 0 {
		limit = 25
	}

	value, err := o.gw.Invoke(ctx, svcCirc, methodCopyHistory, copyID, limit)
	if err != nil {
		return nil, err
	}

	raw, ok := value.([]any)
	if !ok {
		return nil, nil
	}

	rows := make([]HistoryRow, 0, len(raw))
	for _, rv := range raw {
		obj, ok := osrf.AsObject(rv)
		if !ok {
			continue
		}
		circ, err := ils.DecodeCirculation(obj, o.reg)
		if err != nil {
			o.logger.Warn("skipping undecodable circulation",
				zap.Int64("copy", copyID), zap.Error(err))
			continue
		}
		rows = append(rows, HistoryRow{Circ: circ})
	}

	o.enrichPatronNames(ctx, rows)
	return rows, nil
}

func (o *Orchestrator) enrichPatronNames(ctx context.Context, rows []HistoryRow) {
	// Dedupe patron ids, preserving first-seen order so the lookup cap
	// favors the newest rows.
	seen := make(map[int64]struct{})
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if r.Circ.PatronID == 0 {
			continue
		}
		if _, dup := seen[r.Circ.PatronID]; dup {
			continue
		}
		seen[r.Circ.PatronID] = struct{}{}
		ids = append(ids, r.Circ.PatronID)
	}
	if len(ids) > maxEnrichmentLookups {
		ids = ids[:maxEnrichmentLookups]
	}

	var mu sync.Mutex
	names := make(map[int64]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for _, id := range ids {
		g.Go(func() error {
			value, err := o.gw.Invoke(gctx, svcActor, methodPatronRetrieve, id)
			if err != nil {
				// Skip enrichment for this patron, keep the request alive.
				o.logger.With(logging.ContextFields(gctx)...).Debug("patron enrichment lookup failed",
					zap.Int64("patron", id), zap.Error(err))
				return nil
			}
			obj, ok := osrf.AsObject(value)
			if !ok {
				return nil
			}
			patron, err := ils.DecodePatron(obj, o.reg)
			if err != nil {
				return nil
			}
			mu.Lock()
			names[id] = patron.DisplayName()
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // closures never return errors; degradation is per-row

	for i := range rows {
		if name, ok := names[rows[i].Circ.PatronID]; ok {
			rows[i].PatronName = name
		}
	}
}
