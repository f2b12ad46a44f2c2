package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fenwicklabs/circd/internal/catalog"
	"github.com/fenwicklabs/circd/internal/circ"
)

// itemsRequest is the POST /api/v1/items body.
type itemsRequest struct {
	Action string `json:"action"`

	// Single-item creation.
	Record    int64  `json:"record"`
	OwningLib int64  `json:"owningLib"`
	Label     string `json:"label"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
	Barcode   string `json:"barcode"`
	CircLib   int64  `json:"circLib"`
	Location  int64  `json:"location"`

	// Batch maintenance.
	Barcodes   []string `json:"barcodes"`
	StatusID   int64    `json:"statusId"`
	LocationID int64    `json:"locationId"`
	VolumeID   int64    `json:"volumeId"`
}

// handleItems dispatches item creation and batch copy maintenance.
func (s *Server) handleItems(c echo.Context) error {
	req, errReply := readMutatingRequest(c)
	if errReply != nil {
		return send(c, *errReply)
	}

	var body itemsRequest
	if errReply := req.bind(&body); errReply != nil {
		return send(c, *errReply)
	}

	actor := actorFrom(c)
	if denied := s.checkPermission(c.Request().Context(), actor.Name, body.Action); denied != nil {
		return send(c, *denied)
	}

	if body.Action == "create" {
		return s.runGuarded(c, "items.create", req, func(ctx context.Context) reply {
			res, err := s.circ.CreateItem(ctx, circ.CreateItemRequest{
				Actor:     actor,
				Record:    body.Record,
				OwningLib: body.OwningLib,
				Label:     body.Label,
				Prefix:    body.Prefix,
				Suffix:    body.Suffix,
				Barcode:   body.Barcode,
				CircLib:   body.CircLib,
				Location:  body.Location,
			})
			if err != nil {
				return failureFrom(err, actor.RequestID)
			}
			return ok(http.StatusCreated, map[string]any{
				"volumeId":      res.VolumeID,
				"volumeCreated": res.VolumeCreated,
				"copyId":        res.CopyID,
			})
		})
	}

	batch := circ.BatchRequest{
		Actor:      actor,
		Barcodes:   body.Barcodes,
		StatusID:   body.StatusID,
		LocationID: body.LocationID,
		VolumeID:   body.VolumeID,
	}

	var run func(context.Context, circ.BatchRequest) (*circ.BatchResult, error)
	switch body.Action {
	case "update_status":
		run = s.circ.UpdateStatus
	case "update_location":
		run = s.circ.UpdateLocation
	case "transfer":
		run = s.circ.Transfer
	case "delete":
		run = s.circ.Delete
	default:
		return send(c, fail(http.StatusBadRequest, "unknown items action", map[string]any{
			"action": body.Action,
		}))
	}

	return s.runGuarded(c, "items."+body.Action, req, func(ctx context.Context) reply {
		res, err := run(ctx, batch)
		if err != nil {
			return failureFrom(err, actor.RequestID)
		}
		return ok(http.StatusOK, map[string]any{
			"results":   res.Results,
			"failCount": res.FailCount,
		})
	})
}

// handleCopyByBarcode returns the decoded copy for a barcode.
func (s *Server) handleCopyByBarcode(c echo.Context) error {
	barcode := c.Param("barcode")
	copyRec, err := s.catalog.CopyByBarcode(c.Request().Context(), barcode)
	if err != nil {
		return send(c, failureFrom(err, requestID(c)))
	}
	if copyRec == nil {
		return send(c, fail(http.StatusNotFound, "no copy with that barcode", nil))
	}
	return send(c, ok(http.StatusOK, map[string]any{"copy": copyRec}))
}

// handleCopyHistory lists a copy's past circulations with patron
// display names.
func (s *Server) handleCopyHistory(c echo.Context) error {
	copyRec, err := s.catalog.CopyByBarcode(c.Request().Context(), c.Param("barcode"))
	if err != nil {
		return send(c, failureFrom(err, requestID(c)))
	}
	if copyRec == nil {
		return send(c, fail(http.StatusNotFound, "no copy with that barcode", nil))
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	rows, err := s.circ.CopyHistory(c.Request().Context(), copyRec.ID, limit)
	if err != nil {
		return send(c, failureFrom(err, requestID(c)))
	}
	return send(c, ok(http.StatusOK, map[string]any{"history": rows}))
}

// handleRecordSummary aggregates a bib record's copy tree.
func (s *Server) handleRecordSummary(c echo.Context) error {
	recordID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || recordID <= 0 {
		return send(c, fail(http.StatusBadRequest, "record id must be a positive integer", nil))
	}

	var scope catalog.ScopeParams
	if raw := c.QueryParam("scope"); raw != "" {
		scope.ScopeOrg, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return send(c, fail(http.StatusBadRequest, "scope must be an org id", nil))
		}
	}
	scope.MaxDepth = -1
	if raw := c.QueryParam("depth"); raw != "" {
		scope.MaxDepth, err = strconv.Atoi(raw)
		if err != nil {
			return send(c, fail(http.StatusBadRequest, "depth must be an integer", nil))
		}
	}

	summary, err := s.catalog.RecordSummary(c.Request().Context(), recordID, scope)
	if err != nil {
		return send(c, failureFrom(err, requestID(c)))
	}
	return send(c, ok(http.StatusOK, map[string]any{
		"record":    recordID,
		"total":     summary.Total,
		"available": summary.Available,
		"copies":    summary.Records,
	}))
}
