package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fenwicklabs/circd/internal/circ"
)

// circulationRequest is the POST /api/v1/circulation body.
type circulationRequest struct {
	Action        string `json:"action"`
	PatronBarcode string `json:"patronBarcode"`
	ItemBarcode   string `json:"itemBarcode"`
	Override      bool   `json:"override"`
}

// handleCirculation dispatches checkout, renew, and checkin.
func (s *Server) handleCirculation(c echo.Context) error {
	req, errReply := readMutatingRequest(c)
	if errReply != nil {
		return send(c, *errReply)
	}

	var body circulationRequest
	if errReply := req.bind(&body); errReply != nil {
		return send(c, *errReply)
	}

	actor := actorFrom(c)
	if denied := s.checkPermission(c.Request().Context(), actor.Name, body.Action); denied != nil {
		return send(c, *denied)
	}

	switch body.Action {
	case "checkout", "renew":
		return s.runGuarded(c, "circulation."+body.Action, req, func(ctx context.Context) reply {
			cr := circ.CheckoutRequest{
				Actor:         actor,
				PatronBarcode: body.PatronBarcode,
				ItemBarcode:   body.ItemBarcode,
				Override:      body.Override,
			}
			var (
				res *circ.CheckoutResult
				err error
			)
			if body.Action == "renew" {
				res, err = s.circ.Renew(ctx, cr)
			} else {
				res, err = s.circ.Checkout(ctx, cr)
			}
			if err != nil {
				return failureFrom(err, actor.RequestID)
			}
			return ok(http.StatusOK, map[string]any{
				"circ":       res.Circ,
				"overridden": res.Overridden,
			})
		})

	case "checkin":
		return s.runGuarded(c, "circulation.checkin", req, func(ctx context.Context) reply {
			res, err := s.circ.Checkin(ctx, circ.CheckinRequest{
				Actor:       actor,
				ItemBarcode: body.ItemBarcode,
				Override:    body.Override,
			})
			if err != nil {
				return failureFrom(err, actor.RequestID)
			}
			data := map[string]any{"status": res.Status}
			if res.Hold != nil {
				data["hold"] = res.Hold
			}
			if res.DestOrg != 0 {
				data["destOrg"] = res.DestOrg
			}
			if res.WasOverdue != nil {
				data["wasOverdue"] = *res.WasOverdue
			}
			if res.Circ != nil {
				data["circ"] = res.Circ
			}
			return ok(http.StatusOK, data)
		})
	}

	return send(c, fail(http.StatusBadRequest, "unknown circulation action", map[string]any{
		"action": body.Action,
	}))
}
