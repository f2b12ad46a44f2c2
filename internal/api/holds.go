package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fenwicklabs/circd/internal/holds"
)

// holdsRequest is the POST /api/v1/holds body. Fields beyond the
// action are meaningful per action.
type holdsRequest struct {
	Action    string `json:"action"`
	HoldID    int64  `json:"holdId"`
	PatronID  int64  `json:"patronId"`
	HoldType  string `json:"holdType"`
	Target    int64  `json:"target"`
	PickupLib int64  `json:"pickupLib"`
	Frozen    bool   `json:"frozen"`
	ThawDate  string `json:"thawDate"`
	Reason    string `json:"reason"`
	Note      string `json:"note"`
	OrgID     int64  `json:"orgId"`
}

// handleHolds dispatches the hold lifecycle actions.
func (s *Server) handleHolds(c echo.Context) error {
	req, errReply := readMutatingRequest(c)
	if errReply != nil {
		return send(c, *errReply)
	}

	var body holdsRequest
	if errReply := req.bind(&body); errReply != nil {
		return send(c, *errReply)
	}

	actor := holdsActorFrom(c)
	if denied := s.checkPermission(c.Request().Context(), actor.Name, body.Action); denied != nil {
		return send(c, *denied)
	}

	thawDate, badDate := parseThawDate(body.ThawDate)
	if badDate != nil {
		return send(c, *badDate)
	}

	switch body.Action {
	case "place_hold":
		return s.runGuarded(c, "holds.place", req, func(ctx context.Context) reply {
			id, err := s.holds.Place(ctx, holds.PlaceRequest{
				Actor:     actor,
				PatronID:  body.PatronID,
				Type:      body.HoldType,
				Target:    body.Target,
				PickupLib: body.PickupLib,
				Frozen:    body.Frozen,
				ThawDate:  thawDate,
			})
			if err != nil {
				return failureFrom(err, actor.RequestID)
			}
			return ok(http.StatusCreated, map[string]any{"holdId": id})
		})

	case "cancel_hold":
		return s.runGuarded(c, "holds.cancel", req, func(ctx context.Context) reply {
			err := s.holds.Cancel(ctx, actor, body.HoldID, holds.CancelReason(body.Reason), body.Note)
			if err != nil {
				return failureFrom(err, actor.RequestID)
			}
			return ok(http.StatusOK, map[string]any{"holdId": body.HoldID})
		})

	case "freeze_hold":
		return s.runGuarded(c, "holds.freeze", req, func(ctx context.Context) reply {
			if err := s.holds.Freeze(ctx, actor, body.HoldID, thawDate); err != nil {
				return failureFrom(err, actor.RequestID)
			}
			return ok(http.StatusOK, map[string]any{"holdId": body.HoldID})
		})

	case "thaw_hold":
		return s.runGuarded(c, "holds.thaw", req, func(ctx context.Context) reply {
			if err := s.holds.Thaw(ctx, actor, body.HoldID); err != nil {
				return failureFrom(err, actor.RequestID)
			}
			return ok(http.StatusOK, map[string]any{"holdId": body.HoldID})
		})

	case "change_pickup_lib":
		return s.runGuarded(c, "holds.change_pickup", req, func(ctx context.Context) reply {
			if err := s.holds.ChangePickup(ctx, actor, body.HoldID, body.PickupLib); err != nil {
				return failureFrom(err, actor.RequestID)
			}
			return ok(http.StatusOK, map[string]any{"holdId": body.HoldID})
		})

	case "clear_shelf":
		// Fire and forget: accepted, not completed. Poll shelf-expired
		// to observe the sweep.
		s.holds.ClearShelf(c.Request().Context(), actor, body.OrgID)
		return send(c, ok(http.StatusAccepted, map[string]any{"orgId": body.OrgID}))
	}

	return send(c, fail(http.StatusBadRequest, "unknown holds action", map[string]any{
		"action": body.Action,
	}))
}

// handleShelfExpired lists holds expired on an org's pickup shelf.
func (s *Server) handleShelfExpired(c echo.Context) error {
	orgID, err := strconv.ParseInt(c.QueryParam("org"), 10, 64)
	if err != nil || orgID <= 0 {
		return send(c, fail(http.StatusBadRequest, "org query parameter is required", nil))
	}

	expired, err := s.holds.ShelfExpired(c.Request().Context(), orgID)
	if err != nil {
		return send(c, failureFrom(err, requestID(c)))
	}
	return send(c, ok(http.StatusOK, map[string]any{"holds": expired}))
}

func parseThawDate(raw string) (*time.Time, *reply) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		r := fail(http.StatusBadRequest, "thawDate must be RFC 3339", nil)
		return nil, &r
	}
	return &t, nil
}
