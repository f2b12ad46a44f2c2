package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fenwicklabs/circd/internal/circ"
	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/holds"
	"github.com/fenwicklabs/circd/internal/idempotency"
)

// reply is one computed response: the envelope body plus its status.
// It is what the idempotency guard stores and replays.
type reply struct {
	Status int            `json:"status"`
	Body   map[string]any `json:"body"`
}

// ok wraps data in a success envelope.
func ok(status int, data map[string]any) reply {
	body := map[string]any{"ok": true}
	for k, v := range data {
		body[k] = v
	}
	return reply{Status: status, Body: body}
}

// fail wraps an error message in a failure envelope.
func fail(status int, msg string, details map[string]any) reply {
	body := map[string]any{"ok": false, "error": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	return reply{Status: status, Body: body}
}

func send(c echo.Context, r reply) error {
	return c.JSON(r.Status, r.Body)
}

// validationErrors maps local pre-flight failures to 400.
var validationErrors = []error{
	circ.ErrMissingPatronBarcode,
	circ.ErrMissingItemBarcode,
	circ.ErrMissingLabel,
	circ.ErrMissingRecord,
	circ.ErrMissingOwningLib,
	circ.ErrEmptyBatch,
	holds.ErrMissingPatron,
	holds.ErrMissingTarget,
	holds.ErrMissingPickupLib,
	holds.ErrInvalidHoldType,
	holds.ErrInvalidReason,
	holds.ErrThawDateInPast,
}

// notFoundCodes are backend domain codes meaning the target record
// does not exist.
var notFoundCodes = map[string]struct{}{
	"ASSET_COPY_NOT_FOUND":          {},
	"ACTOR_USER_NOT_FOUND":          {},
	"ASSET_CALL_NUMBER_NOT_FOUND":   {},
	"BIBLIO_RECORD_ENTRY_NOT_FOUND": {},
	"ACTION_HOLD_REQUEST_NOT_FOUND": {},
}

// failureFrom maps an orchestration error onto the HTTP envelope.
//
// Checkout conflicts carry the full override contract so the client
// can decide whether a privileged retry is worth offering.
func failureFrom(err error, requestID string) reply {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return fail(http.StatusBadRequest, err.Error(), nil)
		}
	}

	if errors.Is(err, idempotency.ErrConflict) {
		return fail(http.StatusConflict, err.Error(), nil)
	}
	if errors.Is(err, holds.ErrHoldNotFound) {
		return fail(http.StatusNotFound, err.Error(), nil)
	}
	if errors.Is(err, holds.ErrHoldCancelled) ||
		errors.Is(err, holds.ErrHoldFulfilled) ||
		errors.Is(err, holds.ErrAlreadyCaptured) {
		return fail(http.StatusConflict, err.Error(), nil)
	}

	var f *circ.Failure
	if errors.As(err, &f) {
		return fail(http.StatusConflict, f.Desc, map[string]any{
			"code":             f.Code,
			"desc":             f.Desc,
			"overridePerm":     f.OverridePerm,
			"overrideEligible": f.OverrideEligible,
			"requestId":        requestID,
		})
	}

	var ice *circ.ItemCreateError
	if errors.As(err, &ice) {
		inner := failureFrom(ice.Err, requestID)
		inner.Body["details"] = map[string]any{
			"volumeId":      ice.VolumeID,
			"volumeCreated": ice.VolumeCreated,
		}
		return inner
	}

	var de *gateway.DomainError
	if errors.As(err, &de) {
		if _, missing := notFoundCodes[de.Code]; missing {
			return fail(http.StatusNotFound, de.Desc, map[string]any{"code": de.Code})
		}
		return fail(http.StatusConflict, de.Desc, map[string]any{"code": de.Code})
	}

	// Transport failures and anything unclassified.
	return fail(http.StatusInternalServerError, "backend call failed", nil)
}
