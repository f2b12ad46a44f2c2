package api

import (
	"context"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"

	"github.com/fenwicklabs/circd/internal/idempotency"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodySize rejects runaway request bodies before parsing.
const maxBodySize = 1 << 20

// mutatingRequest is a parsed POST body plus the raw bytes it came
// from, kept for idempotency hashing.
type mutatingRequest struct {
	raw    []byte
	fields map[string]any
}

// readMutatingRequest consumes and parses the request body.
func readMutatingRequest(c echo.Context) (*mutatingRequest, *reply) {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		r := fail(http.StatusBadRequest, "unreadable request body", nil)
		return nil, &r
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		r := fail(http.StatusBadRequest, "request body is not a JSON object", nil)
		return nil, &r
	}
	return &mutatingRequest{raw: raw, fields: fields}, nil
}

// action returns the body's action selector.
func (r *mutatingRequest) action() string {
	a, _ := r.fields["action"].(string)
	return a
}

// token returns the idempotency token: header first, body fallback.
func (r *mutatingRequest) token(c echo.Context) string {
	if h := c.Request().Header.Get(idempotencyHeader); h != "" {
		return h
	}
	t, _ := r.fields["idempotency_token"].(string)
	return t
}

// bind decodes the raw body into a typed request struct.
func (r *mutatingRequest) bind(out any) *reply {
	if err := json.Unmarshal(r.raw, out); err != nil {
		f := fail(http.StatusBadRequest, "malformed request fields", nil)
		return &f
	}
	return nil
}

// runGuarded executes fn under the idempotency guard when the request
// carries a token; without one it runs directly. The stored reply is
// returned verbatim on replays, with a marker header so callers can
// tell a replay from a fresh execution.
func (s *Server) runGuarded(c echo.Context, route string, req *mutatingRequest, fn func(ctx context.Context) reply) error {
	ctx := c.Request().Context()

	token := req.token(c)
	if token == "" || s.guard == nil {
		return send(c, fn(ctx))
	}

	key := route + ":" + token
	hash := idempotency.HashPayload(req.raw)

	res, err := s.guard.RunOnce(ctx, key, hash, func(ctx context.Context) (any, error) {
		return fn(ctx), nil
	})
	if err != nil {
		return send(c, failureFrom(err, requestID(c)))
	}

	r, ok := res.Value.(reply)
	if !ok {
		return send(c, fail(http.StatusInternalServerError, "stored response is unreadable", nil))
	}
	if res.Replayed {
		c.Response().Header().Set("Idempotency-Replayed", "true")
	}
	return send(c, r)
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
