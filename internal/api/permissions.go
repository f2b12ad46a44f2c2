package api

import (
	"context"
	"net/http"
)

// PermissionChecker decides whether an actor may run an action.
// Missing returns the permissions the actor lacks; an empty slice
// allows the action.
type PermissionChecker interface {
	Missing(ctx context.Context, actor string, perms []string) []string
}

// AllowAll grants everything; the default when no checker is wired.
type AllowAll struct{}

func (AllowAll) Missing(context.Context, string, []string) []string { return nil }

// actionPerms names the permission each mutating action requires.
var actionPerms = map[string][]string{
	"checkout":          {"COPY_CHECKOUT"},
	"renew":             {"COPY_CHECKOUT"},
	"checkin":           {"COPY_CHECKIN"},
	"create":            {"CREATE_COPY", "CREATE_VOLUME"},
	"update_status":     {"UPDATE_COPY"},
	"update_location":   {"UPDATE_COPY"},
	"transfer":          {"UPDATE_COPY", "UPDATE_VOLUME"},
	"delete":            {"DELETE_COPY"},
	"place_hold":        {"REQUEST_HOLDS"},
	"cancel_hold":       {"CANCEL_HOLDS"},
	"freeze_hold":       {"UPDATE_HOLD"},
	"thaw_hold":         {"UPDATE_HOLD"},
	"change_pickup_lib": {"UPDATE_HOLD"},
	"clear_shelf":       {"CLEAR_SHELF"},
}

// checkPermission returns a 403 reply when the actor lacks what the
// action needs, or nil when allowed. Permission failures never reach
// the backend.
func (s *Server) checkPermission(ctx context.Context, actor, action string) *reply {
	missing := s.perms.Missing(ctx, actor, actionPerms[action])
	if len(missing) == 0 {
		return nil
	}
	r := fail(http.StatusForbidden, "permission denied", map[string]any{
		"missing": missing,
	})
	return &r
}
