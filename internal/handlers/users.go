package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/foodcore/internal/access"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/staff"
	"github.com/diewo77/foodcore/internal/state"
)

// UserHandler manages staff accounts. Every change drops the cached
// permission profile of the user concerned.
type UserHandler struct {
	staff *staff.Service
	gate  *access.AuthGate
	state *state.State
}

func NewUserHandler(staffSvc *staff.Service, ag *access.AuthGate, st *state.State) *UserHandler {
	return &UserHandler{staff: staffSvc, gate: ag, state: st}
}

func (h *UserHandler) Register(mux *http.ServeMux, guard Guard) {
	res, act := access.ResourceUsers, gate.ActionManage
	guard.handle(mux, "GET /users", res, act, listIn(h.state, h.list))
	guard.handle(mux, "POST /users", res, act, createIn(h.state, h.add))
	guard.handle(mux, "PUT /users/{id}", res, act, updateIn(h.state, h.update))
	guard.handle(mux, "PUT /users/{id}/permissions", res, act, updateIn(h.state, h.updatePermissions))
	guard.handle(mux, "DELETE /users/{id}", res, act, deleteIn(h.state, h.delete))
}

func (h *UserHandler) list(restaurantID string) []models.User {
	return publicUsers(h.staff.List(restaurantID))
}

func (h *UserHandler) add(ctx context.Context, restaurantID string, in staff.NewUser) (models.User, error) {
	u, err := h.staff.Add(ctx, restaurantID, in)
	return publicUser(u), err
}

func (h *UserHandler) update(ctx context.Context, restaurantID string, id int64, in staff.Changes) (models.User, error) {
	u, err := h.staff.Update(ctx, restaurantID, id, in)
	h.gate.InvalidateUser(id)
	return publicUser(u), err
}

func (h *UserHandler) updatePermissions(ctx context.Context, restaurantID string, id int64, perms models.Permissions) (models.User, error) {
	u, err := h.staff.UpdatePermissions(ctx, restaurantID, id, perms)
	h.gate.InvalidateUser(id)
	return publicUser(u), err
}

func (h *UserHandler) delete(ctx context.Context, restaurantID string, id int64) error {
	err := h.staff.Delete(ctx, restaurantID, id)
	h.gate.InvalidateUser(id)
	return err
}
