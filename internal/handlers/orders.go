package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/foodcore/internal/access"
	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/orders"
	"github.com/diewo77/foodcore/internal/staff"
	"github.com/diewo77/foodcore/internal/state"
)

// OrderHandler serves the point of sale, the kitchen queue and drivers.
type OrderHandler struct {
	engine *orders.Engine
	staff  *staff.Service
	state  *state.State
}

func NewOrderHandler(engine *orders.Engine, staffSvc *staff.Service, st *state.State) *OrderHandler {
	return &OrderHandler{engine: engine, staff: staffSvc, state: st}
}

func (h *OrderHandler) Register(mux *http.ServeMux, guard Guard) {
	guard.handle(mux, "GET /orders", access.ResourceOrders, gate.ActionOperate, h.List)
	guard.handle(mux, "POST /orders", access.ResourceOrders, gate.ActionOperate, h.Place)
	guard.handle(mux, "GET /orders/active", access.ResourceOrders, gate.ActionOperate, h.Active)
	guard.handle(mux, "GET /orders/{id}", access.ResourceOrders, gate.ActionOperate, h.Get)
	guard.handle(mux, "POST /orders/{id}/status", access.ResourceOrders, gate.ActionOperate, h.UpdateStatus)
	guard.handle(mux, "POST /orders/{id}/driver", access.ResourceOrders, gate.ActionOperate, h.AssignDriver)
	guard.handle(mux, "GET /drivers", access.ResourceOrders, gate.ActionOperate, listIn(h.state, h.drivers))
}

func (h *OrderHandler) drivers(restaurantID string) []models.User {
	return publicUsers(h.staff.Drivers(restaurantID))
}

// List returns the restaurant's orders, newest first. With ?driver=<id>
// only that driver's deliveries are listed, and ?active=1 narrows them to
// the ones still out.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	q := r.URL.Query()
	if raw := q.Get("driver"); raw != "" {
		driverID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, r)
			return
		}
		if q.Get("active") == "1" {
			httpx.JSON(w, http.StatusOK, h.engine.ActiveDeliveries(rid, driverID))
			return
		}
		httpx.JSON(w, http.StatusOK, h.engine.DriverOrders(rid, driverID))
		return
	}
	httpx.JSON(w, http.StatusOK, h.engine.List(rid))
}

// Place records a new order. The salesperson defaults to the logged-in user.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	var draft orders.Draft
	if !decode(w, r, &draft) {
		return
	}
	if subject, ok := auth.SubjectFromContext(r.Context()); ok && subject > 0 && draft.SalespersonID == nil {
		draft.SalespersonID = &subject
	}
	o, err := h.engine.PlaceOrder(r.Context(), rid, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

// activeOrder is a kitchen queue entry with its running time.
type activeOrder struct {
	models.Order
	ElapsedSeconds int64 `json:"elapsedSeconds"`
}

func (h *OrderHandler) Active(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	now := h.state.Now()
	list := h.engine.Active(rid)
	out := make([]activeOrder, len(list))
	for i, o := range list {
		out[i] = activeOrder{Order: o, ElapsedSeconds: int64(orders.Elapsed(o, now).Seconds())}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.engine.Get(rid, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in statusRequest
	if !decode(w, r, &in) {
		return
	}
	next, err := orders.ParseStatus(in.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.engine.UpdateStatus(r.Context(), rid, id, next)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

type driverRequest struct {
	DriverID int64 `json:"driverId"`
}

func (h *OrderHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in driverRequest
	if !decode(w, r, &in) {
		return
	}
	o, err := h.engine.AssignDriver(r.Context(), rid, id, in.DriverID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}
