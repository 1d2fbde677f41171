package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/licensing"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/tenant"
)

// OwnerHandler is the system owner console: the restaurant directory and
// the licensing operations on it.
type OwnerHandler struct {
	directory *tenant.Directory
	licensing *licensing.Service
}

func NewOwnerHandler(directory *tenant.Directory, lic *licensing.Service) *OwnerHandler {
	return &OwnerHandler{directory: directory, licensing: lic}
}

func (h *OwnerHandler) Register(mux *http.ServeMux) {
	owner := func(fn http.HandlerFunc) http.Handler { return auth.RequireOwner(fn) }
	mux.Handle("GET /owner/restaurants", owner(h.List))
	mux.Handle("POST /owner/restaurants", owner(h.Create))
	mux.Handle("PUT /owner/restaurants/{rid}", owner(h.Rename))
	mux.Handle("POST /owner/restaurants/{rid}/code", owner(h.GenerateCode))
	mux.Handle("POST /owner/restaurants/{rid}/reset", owner(h.Reset))
	mux.Handle("POST /owner/restaurants/{rid}/subscription", owner(h.Subscription))
}

// restaurantView adds the computed phase to a restaurant.
type restaurantView struct {
	models.Restaurant
	Phase licensing.Phase `json:"phase"`
}

func (h *OwnerHandler) view(rest models.Restaurant) restaurantView {
	phase, _ := h.licensing.Phase(rest.ID)
	return restaurantView{Restaurant: rest, Phase: phase}
}

func (h *OwnerHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.directory.List()
	out := make([]restaurantView, len(list))
	for i, rest := range list {
		out[i] = h.view(rest)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *OwnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in tenant.NewRestaurant
	if !decode(w, r, &in) {
		return
	}
	rest, err := h.directory.Add(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.view(rest))
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *OwnerHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var in renameRequest
	if !decode(w, r, &in) {
		return
	}
	rest, err := h.directory.Rename(r.Context(), r.PathValue("rid"), in.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(rest))
}

func (h *OwnerHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	code, res := h.licensing.GenerateCode(r.Context(), r.PathValue("rid"))
	writeResult(w, r, res, map[string]any{"code": code})
}

func (h *OwnerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.licensing.ResetActivation(r.Context(), r.PathValue("rid")), nil)
}

// subscriptionRequest sets or, with null, removes the subscription end.
type subscriptionRequest struct {
	SubscriptionEndDate *models.Timestamp `json:"subscriptionEndDate"`
}

func (h *OwnerHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	var in subscriptionRequest
	if !decode(w, r, &in) {
		return
	}
	var end *time.Time
	if in.SubscriptionEndDate != nil {
		t := in.SubscriptionEndDate.Time
		end = &t
	}
	rest, err := h.directory.UpdateSubscription(r.Context(), r.PathValue("rid"), end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(rest))
}
