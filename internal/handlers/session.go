package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/licensing"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/session"
	"github.com/diewo77/foodcore/internal/tenant"
)

// SessionHandler drives terminal routing, login and tenant selection.
type SessionHandler struct {
	manager   *session.Manager
	cookies   *auth.Sessions
	directory *tenant.Directory
}

func NewSessionHandler(manager *session.Manager, cookies *auth.Sessions, directory *tenant.Directory) *SessionHandler {
	return &SessionHandler{manager: manager, cookies: cookies, directory: directory}
}

func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /session", h.Enter)
	mux.HandleFunc("POST /session/login", h.Login)
	mux.HandleFunc("POST /session/logout", h.Logout)
	mux.HandleFunc("POST /session/switch", h.Switch)
	mux.HandleFunc("POST /session/select", h.Select)
}

type entryResponse struct {
	session.Entry
	// Restaurants lists the selectable restaurants on the selection screen.
	Restaurants []restaurantChoice `json:"restaurants,omitempty"`
}

type restaurantChoice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *SessionHandler) Enter(w http.ResponseWriter, r *http.Request) {
	e := h.manager.Enter(r.Context())
	if e.User != nil {
		u := *e.User
		u.Password = ""
		e.User = &u
	}
	resp := entryResponse{Entry: e}
	if e.Phase == licensing.PhaseReady && e.RestaurantID == "" && !e.Owner {
		for _, rest := range h.directory.Activated() {
			resp.Restaurants = append(resp.Restaurants, restaurantChoice{ID: rest.ID, Name: rest.Name})
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decode(w, r, &in) {
		return
	}
	subject, err := h.manager.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.Create(w, subject)
	resp := map[string]any{"owner": subject == auth.OwnerSubject}
	if u, ok := h.manager.CurrentUser(); ok {
		resp["user"] = publicUser(u)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.manager.Logout()
	h.cookies.Clear(w)
	noContent(w)
}

func (h *SessionHandler) Switch(w http.ResponseWriter, r *http.Request) {
	h.manager.SwitchRestaurant(r.Context())
	h.cookies.Clear(w)
	noContent(w)
}

type selectRequest struct {
	RestaurantID string `json:"restaurantId"`
}

func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var in selectRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.manager.Select(r.Context(), strings.TrimSpace(in.RestaurantID)); err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.Clear(w)
	httpx.JSON(w, http.StatusOK, h.manager.Enter(r.Context()))
}

// publicUser strips the stored password before a user leaves the server.
func publicUser(u models.User) models.User {
	u.Password = ""
	return u
}

func publicUsers(us []models.User) []models.User {
	out := make([]models.User, len(us))
	for i, u := range us {
		out[i] = publicUser(u)
	}
	return out
}

// ActivationHandler exposes code redemption and first admin creation.
type ActivationHandler struct {
	licensing *licensing.Service
	state     tenantScope
}

func NewActivationHandler(lic *licensing.Service, st tenantScope) *ActivationHandler {
	return &ActivationHandler{licensing: lic, state: st}
}

func (h *ActivationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /activation/redeem", h.Redeem)
	mux.HandleFunc("POST /activation/admin", h.CreateAdmin)
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (h *ActivationHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var in redeemRequest
	if !decode(w, r, &in) {
		return
	}
	res := h.licensing.RedeemCode(r.Context(), in.Code)
	writeResult(w, r, res, map[string]any{"restaurantId": h.state.CurrentRestaurantID()})
}

func (h *ActivationHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decode(w, r, &in) {
		return
	}
	id, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	u, err := h.licensing.CreateAdmin(r.Context(), id, in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, publicUser(u))
}
