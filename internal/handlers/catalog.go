package handlers

import (
	"net/http"

	"github.com/diewo77/foodcore/internal/access"
	"github.com/diewo77/foodcore/internal/catalog"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/orders"
)

// CatalogHandler serves the menu, customers, suppliers and system settings.
type CatalogHandler struct {
	catalog *catalog.Service
	orders  *orders.Engine
	state   tenantScope
}

func NewCatalogHandler(c *catalog.Service, engine *orders.Engine, st tenantScope) *CatalogHandler {
	return &CatalogHandler{catalog: c, orders: engine, state: st}
}

func (h *CatalogHandler) Register(mux *http.ServeMux, guard Guard) {
	guard.handle(mux, "GET /menu", access.ResourceMenu, gate.ActionView, listIn(h.state, h.catalog.MenuItems))
	guard.handle(mux, "POST /menu", access.ResourceMenu, gate.ActionManage, createIn(h.state, h.catalog.AddMenuItem))
	guard.handle(mux, "PUT /menu/{id}", access.ResourceMenu, gate.ActionManage, updateIn(h.state, h.catalog.UpdateMenuItem))
	guard.handle(mux, "DELETE /menu/{id}", access.ResourceMenu, gate.ActionManage, deleteIn(h.state, h.catalog.DeleteMenuItem))
	guard.handle(mux, "POST /menu/{id}/price", access.ResourcePrices, gate.ActionEdit, h.EditPrice)

	guard.handle(mux, "GET /customers", access.ResourceCustomers, gate.ActionManage, listIn(h.state, h.catalog.Customers))
	guard.handle(mux, "POST /customers", access.ResourceCustomers, gate.ActionManage, createIn(h.state, h.catalog.AddCustomer))
	guard.handle(mux, "PUT /customers/{id}", access.ResourceCustomers, gate.ActionManage, updateIn(h.state, h.catalog.UpdateCustomer))
	guard.handle(mux, "DELETE /customers/{id}", access.ResourceCustomers, gate.ActionManage, deleteIn(h.state, h.catalog.DeleteCustomer))

	guard.handle(mux, "GET /suppliers", access.ResourceInventory, gate.ActionManage, listIn(h.state, h.catalog.Suppliers))
	guard.handle(mux, "POST /suppliers", access.ResourceInventory, gate.ActionManage, createIn(h.state, h.catalog.AddSupplier))
	guard.handle(mux, "PUT /suppliers/{id}", access.ResourceInventory, gate.ActionManage, updateIn(h.state, h.catalog.UpdateSupplier))
	guard.handle(mux, "DELETE /suppliers/{id}", access.ResourceInventory, gate.ActionManage, deleteIn(h.state, h.catalog.DeleteSupplier))

	guard.handle(mux, "GET /settings", access.ResourceAdmin, gate.ActionAccess, h.Settings)
	guard.handle(mux, "PUT /settings", access.ResourceAdmin, gate.ActionAccess, h.UpdateSettings)
}

type priceRequest struct {
	Price float64 `json:"price"`
}

func (h *CatalogHandler) EditPrice(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in priceRequest
	if !decode(w, r, &in) {
		return
	}
	item, err := h.orders.EditPrice(r.Context(), rid, id, in.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) Settings(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.catalog.Settings())
}

func (h *CatalogHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in models.SystemSettings
	if !decode(w, r, &in) {
		return
	}
	out, err := h.catalog.UpdateSettings(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
