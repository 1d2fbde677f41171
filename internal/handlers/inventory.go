package handlers

import (
	"net/http"

	"github.com/diewo77/foodcore/internal/access"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/inventory"
	"github.com/diewo77/foodcore/internal/state"
)

// InventoryHandler serves stock items and supplier purchases.
type InventoryHandler struct {
	ledger *inventory.Ledger
	state  *state.State
}

func NewInventoryHandler(ledger *inventory.Ledger, st *state.State) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, state: st}
}

func (h *InventoryHandler) Register(mux *http.ServeMux, guard Guard) {
	res, act := access.ResourceInventory, gate.ActionManage
	guard.handle(mux, "GET /inventory", res, act, listIn(h.state, h.ledger.Items))
	guard.handle(mux, "POST /inventory", res, act, createIn(h.state, h.ledger.AddItem))
	guard.handle(mux, "PUT /inventory/{id}", res, act, updateIn(h.state, h.ledger.UpdateItem))
	guard.handle(mux, "DELETE /inventory/{id}", res, act, deleteIn(h.state, h.ledger.DeleteItem))
	guard.handle(mux, "GET /purchases", res, act, listIn(h.state, h.ledger.Purchases))
	guard.handle(mux, "POST /purchases", res, act, createIn(h.state, h.ledger.RecordPurchase))
}
