package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/foodcore/internal/access"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/inventory"
	"github.com/diewo77/foodcore/internal/reports"
	"github.com/diewo77/foodcore/internal/state"
)

const defaultTopItems = 5

type ReportHandler struct {
	reports *reports.Service
	ledger  *inventory.Ledger
	state   *state.State
}

func NewReportHandler(r *reports.Service, ledger *inventory.Ledger, st *state.State) *ReportHandler {
	return &ReportHandler{reports: r, ledger: ledger, state: st}
}

func (h *ReportHandler) Register(mux *http.ServeMux, guard Guard) {
	guard.handle(mux, "GET /reports/financials", access.ResourceReports, gate.ActionView, h.Financials)
	guard.handle(mux, "GET /reports/inventory", access.ResourceReports, gate.ActionView, h.Inventory)
}

// Financials answers revenue, cost and profit for ?window= (today by
// default) plus the best sellers, ?top= of them.
func (h *ReportHandler) Financials(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	win, err := reports.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	top := defaultTopItems
	if raw := r.URL.Query().Get("top"); raw != "" {
		if top, err = strconv.Atoi(raw); err != nil {
			badRequest(w, r)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"financials": h.reports.Financials(rid, win),
		"topItems":   h.reports.TopItems(rid, win, top),
	})
}

func (h *ReportHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantID(w, r, h.state)
	if !ok {
		return
	}
	win, err := reports.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":    h.ledger.Items(rid),
		"position": h.reports.Position(rid, win),
	})
}
