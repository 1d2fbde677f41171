package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/diewo77/foodcore/internal/access"
	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/backup"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
)

// BackupHandler exposes export, import and the auto-backup snapshots.
type BackupHandler struct {
	service   *backup.Service
	scheduler *backup.Scheduler
	cookies   *auth.Sessions
	state     *state.State
}

func NewBackupHandler(svc *backup.Service, scheduler *backup.Scheduler, cookies *auth.Sessions, st *state.State) *BackupHandler {
	return &BackupHandler{service: svc, scheduler: scheduler, cookies: cookies, state: st}
}

func (h *BackupHandler) Register(mux *http.ServeMux, guard Guard) {
	res, act := access.ResourceAdmin, gate.ActionAccess
	guard.handle(mux, "GET /backup/export", res, act, h.Export)
	guard.handle(mux, "POST /backup/import", res, act, h.Import)
	guard.handle(mux, "GET /backup/snapshots", res, act, h.Snapshots)
	guard.handle(mux, "POST /backup/snapshots", res, act, h.BackupNow)
	guard.handle(mux, "POST /backup/snapshots/{id}/restore", res, act, h.RestoreSnapshot)
	guard.handle(mux, "GET /backup/status", res, act, h.Status)
}

// Export answers the full dataset as a JSON attachment.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	name, err := h.service.Export(r.Context(), &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Import restores an uploaded export. The session ends afterwards.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	p, err := backup.ParseImport(httpx.Body(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.Restore(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.Clear(w)
	noContent(w)
}

func (h *BackupHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Snapshots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *BackupHandler) BackupNow(w http.ResponseWriter, r *http.Request) {
	snap, err := h.scheduler.BackupNow(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, snap.Summary())
}

func (h *BackupHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, r)
		return
	}
	if err := h.service.RestoreSnapshot(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.Clear(w)
	noContent(w)
}

type backupStatus struct {
	LastManualBackup *models.Timestamp `json:"lastManualBackup,omitempty"`
	Stale            bool              `json:"stale"`
	SchedulerRunning bool              `json:"schedulerRunning"`
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := backupStatus{
		Stale:            h.scheduler.CheckStale(),
		SchedulerRunning: h.scheduler.Running(),
	}
	if last, ok := h.state.LastManualBackup(); ok {
		st.LastManualBackup = models.AtPtr(last)
	}
	httpx.JSON(w, http.StatusOK, st)
}
