package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/foodcore/internal/backup"
	"github.com/diewo77/foodcore/internal/catalog"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/i18n"
	"github.com/diewo77/foodcore/internal/inventory"
	"github.com/diewo77/foodcore/internal/licensing"
	"github.com/diewo77/foodcore/internal/logger"
	"github.com/diewo77/foodcore/internal/orders"
	"github.com/diewo77/foodcore/internal/reports"
	"github.com/diewo77/foodcore/internal/session"
	"github.com/diewo77/foodcore/internal/staff"
	"github.com/diewo77/foodcore/internal/tenant"
	"github.com/diewo77/foodcore/internal/validation"
	"go.uber.org/zap"
)

// errorMapping binds a sentinel error to its HTTP status and message code.
type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{tenant.ErrNotFound, http.StatusNotFound, "not_found"},
	{catalog.ErrNotFound, http.StatusNotFound, "not_found"},
	{staff.ErrNotFound, http.StatusNotFound, "not_found"},
	{inventory.ErrNotFound, http.StatusNotFound, "not_found"},
	{orders.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{orders.ErrMenuItemNotFound, http.StatusNotFound, "not_found"},
	{backup.ErrSnapshotNotFound, http.StatusNotFound, "not_found"},
	{orders.ErrDriverNotFound, http.StatusUnprocessableEntity, "driver_not_found"},
	{orders.ErrInvalidStatus, http.StatusUnprocessableEntity, "invalid_status"},
	{orders.ErrDriverRequired, http.StatusConflict, "driver_required"},
	{orders.ErrNotDelivery, http.StatusConflict, "not_delivery"},
	{orders.ErrTerminal, http.StatusConflict, "order_served"},
	{orders.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{licensing.ErrAlreadyConfigured, http.StatusConflict, "already_configured"},
	{licensing.ErrNotPending, http.StatusConflict, "not_pending"},
	{staff.ErrImmutablePermissions, http.StatusForbidden, "immutable_permissions"},
	{staff.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{session.ErrNoRestaurant, http.StatusConflict, "no_restaurant"},
	{session.ErrNotSelectable, http.StatusConflict, "not_selectable"},
	{session.ErrLoginClosed, http.StatusConflict, "login_closed"},
	{backup.ErrInvalidBackup, http.StatusUnprocessableEntity, "invalid_backup"},
	{reports.ErrUnknownWindow, http.StatusUnprocessableEntity, "invalid_choice"},
}

// writeError renders err as the JSON error envelope. Unknown errors are
// logged and answered with 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	lang := i18n.LangFromContext(r.Context())
	if httpx.TooLarge(err) {
		tooLarge(w, r)
		return
	}
	var v validation.Violations
	if errors.As(err, &v) {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", i18n.T(lang, "validation_failed"), localize(lang, v))
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			httpx.JSONError(w, m.status, m.code, i18n.T(lang, m.code), nil)
			return
		}
	}
	logger.FromContext(r.Context()).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", i18n.T(lang, "internal_error"), nil)
}

// localize turns violation codes into messages, keyed by field.
func localize(lang string, v validation.Violations) map[string]string {
	out := make(map[string]string, len(v))
	for field, code := range v {
		out[field] = i18n.T(lang, code)
	}
	return out
}

// resultStatus maps a licensing result to its HTTP status.
func resultStatus(res licensing.Result) int {
	switch res {
	case licensing.ResultSuccess:
		return http.StatusOK
	case licensing.ResultNotFound:
		return http.StatusNotFound
	case licensing.ResultInvalidCode:
		return http.StatusUnprocessableEntity
	case licensing.ResultStorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

func writeResult(w http.ResponseWriter, r *http.Request, res licensing.Result, payload map[string]any) {
	if res.OK() {
		if payload == nil {
			payload = map[string]any{}
		}
		payload["result"] = res
		httpx.JSON(w, http.StatusOK, payload)
		return
	}
	code := string(res)
	httpx.JSONError(w, resultStatus(res), code, i18n.T(i18n.LangFromContext(r.Context()), code), nil)
}

func badRequest(w http.ResponseWriter, r *http.Request) {
	httpx.JSONError(w, http.StatusBadRequest, "bad_request", i18n.T(i18n.LangFromContext(r.Context()), "bad_request"), nil)
}

func tooLarge(w http.ResponseWriter, r *http.Request) {
	httpx.JSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", i18n.T(i18n.LangFromContext(r.Context()), "payload_too_large"), nil)
}

// decode reads the JSON body into dst and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.Decode(w, r, dst); err != nil {
		if httpx.TooLarge(err) {
			tooLarge(w, r)
		} else {
			badRequest(w, r)
		}
		return false
	}
	return true
}

// pathID parses the {id} path segment and answers 400 when it is not a number.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, r)
		return 0, false
	}
	return id, true
}

// tenantScope is the restaurant selected on the terminal.
type tenantScope interface {
	CurrentRestaurantID() string
}

// restaurantID returns the selected restaurant or answers 409.
func restaurantID(w http.ResponseWriter, r *http.Request, st tenantScope) (string, bool) {
	id := st.CurrentRestaurantID()
	if id == "" {
		writeError(w, r, session.ErrNoRestaurant)
		return "", false
	}
	return id, true
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// createIn decodes an In, creates it in the selected restaurant and answers 201.
func createIn[In, Out any](st tenantScope, fn func(ctx context.Context, restaurantID string, in In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid, ok := restaurantID(w, r, st)
		if !ok {
			return
		}
		var in In
		if !decode(w, r, &in) {
			return
		}
		out, err := fn(r.Context(), rid, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, out)
	}
}

// updateIn decodes an In and applies it to {id} in the selected restaurant.
func updateIn[In, Out any](st tenantScope, fn func(ctx context.Context, restaurantID string, id int64, in In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid, ok := restaurantID(w, r, st)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var in In
		if !decode(w, r, &in) {
			return
		}
		out, err := fn(r.Context(), rid, id, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

// deleteIn removes {id} from the selected restaurant and answers 204.
func deleteIn(st tenantScope, fn func(ctx context.Context, restaurantID string, id int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid, ok := restaurantID(w, r, st)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := fn(r.Context(), rid, id); err != nil {
			writeError(w, r, err)
			return
		}
		noContent(w)
	}
}

// listIn answers the selected restaurant's collection.
func listIn[Out any](st tenantScope, fn func(restaurantID string) Out) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid, ok := restaurantID(w, r, st)
		if !ok {
			return
		}
		httpx.JSON(w, http.StatusOK, fn(rid))
	}
}

// Guard builds the permission middleware for resource:action.
type Guard func(resourceType string, action gate.Action) func(http.Handler) http.Handler

func (g Guard) handle(mux *http.ServeMux, pattern, resourceType string, action gate.Action, h http.HandlerFunc) {
	mux.Handle(pattern, g(resourceType, action)(h))
}
