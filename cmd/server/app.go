package main

import (
	"net/http"

	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/logger"
	"github.com/diewo77/foodcore/internal/metrics"
	"github.com/diewo77/foodcore/internal/policy"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	db        *gorm.DB
	routerCfg *policy.RouterConfig
	log       *zap.Logger
	handler   http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, routerCfg *policy.RouterConfig, log *zap.Logger) *App {
	app := &App{
		mux:       http.NewServeMux(),
		db:        db,
		routerCfg: routerCfg,
		log:       log,
	}
	app.setupRoutes()
	// metrics sits next to the mux: it reads r.Pattern, which the mux sets
	// on the request it receives.
	app.handler = withRecover(log, logger.Middleware(log)(routerCfg.Middleware(metrics.Middleware(app.mux))))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) setupRoutes() {
	a.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.Handle("GET /metrics", metrics.Handler())

	a.routerCfg.Register(a.mux)
}

// healthz reports degraded when the database does not answer. A stale
// backup is reported alongside the status without failing the check.
func (a *App) healthz(w http.ResponseWriter, _ *http.Request) {
	if err := a.db.Exec("SELECT 1").Error; err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"backupStale": a.routerCfg.Scheduler.Stale(),
	})
}

func withRecover(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic serving request",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", "", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
