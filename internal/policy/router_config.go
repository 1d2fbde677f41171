// Package policy wires services, authorization and HTTP handlers together.
package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/foodcore/internal/access"
	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/backup"
	"github.com/diewo77/foodcore/internal/catalog"
	"github.com/diewo77/foodcore/internal/config"
	"github.com/diewo77/foodcore/internal/handlers"
	"github.com/diewo77/foodcore/internal/i18n"
	"github.com/diewo77/foodcore/internal/inventory"
	"github.com/diewo77/foodcore/internal/licensing"
	"github.com/diewo77/foodcore/internal/orders"
	"github.com/diewo77/foodcore/internal/reports"
	"github.com/diewo77/foodcore/internal/session"
	"github.com/diewo77/foodcore/internal/staff"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/tenant"
	"go.uber.org/zap"
)

// Options are the settings NewRouterConfig needs from the configuration.
type Options struct {
	Owner             config.OwnerConfig
	SessionSecret     string
	StrictTransitions bool
	Backup            backup.SchedulerConfig
	// ProfileCacheTTL bounds how long a resolved permission profile is reused.
	ProfileCacheTTL time.Duration
}

// OptionsFrom extracts Options from the loaded configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Owner:             cfg.Owner,
		SessionSecret:     cfg.App.SessionSecret,
		StrictTransitions: cfg.App.StrictTransitions,
		Backup: backup.SchedulerConfig{
			Interval:           cfg.Backup.Interval,
			RetentionInterval:  cfg.Backup.RetentionInterval,
			RetentionHorizon:   cfg.Backup.RetentionHorizon,
			StaleAfter:         cfg.Backup.StaleAfter,
			StaleCheckInterval: cfg.Backup.StaleCheckInterval,
		},
		ProfileCacheTTL: 5 * time.Minute,
	}
}

// RouterConfig holds the configured services and handlers of the application.
type RouterConfig struct {
	// AuthGate provides authorization checks and middleware
	AuthGate *access.AuthGate
	Sessions *auth.Sessions
	Session  *session.Manager

	Scheduler *backup.Scheduler
	Backup    *backup.Service

	SessionHandler    *handlers.SessionHandler
	ActivationHandler *handlers.ActivationHandler
	OwnerHandler      *handlers.OwnerHandler
	CatalogHandler    *handlers.CatalogHandler
	OrderHandler      *handlers.OrderHandler
	InventoryHandler  *handlers.InventoryHandler
	UserHandler       *handlers.UserHandler
	ReportHandler     *handlers.ReportHandler
	BackupHandler     *handlers.BackupHandler
}

// NewRouterConfig builds every service on top of st and wires the handlers.
// A restore invalidates the session and the permission cache.
func NewRouterConfig(st *state.State, snapshots backup.SnapshotStore, opts Options, log *zap.Logger) *RouterConfig {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ProfileCacheTTL <= 0 {
		opts.ProfileCacheTTL = 5 * time.Minute
	}

	directory := tenant.NewDirectory(st, log)
	lic := licensing.NewService(st, log)
	staffSvc := staff.NewService(st, log)
	catalogSvc := catalog.NewService(st, log)
	engine := orders.NewEngine(st, log, orders.Options{StrictTransitions: opts.StrictTransitions})
	ledger := inventory.NewLedger(st, log)
	reportSvc := reports.NewService(st)
	scheduler := backup.NewScheduler(st, snapshots, opts.Backup, log)
	backupSvc := backup.NewService(st, snapshots, log)

	authGate := access.NewAuthGate(st, opts.ProfileCacheTTL)
	manager := session.NewManager(st, lic, staffSvc, opts.Owner, scheduler, log)
	sessions := auth.NewSessions(opts.SessionSecret, manager.Verify)

	backupSvc.OnRestore(manager.Invalidate)
	backupSvc.OnRestore(func(context.Context) { authGate.InvalidateAll() })

	return &RouterConfig{
		AuthGate:          authGate,
		Sessions:          sessions,
		Session:           manager,
		Scheduler:         scheduler,
		Backup:            backupSvc,
		SessionHandler:    handlers.NewSessionHandler(manager, sessions, directory),
		ActivationHandler: handlers.NewActivationHandler(lic, st),
		OwnerHandler:      handlers.NewOwnerHandler(directory, lic),
		CatalogHandler:    handlers.NewCatalogHandler(catalogSvc, engine, st),
		OrderHandler:      handlers.NewOrderHandler(engine, staffSvc, st),
		InventoryHandler:  handlers.NewInventoryHandler(ledger, st),
		UserHandler:       handlers.NewUserHandler(staffSvc, authGate, st),
		ReportHandler:     handlers.NewReportHandler(reportSvc, ledger, st),
		BackupHandler:     handlers.NewBackupHandler(backupSvc, scheduler, sessions, st),
	}
}

// Register adds every API route to mux.
func (c *RouterConfig) Register(mux *http.ServeMux) {
	guard := handlers.Guard(c.AuthGate.RequirePermission)

	c.SessionHandler.Register(mux)
	c.ActivationHandler.Register(mux)
	c.OwnerHandler.Register(mux)
	c.CatalogHandler.Register(mux, guard)
	c.OrderHandler.Register(mux, guard)
	c.InventoryHandler.Register(mux, guard)
	c.UserHandler.Register(mux, guard)
	c.ReportHandler.Register(mux, guard)
	c.BackupHandler.Register(mux, guard)
}

// Middleware resolves the request language and the session subject.
func (c *RouterConfig) Middleware(next http.Handler) http.Handler {
	return i18n.Middleware(c.Sessions.Middleware(next))
}
