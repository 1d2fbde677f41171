package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/foodcore/internal/backup"
	"github.com/diewo77/foodcore/internal/config"
	"github.com/diewo77/foodcore/internal/db"
	"github.com/diewo77/foodcore/internal/logger"
	"github.com/diewo77/foodcore/internal/metrics"
	"github.com/diewo77/foodcore/internal/policy"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()

	zlog, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
		Service:     "foodcore",
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	metrics.Register()

	dbConn, err := db.Open(cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.Prepare(dbConn, cfg, zlog); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
	if *migrateOnlyFlag {
		zlog.Info("migrations completed")
		return
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	st := state.New(store.New(dbConn, zlog), zlog, time.Now)
	st.Load(rootCtx)

	snapshots, closeSnapshots := openSnapshots(rootCtx, cfg, dbConn, zlog)
	defer closeSnapshots()

	routerCfg := policy.NewRouterConfig(st, snapshots, policy.OptionsFrom(cfg), zlog)
	routerCfg.Session.Start(rootCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(dbConn, routerCfg, zlog),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zlog.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.Bool("dev", cfg.App.Dev),
			zap.String("backup_backend", cfg.Backup.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutdown signal received")

	routerCfg.Session.Close()
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
	zlog.Info("server stopped gracefully")
}

// openSnapshots selects the snapshot backend. Mongo failures fall back to the
// relational store so the terminal keeps taking backups.
func openSnapshots(ctx context.Context, cfg *config.Config, conn *gorm.DB, zlog *zap.Logger) (backup.SnapshotStore, func()) {
	if cfg.Backup.Backend != "mongo" {
		return backup.NewGormStore(conn, zlog), func() {}
	}
	ms, err := backup.ConnectMongo(ctx, backup.MongoConfig{
		URI:      cfg.Backup.MongoURI,
		Database: cfg.Backup.MongoDatabase,
		Timeout:  10 * time.Second,
	}, zlog)
	if err != nil {
		zlog.Warn("mongo snapshot store unavailable, using database", zap.Error(err))
		return backup.NewGormStore(conn, zlog), func() {}
	}
	return ms, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ms.Close(closeCtx); err != nil {
			zlog.Warn("closing mongo client", zap.Error(err))
		}
	}
}
