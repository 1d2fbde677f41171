// Package db opens the gorm connection and prepares the schema.
package db

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/diewo77/foodcore/internal/backup"
	"github.com/diewo77/foodcore/internal/config"
	"github.com/diewo77/foodcore/internal/store"
	migrate "github.com/golang-migrate/migrate/v4"
	// registers the postgres database driver for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Open connects with the configured driver. Postgres is retried a few times
// to give the server time to start.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	switch cfg.Driver {
	case "sqlite":
		log.Info("opening sqlite database", zap.String("path", cfg.Path))
		return gorm.Open(sqlite.Open(cfg.DSN()), gormCfg)
	case "postgres":
		log.Info("connecting to postgres",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("dbname", cfg.DBName),
			zap.String("user", cfg.User),
		)
		var conn *gorm.DB
		var err error
		for i := 0; i < 5; i++ {
			conn, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
			if err == nil {
				return conn, nil
			}
			log.Warn("database connection failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(2 * time.Second)
		}
		return nil, fmt.Errorf("db: connect after retries: %w", err)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Migrate creates or updates the tables through AutoMigrate.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&store.Entry{}, &backup.Record{}); err != nil {
		return fmt.Errorf("db: automigrate: %w", err)
	}
	return nil
}

// RunSQLMigrations applies the embedded SQL migrations with golang-migrate.
// Only postgres is supported; databaseURL is in postgres:// form.
func RunSQLMigrations(databaseURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("db: migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("db: migrate init: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db: migrate up: %w", err)
	}
	return nil
}

// Prepare runs SQL migrations when requested on postgres and AutoMigrate otherwise.
func Prepare(conn *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	if cfg.App.Migrations && cfg.Database.Driver == "postgres" {
		log.Info("running sql migrations")
		return RunSQLMigrations(cfg.Database.URL())
	}
	return Migrate(conn)
}
