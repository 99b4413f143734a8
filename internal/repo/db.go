// Package repo contains the persistence layer: SQLite bootstrap plus free
// functions over *gorm.DB for the delivery-task, interaction, and webhook
// ledgers. Functions accept a context and return explicit errors; callers
// own transaction boundaries unless a function documents otherwise.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormotel "gorm.io/plugin/opentelemetry/tracing"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("repo: not found")

// Options tunes the SQLite connection.
type Options struct {
	// Path is the DSN, e.g. "data/bot.db" or "file::memory:?cache=shared".
	Path string
	// Tracing enables the gorm OpenTelemetry plugin.
	Tracing bool
}

// Open connects to SQLite, applies connection pragmas, runs migrations for
// the three ledgers, and optionally instruments the handle with tracing.
func Open(opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("repo: open sqlite: %w", err)
	}

	// WAL keeps webhook ingestion writes from stalling delivery reads;
	// busy_timeout rides out writer contention instead of failing fast.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("repo: %s: %w", pragma, err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if opts.Tracing {
		if err := db.Use(gormotel.NewPlugin(gormotel.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("repo: enable tracing: %w", err)
		}
	}
	return db, nil
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.DeliveryTask{},
		&domain.InteractionRecord{},
		&domain.WebhookProcessingRecord{},
	); err != nil {
		return fmt.Errorf("repo: migrate: %w", err)
	}
	return nil
}

// translate maps gorm sentinels onto the package's own.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Ping verifies the underlying connection is alive. Used by the health
// endpoint.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
