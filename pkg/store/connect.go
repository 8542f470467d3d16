package store

import (
	"embed"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ConnectPostgres opens a pooled connection via sqlx over the pgx stdlib
// driver (this package's own "DD-010" migration from lib/pq to pgx) and
// applies every pending goose migration embedded in this package.
func ConnectPostgres(cfg config.StoreConfig) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "store: invalid StoreConfig")
	}

	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return nil, apperrors.NewDatabaseError("connect", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: goose dialect setup failed")
	}
	dir := cfg.MigrationsDir
	if dir == "" {
		dir = "migrations"
	}
	if err := goose.Up(db.DB, dir); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: migration failed")
	}
	return db, nil
}
