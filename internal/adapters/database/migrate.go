package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/migrations"
	"github.com/selivandex/marketmood/pkg/logger"
)

// Migrator applies the PostgreSQL schema. It shares the caller's *sql.DB and
// is not closed separately: closing it would close the pool.
type Migrator struct {
	m      *migrate.Migrate
	source string
}

// NewMigrator uses the migrations compiled into the binary, or the directory
// at path when path is not empty
func NewMigrator(db *sql.DB, path string) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	var m *migrate.Migrate
	source := "embedded"

	if path != "" {
		source = "file://" + path
		m, err = migrate.NewWithDatabaseInstance(source, "postgres", driver)
	} else {
		src, srcErr := iofs.New(migrations.Postgres, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("failed to open embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{m: m, source: source}, nil
}

// Up applies all pending migrations. A dirty schema is refused; it needs a
// manual Force after the failed migration has been inspected.
func (mg *Migrator) Up() error {
	current, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("schema is dirty at version %d, fix it and run migrate force", current)
	}

	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no new migrations to apply",
				zap.Uint("version", current),
				zap.String("source", mg.source),
			)
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	next, _, err := mg.Version()
	if err != nil {
		return err
	}

	logger.Info("migrations applied",
		zap.Uint("old_version", current),
		zap.Uint("new_version", next),
		zap.String("source", mg.source),
	)
	return nil
}

// Down rolls back the last applied migration
func (mg *Migrator) Down() error {
	current, _, err := mg.Version()
	if err != nil {
		return err
	}

	if err := mg.m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	logger.Info("migration rolled back", zap.Uint("from_version", current))
	return nil
}

// Force marks version as applied and clean without running anything
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	logger.Warn("migration version forced", zap.Int("version", version))
	return nil
}

// Version returns the applied version; 0 when nothing is applied yet
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// RunMigrations applies all pending PostgreSQL migrations
func RunMigrations(db *sql.DB, path string) error {
	mg, err := NewMigrator(db, path)
	if err != nil {
		return err
	}
	return mg.Up()
}

// ApplyClickHouseSchema executes the embedded ClickHouse DDL in file order.
// Statements are idempotent (IF NOT EXISTS).
func ApplyClickHouseSchema(ctx context.Context, db *sqlx.DB) error {
	statements, err := schemaStatements(migrations.ClickHouse, "clickhouse")
	if err != nil {
		return err
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply clickhouse schema: %w", err)
		}
	}

	logger.Info("clickhouse schema applied", zap.Int("statements", len(statements)))
	return nil
}

// schemaStatements reads every .sql file under dir and splits it on ';'
func schemaStatements(fsys fs.FS, dir string) ([]string, error) {
	files, err := fs.Glob(fsys, dir+"/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var statements []string
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		for _, stmt := range strings.Split(string(data), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				statements = append(statements, stmt)
			}
		}
	}

	return statements, nil
}
