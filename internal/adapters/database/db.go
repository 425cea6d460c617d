package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/adapters/config"
	"github.com/selivandex/marketmood/pkg/logger"
)

const healthTimeout = 2 * time.Second

// Pool sizes one connection pool
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// DB wraps a named sqlx connection pool
type DB struct {
	name string
	conn *sqlx.DB
}

// New opens the PostgreSQL store holding the corpus and daily analyses
func New(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := open("postgres", "postgres", cfg.GetDSN(), Pool{
		MaxOpen:     cfg.MaxOpenConns,
		MaxIdle:     cfg.MaxIdleConns,
		MaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)
	return db, nil
}

// NewClickHouse opens the mention history store. Writes are batched, so a
// small pool is enough.
func NewClickHouse(cfg *config.ClickHouseConfig) (*DB, error) {
	db, err := open("clickhouse", "clickhouse", cfg.DSN, Pool{
		MaxOpen:     5,
		MaxIdle:     2,
		MaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("ClickHouse connection established")
	return db, nil
}

func open(name, driver, dsn string, pool Pool) (*DB, error) {
	// sqlx.Connect pings, so a wrong DSN fails here and not on first query
	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}

	db := Wrap(name, conn)
	db.Configure(pool)
	return db, nil
}

// Wrap adapts an existing sqlx pool (tests, shared pools)
func Wrap(name string, conn *sqlx.DB) *DB {
	return &DB{name: name, conn: conn}
}

// Configure applies pool limits; zero values keep the driver defaults
func (db *DB) Configure(pool Pool) {
	if pool.MaxOpen > 0 {
		db.conn.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.conn.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		db.conn.SetConnMaxLifetime(pool.MaxLifetime)
	}
}

// Name identifies the store in logs and health output
func (db *DB) Name() string {
	return db.name
}

// Close closes database connection
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	logger.Info("closing database connection", zap.String("store", db.name))
	return db.conn.Close()
}

// Conn returns underlying *sql.DB connection (for migrations)
func (db *DB) Conn() *sql.DB {
	return db.conn.DB
}

// DB returns sqlx.DB
func (db *DB) DB() *sqlx.DB {
	return db.conn
}

// Health implements health.Checker
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", db.name, err)
	}
	return nil
}
