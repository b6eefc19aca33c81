// Package database opens the optional widget table and state store.  The
// driver is go-sql-driver/mysql, which also speaks to MariaDB.
//
// Public entry points:
//
//	Open(ctx, dsn, maxOpen, maxIdle) – pool with a bounded lifetime.
//	EnsureSchema(ctx, db)            – create the tables if missing.
//	NewStateStore(db, name)          – dashboard state in dashboard_state.
//
// Open pings before returning so a misconfigured table registry fails at
// boot rather than on the first Init.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// ConnMaxLifetime caps how long a pooled connection is reused.
const ConnMaxLifetime = 30 * time.Minute

// Open returns a *sqlx.DB for dsn.  Zero pool sizes fall back to 5 open and
// 2 idle; the dashboard issues one query per Init.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	configure(db, maxOpen, maxIdle)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}
	return db, nil
}

func configure(db *sqlx.DB, maxOpen, maxIdle int) {
	if maxOpen <= 0 {
		maxOpen = 5
	}
	if maxIdle <= 0 {
		maxIdle = 2
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(ConnMaxLifetime)
}

// Schema is the DDL for the widget table read by discovery.Table.
const Schema = `CREATE TABLE IF NOT EXISTS dashboard_widget (
  widget_id  VARCHAR(64) PRIMARY KEY,
  pos_top    VARCHAR(16) NULL,
  pos_left   VARCHAR(16) NULL,
  width      VARCHAR(16) NULL,
  height     VARCHAR(16) NULL,
  z_index    INT NULL,
  config     JSON NULL,
  sort_order INT NOT NULL DEFAULT 0,
  enabled    BOOLEAN NOT NULL DEFAULT TRUE
)`

// StateSchema is the DDL for the table behind StateStore.
const StateSchema = `CREATE TABLE IF NOT EXISTS dashboard_state (
  name     VARCHAR(64) PRIMARY KEY,
  state    JSON NOT NULL,
  saved_at DATETIME NOT NULL
)`

// EnsureSchema creates the widget and state tables when they do not
// exist.  The driver runs one statement per Exec.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, ddl := range []string{Schema, StateSchema} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
