package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maxlink/dashboard/internal/dashboard"
)

const (
	upsertState = `INSERT INTO dashboard_state (name, state, saved_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE state = VALUES(state), saved_at = VALUES(saved_at)`
	selectState = `SELECT state FROM dashboard_state WHERE name = ?`
)

// StateStore keeps one row of dashboard state per dashboard name.  It
// satisfies dashboard.StateStore.
type StateStore struct {
	db   *sqlx.DB
	name string
}

// NewStateStore returns a store for the row called name.
func NewStateStore(db *sqlx.DB, name string) *StateStore {
	return &StateStore{db: db, name: name}
}

func (s *StateStore) SaveState(ctx context.Context, raw []byte) error {
	_, err := s.db.ExecContext(ctx, upsertState, s.name, string(raw), time.Now().UTC())
	return err
}

func (s *StateStore) LoadState(ctx context.Context) ([]byte, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, selectState, s.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dashboard.ErrNoSavedState
	}
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}
