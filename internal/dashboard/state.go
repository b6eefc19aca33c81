package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/maxlink/dashboard/internal/widget"
)

var (
	ErrNoStateStore = errors.New("dashboard: no state store configured")
	ErrNoSavedState = errors.New("dashboard: no saved state")
)

// StateStore persists one encoded DashboardState.  LoadState returns
// ErrNoSavedState when nothing has been saved yet.
type StateStore interface {
	SaveState(ctx context.Context, raw []byte) error
	LoadState(ctx context.Context) ([]byte, error)
}

// DashboardState is what every widget.Stater reported at one moment,
// keyed by widget id.
type DashboardState struct {
	Timestamp time.Time                 `json:"timestamp"`
	Widgets   map[string]map[string]any `json:"widgets"`
}

// State collects GetState from every live widget that implements
// widget.Stater.  A widget that panics is left out.
func (m *Manager) State() DashboardState {
	var ids []string
	var staters []widget.Stater
	m.mu.RLock()
	for _, id := range sortedIDs(m.loaded) {
		if s, ok := m.loaded[id].(widget.Stater); ok {
			ids = append(ids, id)
			staters = append(staters, s)
		}
	}
	m.mu.RUnlock()

	out := DashboardState{Timestamp: time.Now().UTC(), Widgets: make(map[string]map[string]any, len(staters))}
	for i, s := range staters {
		var state map[string]any
		err := m.safeCall(ids[i], "GetState", func() error {
			state = s.GetState()
			return nil
		})
		if err == nil && state != nil {
			out.Widgets[ids[i]] = state
		}
	}
	return out
}

// SaveState writes State to the configured store.
func (m *Manager) SaveState(ctx context.Context) error {
	if m.store == nil {
		return ErrNoStateStore
	}
	st := m.State()
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := m.store.SaveState(ctx, raw); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	m.log.Infow("dashboard state saved", "widgets", len(st.Widgets))
	return nil
}

// RestoreState hands each live widget.Stater its saved entry and returns
// how many were restored.  Entries for widgets that are not loaded, or
// that do not implement widget.Stater, are skipped.
func (m *Manager) RestoreState(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, ErrNoStateStore
	}
	raw, err := m.store.LoadState(ctx)
	if err != nil {
		return 0, err
	}
	var saved DashboardState
	if err := json.Unmarshal(raw, &saved); err != nil {
		return 0, fmt.Errorf("decode state: %w", err)
	}

	n := 0
	for _, id := range sortedKeys(saved.Widgets) {
		s, ok := m.GetWidget(id).(widget.Stater)
		if !ok {
			continue
		}
		if err := m.safeCall(id, "SetState", func() error {
			s.SetState(saved.Widgets[id])
			return nil
		}); err == nil {
			n++
		}
	}
	m.log.Infow("dashboard state restored", "widgets", n, "saved_at", saved.Timestamp)
	return n, nil
}

func sortedKeys(in map[string]map[string]any) []string {
	ids := make([]string, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FileStore keeps the state in one JSON file.  Saves write a temporary
// file next to Path and rename it into place.
type FileStore struct {
	Path string
}

func (f FileStore) SaveState(_ context.Context, raw []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

func (f FileStore) LoadState(context.Context) ([]byte, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSavedState
	}
	return raw, err
}
