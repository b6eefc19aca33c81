package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maxlink/dashboard/internal/dashboard"
	"github.com/maxlink/dashboard/internal/widget"
)

type fakeController struct {
	statuses   []dashboard.Status
	reloadErr  error
	reloaded   []string
	configs    map[string]widget.Config
	refreshed  int
	saves      int
	stateErr   error
	restoreErr error
}

func (f *fakeController) Initialized() bool             { return true }
func (f *fakeController) Statuses() []dashboard.Status { return f.statuses }
func (f *fakeController) Viewport() (float64, float64) { return 1920, 1080 }

func (f *fakeController) Status(id string) (dashboard.Status, bool) {
	for _, s := range f.statuses {
		if s.ID == id {
			return s, true
		}
	}
	return dashboard.Status{}, false
}

func (f *fakeController) ReloadWidget(_ context.Context, id string) error {
	f.reloaded = append(f.reloaded, id)
	return f.reloadErr
}

func (f *fakeController) RefreshAll(context.Context) int {
	f.refreshed++
	return 2
}

func (f *fakeController) SetConfig(id string, cfg widget.Config) bool {
	if id != "clock" {
		return false
	}
	f.configs[id] = cfg
	return true
}

func (f *fakeController) State() dashboard.DashboardState {
	return dashboard.DashboardState{Widgets: map[string]map[string]any{"clock": {"format": "12h"}}}
}

func (f *fakeController) SaveState(context.Context) error {
	f.saves++
	return f.stateErr
}

func (f *fakeController) RestoreState(context.Context) (int, error) {
	return 1, f.restoreErr
}

func newServer(t *testing.T) (*fakeController, *httptest.Server) {
	t.Helper()
	ctl := &fakeController{
		statuses: []dashboard.Status{
			{ID: "clock", State: dashboard.StateInitialized},
			{ID: "broken", State: dashboard.StateFailed, Stage: dashboard.StageScript, Error: "missing"},
		},
		configs: map[string]widget.Config{},
	}
	srv := httptest.NewServer(Routes(ctl, zaptest.NewLogger(t).Sugar()))
	t.Cleanup(srv.Close)
	return ctl, srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestList(t *testing.T) {
	_, srv := newServer(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/widgets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, true, body["initialized"])
	widgets := body["widgets"].([]any)
	require.Len(t, widgets, 2)
	first := widgets[0].(map[string]any)
	assert.Equal(t, "clock", first["id"])
	assert.Equal(t, "initialized", first["state"])
	second := widgets[1].(map[string]any)
	assert.Equal(t, "failed", second["state"])
	assert.Equal(t, "script", second["stage"])
}

func TestGet(t *testing.T) {
	_, srv := newServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/widgets/clock", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "clock", body["id"])

	resp, body = do(t, http.MethodGet, srv.URL+"/widgets/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestReload(t *testing.T) {
	ctl, srv := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/widgets/clock/reload", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"clock"}, ctl.reloaded)

	ctl.reloadErr = dashboard.ErrUnknownWidget
	resp, _ = do(t, http.MethodPost, srv.URL+"/widgets/ghost/reload", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ctl.reloadErr = dashboard.ErrInvalidID
	resp, _ = do(t, http.MethodPost, srv.URL+"/widgets/x/reload", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctl.reloadErr = errors.New("boom")
	resp, _ = do(t, http.MethodPost, srv.URL+"/widgets/clock/reload", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestConfig(t *testing.T) {
	ctl, srv := newServer(t)

	resp, _ := do(t, http.MethodPut, srv.URL+"/widgets/clock/config", `{"format":"12h"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "12h", ctl.configs["clock"]["format"])

	resp, _ = do(t, http.MethodPut, srv.URL+"/widgets/broken/config", `{}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/widgets/clock/config", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/widgets/ghost/config", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRefresh(t *testing.T) {
	ctl, srv := newServer(t)
	resp, body := do(t, http.MethodPost, srv.URL+"/widgets/refresh", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["refreshed"])
	assert.Equal(t, 1, ctl.refreshed)
}

func TestState(t *testing.T) {
	ctl, srv := newServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/state", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	widgets := body["widgets"].(map[string]any)
	assert.Equal(t, "12h", widgets["clock"].(map[string]any)["format"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/state/save", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, ctl.saves)

	resp, body = do(t, http.MethodPost, srv.URL+"/state/restore", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["restored"])
}

func TestState_Errors(t *testing.T) {
	ctl, srv := newServer(t)

	ctl.stateErr = dashboard.ErrNoStateStore
	resp, _ := do(t, http.MethodPost, srv.URL+"/state/save", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	ctl.restoreErr = dashboard.ErrNoSavedState
	resp, _ = do(t, http.MethodPost, srv.URL+"/state/restore", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ctl.restoreErr = errors.New("disk full")
	resp, _ = do(t, http.MethodPost, srv.URL+"/state/restore", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
