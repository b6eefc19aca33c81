// internal/api/api.go
//
// JSON control surface for the dashboard.
//
// Routes (mounted under /api)
// ---------------------------
//
//	GET  /widgets               lifecycle status of every widget, in order
//	GET  /widgets/{id}          one widget's status
//	POST /widgets/{id}/reload   tear down and reload one widget
//	PUT  /widgets/{id}/config   merge new settings into a live widget
//	POST /widgets/refresh       ask every widget to reload its data
//	GET  /state                 state reported by every stateful widget
//	POST /state/save            persist that state
//	POST /state/restore         apply the persisted state to live widgets
//
// Errors are returned as {"error": "..."} with a matching status code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maxlink/dashboard/internal/dashboard"
	"github.com/maxlink/dashboard/internal/widget"
)

// Controller is the slice of *dashboard.Manager the API drives.
type Controller interface {
	Initialized() bool
	Statuses() []dashboard.Status
	Status(id string) (dashboard.Status, bool)
	ReloadWidget(ctx context.Context, id string) error
	RefreshAll(ctx context.Context) int
	SetConfig(id string, cfg widget.Config) bool
	Viewport() (width, height float64)
	State() dashboard.DashboardState
	SaveState(ctx context.Context) error
	RestoreState(ctx context.Context) (int, error)
}

// maxConfigBody caps PUT /widgets/{id}/config payloads.
const maxConfigBody = 64 << 10

type handlers struct {
	ctl Controller
	log *zap.SugaredLogger
}

// Routes returns the API router.
func Routes(ctl Controller, log *zap.SugaredLogger) chi.Router {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	h := &handlers{ctl: ctl, log: log}

	r := chi.NewRouter()
	r.Get("/widgets", h.list)
	r.Post("/widgets/refresh", h.refresh)
	r.Get("/widgets/{id}", h.get)
	r.Post("/widgets/{id}/reload", h.reload)
	r.Put("/widgets/{id}/config", h.config)
	r.Get("/state", h.state)
	r.Post("/state/save", h.saveState)
	r.Post("/state/restore", h.restoreState)
	return r
}

type listResponse struct {
	Initialized bool               `json:"initialized"`
	Viewport    viewport           `json:"viewport"`
	Widgets     []dashboard.Status `json:"widgets"`
}

type viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (h *handlers) list(w http.ResponseWriter, _ *http.Request) {
	width, height := h.ctl.Viewport()
	widgets := h.ctl.Statuses()
	if widgets == nil {
		widgets = []dashboard.Status{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Initialized: h.ctl.Initialized(),
		Viewport:    viewport{Width: width, Height: height},
		Widgets:     widgets,
	})
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ctl.Status(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, dashboard.ErrUnknownWidget)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.ctl.ReloadWidget(r.Context(), id)
	switch {
	case errors.Is(err, dashboard.ErrUnknownWidget):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, dashboard.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		h.log.Warnw("api reload failed", "widget", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	st, _ := h.ctl.Status(id)
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) config(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.ctl.Status(id); !ok {
		writeError(w, http.StatusNotFound, dashboard.ErrUnknownWidget)
		return
	}

	var cfg widget.Config
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBody)).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !h.ctl.SetConfig(id, cfg) {
		writeError(w, http.StatusConflict, errors.New("widget does not accept config"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	n := h.ctl.RefreshAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"refreshed": n})
}

func (h *handlers) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.State())
}

func (h *handlers) saveState(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.SaveState(r.Context()); err != nil {
		h.stateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) restoreState(w http.ResponseWriter, r *http.Request) {
	n, err := h.ctl.RestoreState(r.Context())
	if err != nil {
		h.stateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"restored": n})
}

func (h *handlers) stateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrNoStateStore):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, dashboard.ErrNoSavedState):
		writeError(w, http.StatusNotFound, err)
	default:
		h.log.Warnw("api state request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
