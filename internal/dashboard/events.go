// internal/dashboard/events.go
//
// Lifecycle events.
//
// Context
// -------
// Every transition a caller might care about is published as a CloudEvent
// so failures are individually observable instead of console-only.  The
// live feed forwards them to browsers, tests subscribe directly.
//
//   • com.maxlink.dashboard.widgets_loaded  – once per Init, after the join.
//   • com.maxlink.dashboard.ready           – right after widgets_loaded,
//                                             once saved state is applied.
//   • com.maxlink.widget.loaded             – one widget reached Initialized.
//   • com.maxlink.widget.failed             – one widget reached Failed.
//   • com.maxlink.widget.reloaded           – ReloadWidget finished.
//   • com.maxlink.dashboard.resized         – debounced resize fanned out.
//
// Notes
// -----
//   • Observers run synchronously on the goroutine that emits, which may be
//     any pipeline goroutine.  Implementations must be concurrency-safe and
//     quick; errors are logged and otherwise ignored.
package dashboard

import (
	"context"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event types emitted by the manager.
const (
	EventWidgetsLoaded  = "com.maxlink.dashboard.widgets_loaded"
	EventDashboardReady = "com.maxlink.dashboard.ready"
	EventWidgetLoaded   = "com.maxlink.widget.loaded"
	EventWidgetFailed   = "com.maxlink.widget.failed"
	EventWidgetReloaded = "com.maxlink.widget.reloaded"
	EventResized        = "com.maxlink.dashboard.resized"
)

// EventSource is the CloudEvents source attribute of every manager event.
const EventSource = "maxlink/dashboard"

// Observer receives manager events.
type Observer interface {
	OnEvent(ctx context.Context, event cloudevents.Event) error
	ObserverID() string
}

// FunctionalObserver adapts a func to Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver returns an observer that calls handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) *FunctionalObserver {
	return &FunctionalObserver{id: id, handler: handler}
}

func (o *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return o.handler(ctx, event)
}

func (o *FunctionalObserver) ObserverID() string { return o.id }

// WidgetsLoaded is the payload of EventWidgetsLoaded.
type WidgetsLoaded struct {
	Widgets []string `json:"widgets"`
	Loaded  []string `json:"loaded"`
	Failed  []string `json:"failed"`
}

// Ready is the payload of EventDashboardReady.  Restored counts widgets
// whose saved state was applied.
type Ready struct {
	Widgets  []string `json:"widgets"`
	Restored int      `json:"restored"`
}

// Resized is the payload of EventResized.
type Resized struct {
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Notified []string `json:"notified"`
}

type registration struct {
	observer Observer
	types    []string
}

type observers struct {
	mu   sync.RWMutex
	regs []registration
}

// register adds o, replacing an earlier registration with the same id.
// No types means every event.
func (s *observers) register(o Observer, types ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs = slices.DeleteFunc(s.regs, func(r registration) bool {
		return r.observer.ObserverID() == o.ObserverID()
	})
	s.regs = append(s.regs, registration{observer: o, types: types})
}

func (s *observers) unregister(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs = slices.DeleteFunc(s.regs, func(r registration) bool {
		return r.observer.ObserverID() == o.ObserverID()
	})
}

func (s *observers) matching(eventType string) []Observer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Observer
	for _, r := range s.regs {
		if len(r.types) == 0 || slices.Contains(r.types, eventType) {
			out = append(out, r.observer)
		}
	}
	return out
}

// newEvent builds a CloudEvent with a time-ordered id.
func newEvent(eventType, subject string, data any) cloudevents.Event {
	event := cloudevents.NewEvent()

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	event.SetID(id.String())
	event.SetSource(EventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	if subject != "" {
		event.SetSubject(subject)
	}
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// RegisterObserver subscribes o to the given event types, or to every event
// when none are given.
func (m *Manager) RegisterObserver(o Observer, types ...string) {
	m.observers.register(o, types...)
}

// UnregisterObserver is idempotent.
func (m *Manager) UnregisterObserver(o Observer) {
	m.observers.unregister(o)
}

func (m *Manager) emit(ctx context.Context, eventType, subject string, data any) {
	obs := m.observers.matching(eventType)
	if len(obs) == 0 {
		return
	}
	event := newEvent(eventType, subject, data)
	for _, o := range obs {
		if err := o.OnEvent(ctx, event); err != nil {
			m.log.Warnw("observer failed", "observer", o.ObserverID(), "event", eventType, "err", err)
		}
	}
}
