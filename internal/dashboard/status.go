package dashboard

import (
	"fmt"
	"time"
)

// State is one step of a widget's load pipeline.
type State int

const (
	StateDiscovered State = iota
	StateMarkupFetching
	StateInjected
	StateAssetsLoading
	StateInitialized
	StateFailed
)

var stateNames = [...]string{
	StateDiscovered:     "discovered",
	StateMarkupFetching: "markup_fetching",
	StateInjected:       "injected",
	StateAssetsLoading:  "assets_loading",
	StateInitialized:    "initialized",
	StateFailed:         "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts the names MarshalText produces.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown widget state %q", b)
}

// Terminal reports whether no further transition follows.
func (s State) Terminal() bool { return s == StateInitialized || s == StateFailed }

// Failure stages, also used as the "stage" metric label.
const (
	StageMarkup  = "markup"
	StageScript  = "script"
	StageBinding = "binding"
	StageInit    = "init"
)

// Status is the observable state of one widget id.
type Status struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
