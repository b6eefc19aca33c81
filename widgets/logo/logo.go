// widgets/logo/logo.go
//
// Logo widget: brand mark plus an optional theme toggle.  Theme switching
// lives in a separate theme-toggle widget; when no such sibling is loaded
// the toggle slot is hidden and the logo renders alone.
package logo

import (
	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/widget"
)

const (
	ID = "logo"

	// ToggleID is the container id of the theme toggle sibling.
	ToggleID = "theme-toggle"
)

func init() {
	widget.Register(ID, func() widget.Widget { return &Logo{} })
}

var _ widget.Resizer = (*Logo)(nil)

// Logo has no timers and therefore no Destroy.
type Logo struct {
	el *dom.Element
}

func (l *Logo) Init(el *dom.Element, cfg widget.Config) error {
	l.el = el
	el.SetText("title", widget.String(cfg, "title", "MAXLINK"))
	l.syncToggle()
	return nil
}

// OnResize re-checks the toggle since siblings may have loaded since Init.
func (l *Logo) OnResize() { l.syncToggle() }

func (l *Logo) syncToggle() {
	display := "none"
	if l.el.Document().GetElementByID(ToggleID) != nil {
		display = ""
	}
	l.el.SetSlotStyle("toggle", "display", display)
}
