// Package layout places widget containers on the dashboard and publishes
// the viewport-centre variables that self-centring widgets read.
package layout

import (
	"strconv"

	"github.com/maxlink/dashboard/internal/dom"
)

// Root variable names published by Center.
const (
	VarCentreH = "--centre-h"
	VarCentreD = "--centre-d"
)

// Position is a CSS top/left pair, e.g. {"50%", "25%"}.
type Position struct {
	Top  string `json:"top,omitempty"  yaml:"top"  koanf:"top"`
	Left string `json:"left,omitempty" yaml:"left" koanf:"left"`
}

// Size is a CSS width/height pair.
type Size struct {
	Width  string `json:"width,omitempty"  yaml:"width"  koanf:"width"`
	Height string `json:"height,omitempty" yaml:"height" koanf:"height"`
}

// Apply positions el absolutely around its reference point, then applies
// whichever of pos, size, and zIndex are set.  Missing fields are skipped.
func Apply(el *dom.Element, pos *Position, size *Size, zIndex *int) {
	el.SetStyle("position", "absolute")
	el.SetStyle("transform", "translate(-50%, -50%)")

	if pos != nil {
		if pos.Top != "" {
			el.SetStyle("top", pos.Top)
		}
		if pos.Left != "" {
			el.SetStyle("left", pos.Left)
		}
	}
	if size != nil {
		if size.Width != "" {
			el.SetStyle("width", size.Width)
		}
		if size.Height != "" {
			el.SetStyle("height", size.Height)
		}
	}
	if zIndex != nil {
		el.SetStyle("z-index", strconv.Itoa(*zIndex))
	}
}

// Center publishes half the viewport height and width as root variables.
// Non-positive dimensions leave the previous values untouched.
func Center(doc *dom.Document, width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	doc.SetVar(VarCentreH, px(height/2))
	doc.SetVar(VarCentreD, px(width/2))
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
