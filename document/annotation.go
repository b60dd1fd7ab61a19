package document

import (
	"fmt"

	"github.com/wudi/pdfview/geom"
)

// Annotation is a closed variant over the annotation kinds the engine
// understands: Ink, FreeText and Highlight. Sites that render, persist or
// erase annotations switch over these three types exhaustively; an unknown
// kind cannot occur because the interface is sealed to this package.
type Annotation interface {
	// Ref is the reference the owning document assigned to the
	// annotation, or zero before it has been added to a document.
	Ref() int

	// Bounds returns the document-space bounding rectangle.
	Bounds() geom.Rect

	sealed()
}

// Ink is a freehand stroke annotation: one or more paths of document-space
// points drawn with a shared color and stroke width.
type Ink struct {
	XRef  int
	Paths [][]geom.Point
	Color Color
	Width float64
}

func (a Ink) Ref() int { return a.XRef }

func (a Ink) Bounds() geom.Rect {
	var r geom.Rect
	first := true
	for _, path := range a.Paths {
		if len(path) == 0 {
			continue
		}
		b := geom.Bounds(path)
		if first {
			r = b
			first = false
		} else {
			r = r.Union(b)
		}
	}
	return r
}

func (Ink) sealed() {}

// FreeText is a positioned text note. Text may contain Markdown; the overlay
// renders it as plain text and the annotation report renders it fully.
type FreeText struct {
	XRef  int
	Rect  geom.Rect
	Text  string
	Color Color
}

func (a FreeText) Ref() int          { return a.XRef }
func (a FreeText) Bounds() geom.Rect { return a.Rect }
func (FreeText) sealed()             {}

// Highlight marks a document-space rectangle, typically a word box.
type Highlight struct {
	XRef  int
	Rect  geom.Rect
	Color Color
}

func (a Highlight) Ref() int          { return a.XRef }
func (a Highlight) Bounds() geom.Rect { return a.Rect }
func (Highlight) sealed()             {}

// Color is an RGB triple with components in [0,1].
type Color struct {
	R, G, B float64
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (Color, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	var r, g, b int
	switch len(s) {
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return Color{}, fmt.Errorf("parse hex color %q: %w", s, err)
		}
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return Color{}, fmt.Errorf("parse hex color %q: %w", s, err)
		}
		r, g, b = r*17, g*17, b*17
	default:
		return Color{}, fmt.Errorf("parse hex color %q: bad length", s)
	}
	return Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}, nil
}
