package view

import "github.com/wudi/pdfview/geom"

// Transform maps between canvas pixels and document-space points for the
// render result currently on screen. It reflects the scale and offset the
// renderer actually used, which can differ from what the state requested
// under fit-page. A Transform is immutable once built.
type Transform struct {
	Scale    float64
	OffsetX  float64
	OffsetY  float64
	Rotation int
	PageW    float64
	PageH    float64

	fwd geom.Matrix
	inv geom.Matrix
}

// Identity is the neutral transform used before any page has rendered:
// scale 1, no offset, no rotation. Mapping through it is the defensive
// default rather than an error.
func Identity() Transform {
	return Transform{Scale: 1, fwd: geom.Identity(), inv: geom.Identity()}
}

// NewTransform builds the transform for a displayed render result. A
// degenerate scale falls back to the identity transform instead of failing,
// since a broken mapper would cascade into a frozen view.
func NewTransform(scale, offsetX, offsetY float64, rotation int, pageW, pageH float64) Transform {
	fwd := geom.Rotate90(rotation, pageW, pageH).
		Multiply(geom.Scale(scale, scale)).
		Multiply(geom.Translate(offsetX, offsetY))
	inv, err := fwd.Inverse()
	if err != nil {
		return Identity()
	}
	return Transform{
		Scale:    scale,
		OffsetX:  offsetX,
		OffsetY:  offsetY,
		Rotation: rotation,
		PageW:    pageW,
		PageH:    pageH,
		fwd:      fwd,
		inv:      inv,
	}
}

// ToCanvas maps a document-space point to canvas pixels.
func (t Transform) ToCanvas(p geom.Point) geom.Point { return t.fwd.Transform(p) }

// ToDocument maps a canvas pixel to document space.
func (t Transform) ToDocument(p geom.Point) geom.Point { return t.inv.Transform(p) }

// RectToCanvas maps a document-space rectangle to a normalized canvas
// rectangle. Quarter-turn rotations swap which corners are extremal, hence
// the normalize.
func (t Transform) RectToCanvas(r geom.Rect) geom.Rect {
	a := t.ToCanvas(geom.Point{X: r.X0, Y: r.Y0})
	b := t.ToCanvas(geom.Point{X: r.X1, Y: r.Y1})
	return geom.Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}.Normalize()
}
