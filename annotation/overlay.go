package annotation

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/geom"
	"github.com/wudi/pdfview/view"
)

// RenderOverlay draws the page's annotations into a transparent canvas-sized
// bitmap, positioned through the same transform the page render used. At most
// cfg.MaxRendered annotations are drawn; the count of skipped ones is
// returned so the caller can surface it.
func (e *Engine) RenderOverlay(page int, tr view.Transform, cw, ch int) (*image.RGBA, int, error) {
	annots, err := e.handle.Annotations(page)
	if err != nil {
		return nil, 0, fmt.Errorf("page annotations: %w", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, cw, ch))
	skipped := 0
	for i, a := range annots {
		if i >= e.cfg.MaxRendered {
			skipped = len(annots) - e.cfg.MaxRendered
			break
		}
		drawAnnotation(dst, a, tr)
	}
	if e.drawing {
		drawStroke(dst, e.stroke, rgba(e.color, 0xff), e.width)
	}
	return dst, skipped, nil
}

func drawAnnotation(dst *image.RGBA, a document.Annotation, tr view.Transform) {
	switch v := a.(type) {
	case document.Ink:
		c := rgba(v.Color, 0xff)
		w := v.Width * tr.Scale
		for _, path := range v.Paths {
			pts := make([]geom.Point, len(path))
			for i, p := range path {
				pts[i] = tr.ToCanvas(p)
			}
			drawStroke(dst, pts, c, w)
		}
	case document.Highlight:
		fillRect(dst, tr.RectToCanvas(v.Rect), rgba(v.Color, 0x60))
	case document.FreeText:
		r := tr.RectToCanvas(v.Rect)
		strokeRect(dst, r, rgba(v.Color, 0xff))
		drawLabel(dst, r, plainText(v.Text))
	}
}

// drawStroke renders a polyline by stamping filled squares along each
// segment. Good enough for overlay preview; the collaborator draws the
// appearance stream on save.
func drawStroke(dst *image.RGBA, pts []geom.Point, c color.RGBA, width float64) {
	if width < 1 {
		width = 1
	}
	half := int(math.Ceil(width / 2))
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		steps := int(math.Hypot(b.X-a.X, b.Y-a.Y)) + 1
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			stamp(dst, int(a.X+(b.X-a.X)*t), int(a.Y+(b.Y-a.Y)*t), half, c)
		}
	}
	if len(pts) == 1 {
		stamp(dst, int(pts[0].X), int(pts[0].Y), half, c)
	}
}

func stamp(dst *image.RGBA, x, y, half int, c color.RGBA) {
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			if (image.Point{X: x + dx, Y: y + dy}).In(dst.Bounds()) {
				dst.SetRGBA(x+dx, y+dy, c)
			}
		}
	}
}

func fillRect(dst *image.RGBA, r geom.Rect, c color.RGBA) {
	ir := image.Rect(int(r.X0), int(r.Y0), int(r.X1), int(r.Y1)).Intersect(dst.Bounds())
	draw.Draw(dst, ir, image.NewUniform(c), image.Point{}, draw.Over)
}

func strokeRect(dst *image.RGBA, r geom.Rect, c color.RGBA) {
	x0, y0, x1, y1 := int(r.X0), int(r.Y0), int(r.X1), int(r.Y1)
	for x := x0; x <= x1; x++ {
		setIn(dst, x, y0, c)
		setIn(dst, x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		setIn(dst, x0, y, c)
		setIn(dst, x1, y, c)
	}
}

func setIn(dst *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(dst.Bounds()) {
		dst.SetRGBA(x, y, c)
	}
}

// drawLabel writes the first line of text inside the rect with the fixed
// 7x13 face. Overflow is clipped at the rect's right edge.
func drawLabel(dst *image.RGBA, r geom.Rect, text string) {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if line == "" {
		return
	}
	face := basicfont.Face7x13
	maxChars := int(r.Width()) / face.Advance
	if maxChars <= 0 {
		return
	}
	if len(line) > maxChars {
		line = line[:maxChars]
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{A: 0xff}),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(int(r.X0) + 2),
			Y: fixed.I(int(r.Y0) + face.Ascent + 2),
		},
	}
	d.DrawString(line)
}

func rgba(c document.Color, a uint8) color.RGBA {
	return color.RGBA{
		R: uint8(clamp01(c.R) * 255),
		G: uint8(clamp01(c.G) * 255),
		B: uint8(clamp01(c.B) * 255),
		A: a,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
