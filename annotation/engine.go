// Package annotation captures freehand ink, performs erase hit-testing and
// draws the annotation overlay. Geometry lives in document space; the view
// transform is applied only at commit and render time, so a transform change
// mid-drag is harmless.
package annotation

import (
	"fmt"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/geom"
	"github.com/wudi/pdfview/observability"
	"github.com/wudi/pdfview/view"
)

const (
	DefaultEraseTolerance = 14.0 // document units around an ink segment
	DefaultMaxRendered    = 50   // annotations drawn per page overlay
	DefaultWidth          = 2.0

	MinWidth = 1.0
	MaxWidth = 10.0

	// MinInkPoints is the commit threshold: shorter gestures are treated
	// as accidental taps and discarded, not errors.
	MinInkPoints = 3
)

// DefaultPalette is the fixed color choice offered for ink and highlights.
var DefaultPalette = []document.Color{
	{R: 1, G: 1, B: 0},       // yellow
	{R: 1, G: 0, B: 0},       // red
	{R: 0.2, G: 0.8, B: 0.2}, // green
	{R: 0.2, G: 0.4, B: 1},   // blue
	{R: 0, G: 0, B: 0},       // black
}

// Committer persists pending document changes after a successful add or
// erase. The persistence manager satisfies it.
type Committer interface {
	Commit() error
}

// Config tunes the engine. Zero values select the defaults above.
type Config struct {
	EraseTolerance float64
	MaxRendered    int
	Palette        []document.Color
}

func (c Config) withDefaults() Config {
	if c.EraseTolerance <= 0 {
		c.EraseTolerance = DefaultEraseTolerance
	}
	if c.MaxRendered <= 0 {
		c.MaxRendered = DefaultMaxRendered
	}
	if len(c.Palette) == 0 {
		c.Palette = DefaultPalette
	}
	return c
}

// Engine owns the page-global editing parameters (color, width) and the
// in-progress ink stroke. It is used from the interactive goroutine only.
type Engine struct {
	handle    *document.Handle
	committer Committer
	logger    observability.Logger
	cfg       Config

	color document.Color
	width float64

	stroke  []geom.Point // canvas space while drawing
	drawing bool
}

// NewEngine wires the annotation engine to a document handle and a
// committer. A nil logger gets the nop logger.
func NewEngine(handle *document.Handle, committer Committer, logger observability.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	cfg = cfg.withDefaults()
	return &Engine{
		handle:    handle,
		committer: committer,
		logger:    logger,
		cfg:       cfg,
		color:     cfg.Palette[0],
		width:     DefaultWidth,
	}
}

// Color returns the current stroke color.
func (e *Engine) Color() document.Color { return e.color }

// SetColor selects the stroke color. It applies page-globally, not per tool.
func (e *Engine) SetColor(c document.Color) { e.color = c }

// Width returns the current stroke width.
func (e *Engine) Width() float64 { return e.width }

// SetWidth sets the stroke width, clamped to [1,10].
func (e *Engine) SetWidth(w float64) {
	if w < MinWidth {
		w = MinWidth
	}
	if w > MaxWidth {
		w = MaxWidth
	}
	e.width = w
}

// Palette returns the configured color choices.
func (e *Engine) Palette() []document.Color { return e.cfg.Palette }

// BeginInk starts a stroke at a canvas point. Any previous unfinished
// stroke is dropped.
func (e *Engine) BeginInk(p geom.Point) {
	e.stroke = e.stroke[:0]
	e.stroke = append(e.stroke, p)
	e.drawing = true
}

// AppendInk extends the in-progress stroke. Calls without BeginInk are
// ignored.
func (e *Engine) AppendInk(p geom.Point) {
	if !e.drawing {
		return
	}
	e.stroke = append(e.stroke, p)
}

// Stroke returns the in-progress canvas-space stroke for live preview.
func (e *Engine) Stroke() []geom.Point {
	if !e.drawing {
		return nil
	}
	return e.stroke
}

// EndInk finishes the stroke and commits it to the page, converting every
// point through the transform of the currently displayed render. Strokes
// shorter than MinInkPoints are discarded: no annotation, no persistence
// call, no error.
func (e *Engine) EndInk(page int, tr view.Transform) (bool, error) {
	if !e.drawing {
		return false, nil
	}
	pts := e.stroke
	e.stroke = nil
	e.drawing = false
	if len(pts) < MinInkPoints {
		e.logger.Debug("discarding short ink gesture", observability.Int("points", len(pts)))
		return false, nil
	}
	path := make([]geom.Point, len(pts))
	for i, p := range pts {
		path[i] = tr.ToDocument(p)
	}
	ink := document.Ink{
		Paths: [][]geom.Point{path},
		Color: e.color,
		Width: e.width,
	}
	ref, err := e.handle.AddAnnotation(page, ink)
	if err != nil {
		return false, fmt.Errorf("add ink: %w", err)
	}
	if err := e.committer.Commit(); err != nil {
		return false, fmt.Errorf("commit ink: %w", err)
	}
	e.logger.Info("ink annotation added",
		observability.Int("page", page),
		observability.Int("ref", ref),
		observability.Int("points", len(path)))
	return true, nil
}

// AddHighlight marks every word box on the page intersecting the given
// canvas-space drag rectangle. It returns how many highlights were added.
func (e *Engine) AddHighlight(page int, canvasRect geom.Rect, tr view.Transform) (int, error) {
	a := tr.ToDocument(geom.Point{X: canvasRect.X0, Y: canvasRect.Y0})
	b := tr.ToDocument(geom.Point{X: canvasRect.X1, Y: canvasRect.Y1})
	docRect := geom.Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}.Normalize()

	words, err := e.handle.Words(page)
	if err != nil {
		return 0, fmt.Errorf("page words: %w", err)
	}
	added := 0
	for _, w := range words {
		if !docRect.Intersects(w.Rect) {
			continue
		}
		if _, err := e.handle.AddAnnotation(page, document.Highlight{Rect: w.Rect, Color: e.color}); err != nil {
			return added, fmt.Errorf("add highlight: %w", err)
		}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := e.committer.Commit(); err != nil {
		return added, fmt.Errorf("commit highlights: %w", err)
	}
	return added, nil
}

// AddNote places a free-text note whose top-left corner is at a canvas
// point, sized in canvas pixels. The text may be Markdown; see Report.
func (e *Engine) AddNote(page int, at geom.Point, w, h float64, text string, tr view.Transform) error {
	if text == "" {
		return nil
	}
	tl := tr.ToDocument(at)
	scale := tr.Scale
	if scale <= 0 {
		scale = 1
	}
	note := document.FreeText{
		Rect:  geom.Rect{X0: tl.X, Y0: tl.Y, X1: tl.X + w/scale, Y1: tl.Y + h/scale}.Normalize(),
		Text:  text,
		Color: e.color,
	}
	if _, err := e.handle.AddAnnotation(page, note); err != nil {
		return fmt.Errorf("add note: %w", err)
	}
	if err := e.committer.Commit(); err != nil {
		return fmt.Errorf("commit note: %w", err)
	}
	return nil
}

// EraseAt removes the first annotation hit by the canvas point, in the
// page's native annotation order. A hit is either the point inside the
// annotation's bounding rectangle or, for ink, within the configured
// tolerance of any stroke segment. Returns false when nothing was hit.
func (e *Engine) EraseAt(page int, canvasPt geom.Point, tr view.Transform) (bool, error) {
	docPt := tr.ToDocument(canvasPt)
	annots, err := e.handle.Annotations(page)
	if err != nil {
		return false, fmt.Errorf("page annotations: %w", err)
	}
	for _, a := range annots {
		if !e.hit(a, docPt) {
			continue
		}
		if err := e.handle.DeleteAnnotation(page, a.Ref()); err != nil {
			return false, fmt.Errorf("delete annotation %d: %w", a.Ref(), err)
		}
		if err := e.committer.Commit(); err != nil {
			return true, fmt.Errorf("commit erase: %w", err)
		}
		e.logger.Info("annotation erased",
			observability.Int("page", page),
			observability.Int("ref", a.Ref()))
		return true, nil
	}
	return false, nil
}

func (e *Engine) hit(a document.Annotation, p geom.Point) bool {
	if a.Bounds().Contains(p) {
		return true
	}
	ink, ok := a.(document.Ink)
	if !ok {
		return false
	}
	for _, path := range ink.Paths {
		for i := 0; i+1 < len(path); i++ {
			if geom.SegmentDistance(p, path[i], path[i+1]) <= e.cfg.EraseTolerance {
				return true
			}
		}
	}
	return false
}
