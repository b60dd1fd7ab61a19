// Package search implements document-wide text search over the collaborator's
// word boxes, with an optional OCR fallback for pages that carry no text
// layer. Matches are collected in page order and navigated circularly.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/geom"
	"github.com/wudi/pdfview/observability"
	"github.com/wudi/pdfview/ocr"
	"github.com/wudi/pdfview/view"
)

// DefaultOCRScale is the render scale used for OCR fallback bitmaps. Higher
// than display scale because recognition quality degrades on small glyphs.
const DefaultOCRScale = 2.0

// Match is one hit: the word box containing the query, in document space.
type Match struct {
	Page int
	Text string
	Rect geom.Rect
}

// Option configures the search engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithOCRFallback enables OCR for pages without a text layer. A non-positive
// scale uses DefaultOCRScale.
func WithOCRFallback(engine ocr.Engine, scale float64, opts ...ocr.InputOption) Option {
	return func(e *Engine) {
		e.ocrEngine = engine
		if scale > 0 {
			e.ocrScale = scale
		}
		e.ocrOpts = opts
	}
}

// Engine runs searches against one document handle. It is used from the
// interactive goroutine; Search is the only method that touches the document.
type Engine struct {
	handle    *document.Handle
	logger    observability.Logger
	ocrEngine ocr.Engine
	ocrScale  float64
	ocrOpts   []ocr.InputOption

	query   string
	matches []Match
	current int
}

// NewEngine builds a search engine over the handle.
func NewEngine(handle *document.Handle, opts ...Option) *Engine {
	e := &Engine{
		handle:   handle,
		logger:   observability.NopLogger{},
		ocrScale: DefaultOCRScale,
		current:  -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search scans every page for the query, case-insensitively, and replaces the
// match set. A page whose text extraction fails is skipped with a warning so
// one bad page cannot sink a document-wide search. An empty query clears the
// match set. Returns the number of matches. No match is selected until Next
// or Previous moves the cursor, so the first Next lands on the first match.
func (e *Engine) Search(ctx context.Context, query string) (int, error) {
	start := time.Now()
	e.query = query
	e.matches = e.matches[:0]
	e.current = -1
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return 0, nil
	}

	for page := 0; page < e.handle.PageCount(); page++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		words, err := e.handle.Words(page)
		if err != nil {
			e.logger.Warn("skipping unsearchable page",
				observability.Int("page", page),
				observability.Error("err", err))
			continue
		}
		if len(words) == 0 && e.ocrEngine != nil {
			words = e.ocrWords(ctx, page)
		}
		for _, w := range words {
			if strings.Contains(strings.ToLower(w.Text), needle) {
				e.matches = append(e.matches, Match{Page: page, Text: w.Text, Rect: w.Rect})
			}
		}
	}
	e.logger.Debug("search done",
		observability.Int("matches", len(e.matches)),
		observability.Int64(observability.MetricSearchTime, time.Since(start).Milliseconds()))
	return len(e.matches), nil
}

// ocrWords renders a page and recognizes its text, mapping the pixel bounds
// back to document units via the render scale. Any failure degrades to no
// words rather than an error; OCR is best effort.
func (e *Engine) ocrWords(ctx context.Context, page int) []document.Word {
	start := time.Now()
	img, err := e.handle.RenderPage(ctx, page, e.ocrScale, 0)
	if err != nil {
		e.logger.Warn("ocr render failed",
			observability.Int("page", page),
			observability.Error("err", err))
		return nil
	}
	in, err := ocr.InputFromImage(page, e.ocrScale, img, e.ocrOpts...)
	if err != nil {
		e.logger.Warn("ocr input failed",
			observability.Int("page", page),
			observability.Error("err", err))
		return nil
	}
	res, err := e.ocrEngine.Recognize(ctx, in)
	if err != nil {
		e.logger.Warn("ocr failed",
			observability.Int("page", page),
			observability.String("engine", e.ocrEngine.Name()),
			observability.Error("err", err))
		return nil
	}
	words := make([]document.Word, 0, len(res.Words))
	for _, w := range res.Words {
		words = append(words, document.Word{
			Text: w.Text,
			Rect: geom.Rect{
				X0: w.Bounds.X / e.ocrScale,
				Y0: w.Bounds.Y / e.ocrScale,
				X1: (w.Bounds.X + w.Bounds.Width) / e.ocrScale,
				Y1: (w.Bounds.Y + w.Bounds.Height) / e.ocrScale,
			},
		})
	}
	e.logger.Debug("ocr fallback",
		observability.Int("page", page),
		observability.Int("words", len(words)),
		observability.Int64(observability.MetricOCRTime, time.Since(start).Milliseconds()))
	return words
}

// Query returns the active query string.
func (e *Engine) Query() string { return e.query }

// Matches returns the current match set in page order.
func (e *Engine) Matches() []Match { return e.matches }

// Current returns the selected match, if any.
func (e *Engine) Current() (Match, bool) {
	if e.current < 0 || e.current >= len(e.matches) {
		return Match{}, false
	}
	return e.matches[e.current], true
}

// Position reports the one-based index of the selected match and the total,
// for a "3 of 17" style indicator.
func (e *Engine) Position() (int, int) {
	if e.current < 0 {
		return 0, len(e.matches)
	}
	return e.current + 1, len(e.matches)
}

// Next advances to the next match, wrapping past the last one.
func (e *Engine) Next() (Match, bool) {
	if len(e.matches) == 0 {
		return Match{}, false
	}
	e.current = (e.current + 1) % len(e.matches)
	return e.matches[e.current], true
}

// Previous steps back one match, wrapping before the first one. With no
// selection yet it lands on the last match.
func (e *Engine) Previous() (Match, bool) {
	if len(e.matches) == 0 {
		return Match{}, false
	}
	if e.current < 0 {
		e.current = len(e.matches) - 1
	} else {
		e.current = (e.current - 1 + len(e.matches)) % len(e.matches)
	}
	return e.matches[e.current], true
}

// Clear drops the match set and query.
func (e *Engine) Clear() {
	e.query = ""
	e.matches = e.matches[:0]
	e.current = -1
}

// HighlightRects maps the matches on one page to canvas rectangles through
// the transform of the render currently on screen. The selected match, when
// on that page, is returned separately so it can be drawn emphasized.
func (e *Engine) HighlightRects(page int, tr view.Transform) (all []geom.Rect, selected *geom.Rect) {
	for i, m := range e.matches {
		if m.Page != page {
			continue
		}
		r := tr.RectToCanvas(m.Rect)
		all = append(all, r)
		if i == e.current {
			sel := r
			selected = &sel
		}
	}
	return all, selected
}

func (m Match) String() string {
	return fmt.Sprintf("page %d: %q", m.Page, m.Text)
}
