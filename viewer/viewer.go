// Package viewer is the engine facade: it owns the open document, the view
// state and the wiring between rendering, annotation, persistence, search,
// forms and session restore. All methods are meant for the single interactive
// goroutine; background work stays inside the render scheduler.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"

	"github.com/wudi/pdfview/annotation"
	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/forms"
	"github.com/wudi/pdfview/geom"
	"github.com/wudi/pdfview/observability"
	"github.com/wudi/pdfview/ocr"
	"github.com/wudi/pdfview/persist"
	"github.com/wudi/pdfview/render"
	"github.com/wudi/pdfview/scripting"
	"github.com/wudi/pdfview/search"
	"github.com/wudi/pdfview/session"
	"github.com/wudi/pdfview/view"
)

// EngineBuilder assembles a viewer engine around a document provider.
type EngineBuilder struct {
	provider    document.Provider
	logger      observability.Logger
	tracer      observability.Tracer
	sessionPath string
	ocrEngine   ocr.Engine
	annotCfg    annotation.Config
	workers     int
}

func (b *EngineBuilder) WithProvider(p document.Provider) *EngineBuilder {
	b.provider = p
	return b
}

func (b *EngineBuilder) WithLogger(l observability.Logger) *EngineBuilder {
	b.logger = l
	return b
}

func (b *EngineBuilder) WithTracer(t observability.Tracer) *EngineBuilder {
	b.tracer = t
	return b
}

// WithSessionPath enables session persistence at the given file.
func (b *EngineBuilder) WithSessionPath(path string) *EngineBuilder {
	b.sessionPath = path
	return b
}

// WithOCRFallback enables OCR search fallback for pages without text.
func (b *EngineBuilder) WithOCRFallback(e ocr.Engine) *EngineBuilder {
	b.ocrEngine = e
	return b
}

func (b *EngineBuilder) WithAnnotationConfig(cfg annotation.Config) *EngineBuilder {
	b.annotCfg = cfg
	return b
}

func (b *EngineBuilder) WithWorkers(n int) *EngineBuilder {
	b.workers = n
	return b
}

func (b *EngineBuilder) Build() (*Engine, error) {
	if b.provider == nil {
		return nil, errors.New("viewer: provider required")
	}
	logger := b.logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	e := &Engine{
		provider:  b.provider,
		logger:    logger,
		tracer:    b.tracer,
		ocrEngine: b.ocrEngine,
		annotCfg:  b.annotCfg,
		workers:   b.workers,
		transform: view.Identity(),
	}
	if b.sessionPath != "" {
		e.sessions = session.NewStore(b.sessionPath, logger)
	}
	return e, nil
}

// Engine is one open document plus every subsystem operating on it.
type Engine struct {
	provider  document.Provider
	logger    observability.Logger
	tracer    observability.Tracer
	ocrEngine ocr.Engine
	annotCfg  annotation.Config
	workers   int
	sessions  *session.Store

	handle    *document.Handle
	state     view.State
	transform view.Transform

	sched  *render.Scheduler
	annots *annotation.Engine
	saver  *persist.Manager
	finder *search.Engine
	filler *forms.Engine
}

// Open loads a document and wires the subsystems. A stored session for the
// same file restores the previous position, clamped to the reopened document.
func (e *Engine) Open(path string) error {
	if e.handle != nil {
		return errors.New("viewer: document already open")
	}
	doc, err := e.provider.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	e.handle = document.NewHandle(doc)
	e.state = view.NewState()
	if e.sessions != nil {
		if st, ok := e.sessions.Load(); ok && st.File == path {
			st.ApplyTo(&e.state)
			e.state.ClampPage(e.handle.PageCount())
		}
	}

	sb := (&render.SchedulerBuilder{}).WithHandle(e.handle).WithLogger(e.logger)
	if e.tracer != nil {
		sb = sb.WithTracer(e.tracer)
	}
	if e.workers > 0 {
		sb = sb.WithWorkers(e.workers)
	}
	e.sched, err = sb.Build()
	if err != nil {
		e.handle.Close()
		e.handle = nil
		return err
	}

	e.saver = persist.NewManager(e.handle, e.provider, e.logger)
	e.annots = annotation.NewEngine(e.handle, e.saver, e.logger, e.annotCfg)
	searchOpts := []search.Option{search.WithLogger(e.logger)}
	if e.ocrEngine != nil {
		searchOpts = append(searchOpts, search.WithOCRFallback(e.ocrEngine, 0))
	}
	e.finder = search.NewEngine(e.handle, searchOpts...)
	e.filler, err = forms.NewEngine(e.handle, scripting.NewEngine(),
		forms.WithLogger(e.logger), forms.WithCommitter(e.saver))
	if err != nil {
		e.Close()
		return fmt.Errorf("wire forms: %w", err)
	}
	e.logger.Info("document open",
		observability.String("path", path),
		observability.Int("pages", e.handle.PageCount()))
	return nil
}

// Close tears down the subsystems, saving the session first.
func (e *Engine) Close() error {
	if e.handle == nil {
		return nil
	}
	e.saveSession()
	if e.sched != nil {
		e.sched.Close()
		e.sched = nil
	}
	err := e.handle.Close()
	e.handle = nil
	return err
}

// State returns the current view state.
func (e *Engine) State() view.State { return e.state }

// Transform returns the coordinate mapper of the displayed render; identity
// before the first apply.
func (e *Engine) Transform() view.Transform { return e.transform }

// Annotations exposes the annotation engine.
func (e *Engine) Annotations() *annotation.Engine { return e.annots }

// Search exposes the search engine.
func (e *Engine) Search() *search.Engine { return e.finder }

// Forms exposes the form-filling engine.
func (e *Engine) Forms() *forms.Engine { return e.filler }

// Handle exposes the document handle for read-only inspection.
func (e *Engine) Handle() *document.Handle { return e.handle }

// Scheduler exposes the render scheduler; its Results channel drives the
// caller's event loop.
func (e *Engine) Scheduler() *render.Scheduler { return e.sched }

// ErrNotOpen reports a gesture against an engine with no open document.
var ErrNotOpen = errors.New("viewer: no open document")

// mutate applies a view-state change, invalidates the affected render
// contexts and persists the session. A no-op without an open document.
func (e *Engine) mutate(fn func(*view.State)) {
	if e.handle == nil {
		return
	}
	fn(&e.state)
	e.sched.Invalidate(render.SinglePage)
	e.sched.Invalidate(render.Continuous)
	e.saveSession()
}

func (e *Engine) saveSession() {
	if e.sessions == nil || e.handle == nil {
		return
	}
	if err := e.sessions.Save(session.FromView(e.handle.Path(), e.state)); err != nil {
		e.logger.Warn("session save failed", observability.Error("err", err))
	}
}

func (e *Engine) GoToPage(page int) {
	e.mutate(func(s *view.State) { s.SetPage(page, e.handle.PageCount()) })
}

func (e *Engine) NextPage() {
	e.mutate(func(s *view.State) { s.NextPage(e.handle.PageCount()) })
}

func (e *Engine) PrevPage() {
	e.mutate(func(s *view.State) { s.PrevPage(e.handle.PageCount()) })
}

func (e *Engine) ZoomIn()  { e.mutate(func(s *view.State) { s.ZoomBy(view.ZoomInStep) }) }
func (e *Engine) ZoomOut() { e.mutate(func(s *view.State) { s.ZoomBy(view.ZoomOutStep) }) }

// WheelZoom applies one scroll-wheel zoom notch.
func (e *Engine) WheelZoom(in bool) {
	step := view.WheelOutStep
	if in {
		step = view.WheelInStep
	}
	e.mutate(func(s *view.State) { s.ZoomBy(step) })
}

func (e *Engine) SetFit(fit view.FitMode) {
	e.mutate(func(s *view.State) { s.Fit = fit })
}

func (e *Engine) Rotate() {
	e.mutate(func(s *view.State) { s.Rotate() })
}

func (e *Engine) SetViewMode(mode view.Mode) {
	e.mutate(func(s *view.State) { s.Mode = mode })
}

func (e *Engine) Resize(w, h int) {
	e.mutate(func(s *view.State) { s.Resize(w, h) })
}

func (e *Engine) ToggleSidebar() {
	e.mutate(func(s *view.State) { s.SidebarVisible = !s.SidebarVisible })
}

// RequestRender schedules the renders the current state needs: the page (or
// all pages in continuous mode) plus thumbnails when the sidebar shows.
// Cache hits apply immediately.
func (e *Engine) RequestRender() {
	if e.handle == nil {
		return
	}
	var pages []int
	switch e.state.Mode {
	case view.ContinuousScroll:
		for p := 0; p < e.handle.PageCount(); p++ {
			pages = append(pages, p)
		}
		if cached, hit := e.sched.Request(render.Continuous, e.state, pages); hit {
			e.applyPages(render.Continuous, cached)
		}
	default:
		pages = []int{e.state.Page}
		if cached, hit := e.sched.Request(render.SinglePage, e.state, pages); hit {
			e.applyPages(render.SinglePage, cached)
		}
	}
	if e.state.SidebarVisible {
		all := make([]int, e.handle.PageCount())
		for p := range all {
			all[p] = p
		}
		e.sched.Request(render.Thumbnails, e.state, all)
	}
}

// Apply installs a finished render result, updating the coordinate mapper
// when the displayed page changed. Stale results return false.
func (e *Engine) Apply(res render.Result) bool {
	if e.sched == nil || !e.sched.Apply(res) {
		return false
	}
	e.applyPages(res.Job.Key.Kind, res.Pages)
	return true
}

func (e *Engine) applyPages(kind render.Kind, pages []render.PageImage) {
	if kind == render.Thumbnails || len(pages) == 0 {
		return
	}
	for _, p := range pages {
		if p.Page == e.state.Page {
			e.transform = p.Transform(e.state.Rotation)
			return
		}
	}
}

// EraseAt forwards an erase gesture using the displayed transform.
func (e *Engine) EraseAt(pt geom.Point) (bool, error) {
	if e.handle == nil {
		return false, ErrNotOpen
	}
	return e.annots.EraseAt(e.state.Page, pt, e.transform)
}

// EndInk commits the in-progress ink stroke on the displayed page.
func (e *Engine) EndInk() (bool, error) {
	if e.handle == nil {
		return false, ErrNotOpen
	}
	return e.annots.EndInk(e.state.Page, e.transform)
}

// ExportPage renders one page at the given scale with the current rotation
// and writes it as PNG.
func (e *Engine) ExportPage(ctx context.Context, page int, scale float64, w io.Writer) error {
	if e.handle == nil {
		return ErrNotOpen
	}
	if scale <= 0 {
		scale = 1
	}
	img, err := e.handle.RenderPage(ctx, page, scale, e.state.Rotation)
	if err != nil {
		return fmt.Errorf("render page %d: %w", page, err)
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode page %d: %w", page, err)
	}
	return nil
}
