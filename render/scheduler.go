package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/observability"
	"github.com/wudi/pdfview/view"
)

// DefaultThumbScale is the sidebar thumbnail raster scale relative to the
// intrinsic page size.
const DefaultThumbScale = 0.18

const defaultWorkers = 2

// SchedulerBuilder assembles a Scheduler.
type SchedulerBuilder struct {
	handle     *document.Handle
	logger     observability.Logger
	tracer     observability.Tracer
	workers    int
	queueDepth int
	thumbScale float64
}

func (b *SchedulerBuilder) WithHandle(h *document.Handle) *SchedulerBuilder {
	b.handle = h
	return b
}

func (b *SchedulerBuilder) WithLogger(l observability.Logger) *SchedulerBuilder {
	b.logger = l
	return b
}

func (b *SchedulerBuilder) WithTracer(t observability.Tracer) *SchedulerBuilder {
	b.tracer = t
	return b
}

func (b *SchedulerBuilder) WithWorkers(n int) *SchedulerBuilder {
	b.workers = n
	return b
}

func (b *SchedulerBuilder) WithQueueDepth(n int) *SchedulerBuilder {
	b.queueDepth = n
	return b
}

func (b *SchedulerBuilder) WithThumbScale(s float64) *SchedulerBuilder {
	b.thumbScale = s
	return b
}

func (b *SchedulerBuilder) Build() (*Scheduler, error) {
	if b.handle == nil {
		return nil, errors.New("render: handle required")
	}
	logger := b.logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	tracer := b.tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	workers := b.workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	depth := b.queueDepth
	if depth <= 0 {
		depth = 16
	}
	thumbScale := b.thumbScale
	if thumbScale <= 0 {
		thumbScale = DefaultThumbScale
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		handle:     b.handle,
		logger:     logger,
		tracer:     tracer,
		thumbScale: thumbScale,
		jobs:       make(chan Job, depth),
		results:    make(chan Result, 8),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s, nil
}

// Scheduler turns view-state changes into render jobs and filters stale
// results by generation. Request, Apply and the generation accessors are
// meant to be called from the goroutine that owns the view state; the mutex
// only guards the counters against the worker-side reads in logging.
type Scheduler struct {
	handle     *document.Handle
	logger     observability.Logger
	tracer     observability.Tracer
	thumbScale float64

	mu   sync.Mutex
	gens [3]uint64

	cache Cache

	jobs    chan Job
	results chan Result
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Generation returns the live generation for one rendering context.
func (s *Scheduler) Generation(kind Kind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[kind]
}

// Invalidate bumps the generation of a context so that every in-flight job
// of that context becomes stale. Call it on every view-state-affecting
// mutation before requesting the replacement render.
func (s *Scheduler) Invalidate(kind Kind) {
	s.mu.Lock()
	s.gens[kind]++
	s.mu.Unlock()
}

// Cache exposes the applied-result cache to consumers on the owning
// goroutine.
func (s *Scheduler) Cache() *Cache { return &s.cache }

// Results is the single handoff point from workers back to the owner.
func (s *Scheduler) Results() <-chan Result { return s.results }

// Request asks for a render of the given pages under state. A cache hit
// short-circuits scheduling entirely and returns the cached pages. On a miss
// the job is stamped with the current generation and queued; the eventual
// result arrives on Results.
func (s *Scheduler) Request(kind Kind, state view.State, pages []int) ([]PageImage, bool) {
	if len(pages) == 0 {
		return nil, false
	}
	key := s.buildKey(kind, state, pages)
	if cached, ok := s.cache.Lookup(key); ok {
		s.logger.Debug("render cache hit",
			observability.String("kind", kind.String()),
			observability.Int("first", key.First),
			observability.Int("last", key.Last))
		return cached, true
	}
	job := Job{
		Key:        key,
		State:      state,
		Pages:      append([]int(nil), pages...),
		Generation: s.Generation(kind),
	}
	if kind == Thumbnails {
		job.Scale = s.thumbScale
	}
	select {
	case s.jobs <- job:
	default:
		// The queue only backs up during an event storm; the debounced
		// re-trigger will issue a fresh job for the final state.
		s.logger.Warn("render queue full, dropping job",
			observability.String("kind", kind.String()))
	}
	return nil, false
}

func (s *Scheduler) buildKey(kind Kind, state view.State, pages []int) Key {
	key := Key{
		Kind:     kind,
		First:    pages[0],
		Last:     pages[len(pages)-1],
		Zoom:     state.Zoom,
		Rotation: state.Rotation,
		Fit:      state.Fit,
		CanvasW:  state.CanvasW,
		CanvasH:  state.CanvasH,
		Epoch:    s.handle.Epoch(),
	}
	if kind == Thumbnails {
		// Thumbnails ignore the view: fixed scale, no rotation, no canvas
		// dependence. The epoch alone invalidates them on reopen.
		key.Zoom = s.thumbScale
		key.Rotation = 0
		key.Fit = view.ActualSize
		key.CanvasW, key.CanvasH = 0, 0
	}
	return key
}

// Apply installs a finished result if its generation is still current.
// Stale results are discarded silently: no cache effect, no re-render
// solicited, because the job of the newer generation already supersedes
// them.
func (s *Scheduler) Apply(res Result) bool {
	if res.Job.Generation != s.Generation(res.Job.Key.Kind) {
		s.logger.Debug("discarding stale render",
			observability.String("kind", res.Job.Key.Kind.String()),
			observability.Int64("generation", int64(res.Job.Generation)))
		return false
	}
	for _, err := range res.Errs {
		s.logger.Warn("page render failed", observability.Error("err", err))
	}
	if len(res.Pages) == 0 {
		return false
	}
	s.cache.Put(res.Job.Key, res.Pages)
	return true
}

// Close stops the workers and closes the result channel once they drain.
func (s *Scheduler) Close() {
	s.cancel()
	close(s.jobs)
	s.wg.Wait()
	close(s.results)
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		res := s.renderJob(job)
		select {
		case s.results <- res:
		case <-s.ctx.Done():
			return
		}
	}
}

// renderJob rasterizes every page of the batch. A failing page is skipped
// and recorded, never aborting the batch, so one corrupted page cannot sink
// thumbnail generation.
func (s *Scheduler) renderJob(job Job) Result {
	_, span := s.tracer.StartSpan(s.ctx, "render."+job.Key.Kind.String())
	defer span.Finish()
	start := time.Now()

	res := Result{Job: job}
	for _, page := range job.Pages {
		img, err := s.renderPage(job, page)
		if err != nil {
			res.Errs = append(res.Errs, fmt.Errorf("page %d: %w", page, err))
			continue
		}
		res.Pages = append(res.Pages, img)
	}

	span.SetTag("pages", len(res.Pages))
	s.logger.Debug("render batch done",
		observability.String("kind", job.Key.Kind.String()),
		observability.Int("pages", len(res.Pages)),
		observability.Int64(observability.MetricRenderTime, time.Since(start).Milliseconds()))
	return res
}

func (s *Scheduler) renderPage(job Job, page int) (PageImage, error) {
	pw, ph, err := s.handle.PageSize(page)
	if err != nil {
		return PageImage{}, err
	}
	state := job.State
	scale := job.Scale
	rotation := state.Rotation
	if job.Key.Kind == Thumbnails {
		rotation = 0
	}
	if scale <= 0 {
		scale = state.FitScale(pw, ph)
	}
	img, err := s.handle.RenderPage(s.ctx, page, scale, rotation)
	if err != nil {
		return PageImage{}, err
	}

	out := PageImage{Page: page, Image: img, Scale: scale, PageW: pw, PageH: ph}
	if job.Key.Kind == SinglePage && state.Fit == view.FitPage && state.CanvasW > 0 && state.CanvasH > 0 {
		rw, _ := state.RotatedPageSize(pw, ph)
		resized, fitScale, ox, oy := fitToCanvas(img, state.CanvasW, state.CanvasH, rw)
		out.Image = resized
		out.Scale = fitScale
		out.OffsetX = ox
		out.OffsetY = oy
	}
	return out, nil
}

// fitToCanvas letterboxes a rendered bitmap into the canvas and re-derives
// the final scale from the resized bitmap's true dimensions, which protects
// the coordinate mapper against rounding drift between the requested fit
// scale and the pixel grid.
func fitToCanvas(img *image.RGBA, cw, ch int, rotatedPageW float64) (*image.RGBA, float64, float64, float64) {
	iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
	if iw == 0 || ih == 0 || rotatedPageW <= 0 {
		return img, 1, 0, 0
	}
	imgRatio := float64(iw) / float64(ih)
	canvasRatio := float64(cw) / float64(ch)
	var nw, nh int
	if imgRatio > canvasRatio {
		nw = cw
		nh = int(float64(cw) / imgRatio)
	} else {
		nh = ch
		nw = int(float64(ch) * imgRatio)
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	if nw != iw || nh != ih {
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		img = dst
	}
	scale := float64(nw) / rotatedPageW
	ox := float64((cw - nw) / 2)
	oy := float64((ch - nh) / 2)
	return img, scale, ox, oy
}
