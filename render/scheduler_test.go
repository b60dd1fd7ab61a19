package render

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/document/memdoc"
	"github.com/wudi/pdfview/geom"
	"github.com/wudi/pdfview/view"
)

func openTestDoc(t *testing.T, pages ...memdoc.PageSpec) document.Document {
	t.Helper()
	if len(pages) == 0 {
		pages = []memdoc.PageSpec{memdoc.Page(200, 400)}
	}
	path := filepath.Join(t.TempDir(), "doc.jsonl")
	if err := memdoc.Write(path, pages); err != nil {
		t.Fatalf("memdoc.Write() error = %v", err)
	}
	doc, err := memdoc.Provider{}.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return doc
}

// slowDoc delays rasterization so tests can interleave generation bumps with
// in-flight renders.
type slowDoc struct {
	document.Document
	delay time.Duration
}

func (d slowDoc) RenderPage(ctx context.Context, page int, scale float64, rotation int) (*image.RGBA, error) {
	time.Sleep(d.delay)
	return d.Document.RenderPage(ctx, page, scale, rotation)
}

// flakyDoc fails rendering for one page.
type flakyDoc struct {
	document.Document
	badPage int
}

func (d flakyDoc) RenderPage(ctx context.Context, page int, scale float64, rotation int) (*image.RGBA, error) {
	if page == d.badPage {
		return nil, fmt.Errorf("simulated corrupt page %d", page)
	}
	return d.Document.RenderPage(ctx, page, scale, rotation)
}

func newScheduler(t *testing.T, doc document.Document, workers int) *Scheduler {
	t.Helper()
	s, err := (&SchedulerBuilder{}).
		WithHandle(document.NewHandle(doc)).
		WithWorkers(workers).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func waitResult(t *testing.T, s *Scheduler) Result {
	t.Helper()
	select {
	case res := <-s.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for render result")
		return Result{}
	}
}

func TestStaleResultDiscarded(t *testing.T) {
	doc := openTestDoc(t)
	s := newScheduler(t, slowDoc{Document: doc, delay: 30 * time.Millisecond}, 1)

	state := view.NewState()
	state.Fit = view.ActualSize
	state.Resize(400, 400)

	if _, hit := s.Request(SinglePage, state, []int{0}); hit {
		t.Fatalf("unexpected cache hit on first request")
	}

	// A fast keystroke invalidates the in-flight job and issues a newer one.
	s.Invalidate(SinglePage)
	state.ZoomBy(view.ZoomInStep)
	if _, hit := s.Request(SinglePage, state, []int{0}); hit {
		t.Fatalf("unexpected cache hit on second request")
	}

	first := waitResult(t, s)
	if s.Apply(first) {
		t.Fatalf("stale result must not apply")
	}
	if _, ok := s.Cache().Current(SinglePage); ok {
		t.Fatalf("cache must not hold a stale result")
	}

	second := waitResult(t, s)
	if !s.Apply(second) {
		t.Fatalf("current result must apply")
	}
	pages, ok := s.Cache().Current(SinglePage)
	if !ok || len(pages) != 1 {
		t.Fatalf("cache should hold the last-issued generation")
	}
	if pages[0].Scale != 1.25 {
		t.Fatalf("cached scale = %v, want the newer zoom", pages[0].Scale)
	}
}

func TestCacheHitShortCircuits(t *testing.T) {
	doc := openTestDoc(t)
	s := newScheduler(t, doc, 1)

	state := view.NewState()
	state.Fit = view.ActualSize
	state.Resize(400, 400)

	s.Request(SinglePage, state, []int{0})
	if !s.Apply(waitResult(t, s)) {
		t.Fatalf("apply failed")
	}
	cached, hit := s.Request(SinglePage, state, []int{0})
	if !hit || len(cached) != 1 {
		t.Fatalf("expected cache hit for identical key")
	}

	// Any key component change misses.
	state.Rotation = 90
	if _, hit := s.Request(SinglePage, state, []int{0}); hit {
		t.Fatalf("rotation change should miss the cache")
	}
}

func TestFitPageAspectCorrection(t *testing.T) {
	// Page 200x400 in an 800x400 canvas: height-limited, so the bitmap is
	// scaled to 200x400 and centered horizontally.
	doc := openTestDoc(t)
	s := newScheduler(t, doc, 1)

	state := view.NewState() // FitPage
	state.Resize(800, 400)

	s.Request(SinglePage, state, []int{0})
	res := waitResult(t, s)
	if !s.Apply(res) {
		t.Fatalf("apply failed")
	}
	p := res.Pages[0]
	if got := p.Image.Bounds(); got.Dx() != 200 || got.Dy() != 400 {
		t.Fatalf("fitted bounds = %v, want 200x400", got)
	}
	if p.Scale != 1.0 {
		t.Fatalf("derived scale = %v, want 1.0", p.Scale)
	}
	if p.OffsetX != 300 || p.OffsetY != 0 {
		t.Fatalf("offsets = (%v,%v), want (300,0)", p.OffsetX, p.OffsetY)
	}

	// The mapper derived from the result round-trips through the offsets.
	tr := p.Transform(state.Rotation)
	docPt := tr.ToDocument(tr.ToCanvas(geom.Point{X: 50, Y: 60}))
	if docPt.X != 50 || docPt.Y != 60 {
		t.Fatalf("transform round trip gave %v", docPt)
	}
}

func TestCorruptPageSkippedInBatch(t *testing.T) {
	doc := openTestDoc(t,
		memdoc.Page(100, 100), memdoc.Page(100, 100), memdoc.Page(100, 100))
	s := newScheduler(t, flakyDoc{Document: doc, badPage: 1}, 1)

	state := view.NewState()
	state.Resize(300, 300)

	s.Request(Thumbnails, state, []int{0, 1, 2})
	res := waitResult(t, s)
	if len(res.Pages) != 2 {
		t.Fatalf("rendered pages = %d, want 2 (corrupt page skipped)", len(res.Pages))
	}
	if len(res.Errs) != 1 {
		t.Fatalf("errs = %v, want exactly one", res.Errs)
	}
	if res.Pages[0].Page != 0 || res.Pages[1].Page != 2 {
		t.Fatalf("unexpected page set: %+v", res.Pages)
	}
	if !s.Apply(res) {
		t.Fatalf("partial batch should still apply")
	}
}

func TestThumbnailKeyIgnoresView(t *testing.T) {
	doc := openTestDoc(t, memdoc.Page(100, 100), memdoc.Page(100, 100))
	s := newScheduler(t, doc, 1)

	state := view.NewState()
	state.Resize(640, 480)
	s.Request(Thumbnails, state, []int{0, 1})
	if !s.Apply(waitResult(t, s)) {
		t.Fatalf("apply failed")
	}

	// Zoom and rotation changes must not invalidate thumbnails.
	state.ZoomBy(view.ZoomInStep)
	state.Rotate()
	if _, hit := s.Request(Thumbnails, state, []int{0, 1}); !hit {
		t.Fatalf("thumbnails should survive view changes")
	}
}

func TestScrollOffsets(t *testing.T) {
	doc := openTestDoc(t,
		memdoc.Page(100, 200), memdoc.Page(100, 300), memdoc.Page(100, 100))
	s := newScheduler(t, doc, 1)

	state := view.NewState()
	state.Fit = view.ActualSize
	state.Resize(100, 1000)

	s.Request(Continuous, state, []int{0, 1, 2})
	if !s.Apply(waitResult(t, s)) {
		t.Fatalf("apply failed")
	}
	offsets := s.Cache().ScrollOffsets()
	want := []float64{0, 200, 500, 600}
	if len(offsets) != len(want) {
		t.Fatalf("offsets = %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offsets = %v, want %v", offsets, want)
		}
	}
	if page, ok := s.Cache().PageAtOffset(350); !ok || page != 1 {
		t.Fatalf("PageAtOffset(350) = %d, want 1", page)
	}
	if page, ok := s.Cache().PageAtOffset(9999); !ok || page != 2 {
		t.Fatalf("PageAtOffset past end = %d, want 2", page)
	}
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	d := NewDebouncer(20*time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("debounced callback fired %d times, want 1", fired)
	}
}
