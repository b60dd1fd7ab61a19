package annotation

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/document/memdoc"
	"github.com/wudi/pdfview/geom"
	"github.com/wudi/pdfview/view"
)

type countingCommitter struct {
	commits int
	err     error
}

func (c *countingCommitter) Commit() error {
	c.commits++
	return c.err
}

func newTestEngine(t *testing.T, cfg Config, pages ...memdoc.PageSpec) (*Engine, *countingCommitter, *document.Handle) {
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
	handle := document.NewHandle(doc)
	committer := &countingCommitter{}
	return NewEngine(handle, committer, nil, cfg), committer, handle
}

func TestEndInkCommitsStroke(t *testing.T) {
	e, committer, handle := newTestEngine(t, Config{})

	// Canvas at scale 2: canvas (20,40) is document (10,20).
	tr := view.NewTransform(2, 0, 0, 0, 200, 400)
	e.BeginInk(geom.Point{X: 20, Y: 40})
	e.AppendInk(geom.Point{X: 40, Y: 40})
	e.AppendInk(geom.Point{X: 60, Y: 40})
	added, err := e.EndInk(0, tr)
	if err != nil {
		t.Fatalf("EndInk() error = %v", err)
	}
	if !added {
		t.Fatalf("EndInk() = false, want committed stroke")
	}
	if committer.commits != 1 {
		t.Fatalf("commits = %d, want 1", committer.commits)
	}

	annots, err := handle.Annotations(0)
	if err != nil {
		t.Fatalf("Annotations() error = %v", err)
	}
	if len(annots) != 1 {
		t.Fatalf("annotations = %d, want 1", len(annots))
	}
	ink, ok := annots[0].(document.Ink)
	if !ok {
		t.Fatalf("annotation is %T, want Ink", annots[0])
	}
	if got := ink.Paths[0][0]; got.X != 10 || got.Y != 20 {
		t.Fatalf("first point = %v, want document-space (10,20)", got)
	}
}

func TestShortGestureDiscarded(t *testing.T) {
	e, committer, handle := newTestEngine(t, Config{})

	e.BeginInk(geom.Point{X: 10, Y: 10})
	e.AppendInk(geom.Point{X: 11, Y: 11})
	added, err := e.EndInk(0, view.Identity())
	if err != nil {
		t.Fatalf("EndInk() error = %v", err)
	}
	if added {
		t.Fatalf("two-point gesture must be discarded")
	}
	if committer.commits != 0 {
		t.Fatalf("commits = %d, want 0 for a discarded gesture", committer.commits)
	}
	annots, _ := handle.Annotations(0)
	if len(annots) != 0 {
		t.Fatalf("annotations = %d, want 0", len(annots))
	}
}

func TestEraseHitsStrokeMidpoint(t *testing.T) {
	e, committer, handle := newTestEngine(t, Config{})

	tr := view.Identity()
	e.BeginInk(geom.Point{X: 10, Y: 50})
	e.AppendInk(geom.Point{X: 55, Y: 50})
	e.AppendInk(geom.Point{X: 100, Y: 50})
	if _, err := e.EndInk(0, tr); err != nil {
		t.Fatalf("EndInk() error = %v", err)
	}

	erased, err := e.EraseAt(0, geom.Point{X: 55, Y: 50}, tr)
	if err != nil {
		t.Fatalf("EraseAt() error = %v", err)
	}
	if !erased {
		t.Fatalf("midpoint of a stroke must always hit")
	}
	if committer.commits != 2 {
		t.Fatalf("commits = %d, want 2 (ink + erase)", committer.commits)
	}
	annots, _ := handle.Annotations(0)
	if len(annots) != 0 {
		t.Fatalf("annotations = %d after erase, want 0", len(annots))
	}
}

func TestEraseToleranceBoundary(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	tr := view.Identity()
	e.BeginInk(geom.Point{X: 10, Y: 50})
	e.AppendInk(geom.Point{X: 55, Y: 50})
	e.AppendInk(geom.Point{X: 100, Y: 50})
	if _, err := e.EndInk(0, tr); err != nil {
		t.Fatalf("EndInk() error = %v", err)
	}

	// 15 units above the horizontal stroke: outside the 14-unit tolerance.
	erased, err := e.EraseAt(0, geom.Point{X: 55, Y: 35}, tr)
	if err != nil {
		t.Fatalf("EraseAt() error = %v", err)
	}
	if erased {
		t.Fatalf("point outside tolerance must not hit")
	}

	// Exactly at the tolerance: hits.
	erased, err = e.EraseAt(0, geom.Point{X: 55, Y: 36}, tr)
	if err != nil {
		t.Fatalf("EraseAt() error = %v", err)
	}
	if !erased {
		t.Fatalf("point at the tolerance boundary must hit")
	}
}

func TestEraseFirstMatchWins(t *testing.T) {
	e, _, handle := newTestEngine(t, Config{})

	r := geom.Rect{X0: 10, Y0: 10, X1: 50, Y1: 50}
	first, err := handle.AddAnnotation(0, document.Highlight{Rect: r})
	if err != nil {
		t.Fatalf("AddAnnotation() error = %v", err)
	}
	second, err := handle.AddAnnotation(0, document.Highlight{Rect: r})
	if err != nil {
		t.Fatalf("AddAnnotation() error = %v", err)
	}

	erased, err := e.EraseAt(0, geom.Point{X: 30, Y: 30}, view.Identity())
	if err != nil {
		t.Fatalf("EraseAt() error = %v", err)
	}
	if !erased {
		t.Fatalf("overlapping hit must erase")
	}
	annots, _ := handle.Annotations(0)
	if len(annots) != 1 {
		t.Fatalf("annotations = %d, want 1", len(annots))
	}
	if annots[0].Ref() != second {
		t.Fatalf("surviving ref = %d, want %d (first in native order erased, was %d)",
			annots[0].Ref(), second, first)
	}
}

func TestEraseUsesDisplayTransform(t *testing.T) {
	e, _, handle := newTestEngine(t, Config{})

	if _, err := handle.AddAnnotation(0, document.Highlight{
		Rect: geom.Rect{X0: 10, Y0: 10, X1: 20, Y1: 20},
	}); err != nil {
		t.Fatalf("AddAnnotation() error = %v", err)
	}

	// At 2x with a 100px offset, document (15,15) sits at canvas (130,30).
	tr := view.NewTransform(2, 100, 0, 0, 200, 400)
	erased, err := e.EraseAt(0, geom.Point{X: 130, Y: 30}, tr)
	if err != nil {
		t.Fatalf("EraseAt() error = %v", err)
	}
	if !erased {
		t.Fatalf("canvas point must map through the display transform")
	}
}

func TestWidthClamped(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})
	e.SetWidth(0.2)
	if e.Width() != MinWidth {
		t.Fatalf("Width() = %v, want clamp to %v", e.Width(), MinWidth)
	}
	e.SetWidth(40)
	if e.Width() != MaxWidth {
		t.Fatalf("Width() = %v, want clamp to %v", e.Width(), MaxWidth)
	}
}

func TestHighlightCoversIntersectingWords(t *testing.T) {
	page := memdoc.Page(200, 400).
		AddWord("alpha", 10, 10, 40, 20).
		AddWord("beta", 50, 10, 80, 20).
		AddWord("gamma", 10, 100, 40, 110)
	e, committer, handle := newTestEngine(t, Config{}, page)

	added, err := e.AddHighlight(0, geom.Rect{X0: 5, Y0: 5, X1: 85, Y1: 25}, view.Identity())
	if err != nil {
		t.Fatalf("AddHighlight() error = %v", err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want the two words in the drag rect", added)
	}
	if committer.commits != 1 {
		t.Fatalf("commits = %d, want 1", committer.commits)
	}
	annots, _ := handle.Annotations(0)
	if len(annots) != 2 {
		t.Fatalf("annotations = %d, want 2", len(annots))
	}
}

func TestOverlayCapsRenderedAnnotations(t *testing.T) {
	e, _, handle := newTestEngine(t, Config{MaxRendered: 2})
	for i := 0; i < 3; i++ {
		if _, err := handle.AddAnnotation(0, document.Highlight{
			Rect: geom.Rect{X0: float64(i * 10), Y0: 10, X1: float64(i*10 + 5), Y1: 20},
		}); err != nil {
			t.Fatalf("AddAnnotation() error = %v", err)
		}
	}
	img, skipped, err := e.RenderOverlay(0, view.Identity(), 200, 400)
	if err != nil {
		t.Fatalf("RenderOverlay() error = %v", err)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1 over the cap", skipped)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 400 {
		t.Fatalf("overlay bounds = %v, want 200x400", b)
	}
	// The capped third highlight at x>=20 must leave its pixels untouched.
	if _, _, _, a := img.At(22, 15).RGBA(); a != 0 {
		t.Fatalf("capped annotation was drawn")
	}
	if _, _, _, a := img.At(2, 15).RGBA(); a == 0 {
		t.Fatalf("first annotation was not drawn")
	}
}

func TestReportListsAnnotations(t *testing.T) {
	e, _, handle := newTestEngine(t, Config{},
		memdoc.Page(200, 400), memdoc.Page(200, 400))

	if _, err := handle.AddAnnotation(0, document.Ink{
		Paths: [][]geom.Point{{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}},
		Width: 2,
	}); err != nil {
		t.Fatalf("AddAnnotation() error = %v", err)
	}
	if _, err := handle.AddAnnotation(1, document.FreeText{
		Rect: geom.Rect{X0: 10, Y0: 10, X1: 100, Y1: 40},
		Text: "check **this** paragraph",
	}); err != nil {
		t.Fatalf("AddAnnotation() error = %v", err)
	}

	md, err := e.Report()
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	for _, want := range []string{"## Page 1", "## Page 2", "Ink stroke, 3 points", "check **this** paragraph", "Total: 2"} {
		if !strings.Contains(md, want) {
			t.Fatalf("report missing %q:\n%s", want, md)
		}
	}

	html, err := e.ReportHTML()
	if err != nil {
		t.Fatalf("ReportHTML() error = %v", err)
	}
	if !strings.Contains(string(html), "<strong>this</strong>") {
		t.Fatalf("markdown in note text should render in HTML:\n%s", html)
	}
}

func TestPlainTextStripsMarkdown(t *testing.T) {
	if got := plainText("**bold** and _soft_"); got != "bold and soft" {
		t.Fatalf("plainText() = %q", got)
	}
}
