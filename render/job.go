// Package render is the asynchronous page-rendering pipeline: ViewState
// mutations become generation-stamped jobs, a small worker pool rasterizes
// them through the document handle, and results are handed back to the
// owning goroutine, which applies them only when their generation is still
// current. Stale results are dropped silently; the newer job already
// supersedes them.
package render

import (
	"image"

	"github.com/wudi/pdfview/view"
)

// Kind identifies one of the three independent rendering contexts. Each
// keeps its own generation counter and cache slot.
type Kind int

const (
	SinglePage Kind = iota
	Continuous
	Thumbnails
)

func (k Kind) String() string {
	switch k {
	case SinglePage:
		return "single"
	case Continuous:
		return "continuous"
	case Thumbnails:
		return "thumbnails"
	default:
		return "unknown"
	}
}

// Key is the cache key that decides whether a render can be reused. Two keys
// compare equal exactly when a cached result is valid for the request.
type Key struct {
	Kind     Kind
	First    int // first page of the range
	Last     int // last page of the range, inclusive
	Zoom     float64
	Rotation int
	Fit      view.FitMode
	CanvasW  int
	CanvasH  int
	Epoch    int // document identity; changes when the handle is replaced
}

// Job is a unit of work for the worker pool: a page range, the view state
// snapshot it was issued under, and the generation it belongs to.
type Job struct {
	Key        Key
	State      view.State
	Pages      []int
	Scale      float64 // fixed scale for thumbnails; 0 means derive from state
	Generation uint64
}

// PageImage is one rendered page with the transform parameters that were
// actually used, which for fit-page differ from the requested scale after
// aspect correction against the true bitmap.
type PageImage struct {
	Page    int
	Image   *image.RGBA
	Scale   float64
	OffsetX float64
	OffsetY float64
	PageW   float64 // intrinsic page size in document units
	PageH   float64
}

// Transform returns the canvas-to-document mapper for this page image.
func (p PageImage) Transform(rotation int) view.Transform {
	return view.NewTransform(p.Scale, p.OffsetX, p.OffsetY, rotation, p.PageW, p.PageH)
}

// Result is what a worker hands back. Pages holds every page of the batch
// that rendered; pages that failed are skipped and reported through Errs so
// one corrupted page never sinks a thumbnail or continuous batch.
type Result struct {
	Job   Job
	Pages []PageImage
	Errs  []error
}
