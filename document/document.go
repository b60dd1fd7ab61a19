// Package document defines the contract between the viewing engine and the
// external page-rendering collaborator. The collaborator is authoritative for
// document structure: page sizes, rasterization, text runs, annotations and
// form fields all come from it. The engine owns no file-format parsing.
package document

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/wudi/pdfview/geom"
)

// Document is one open document as exposed by the rendering collaborator.
// Implementations need not be safe for concurrent use; the engine serializes
// access through a Handle.
type Document interface {
	// Path returns the file path the document was opened from.
	Path() string

	// PageCount returns the number of pages. Zero-page documents are
	// rejected at open time, so callers may assume it is positive.
	PageCount() int

	// PageSize returns the intrinsic size of a page in document units.
	PageSize(page int) (w, h float64, err error)

	// RenderPage rasterizes a page rotated clockwise by rotation degrees
	// (a multiple of 90) and scaled by scale. The returned image has the
	// rotated page dimensions multiplied by scale.
	RenderPage(ctx context.Context, page int, scale float64, rotation int) (*image.RGBA, error)

	// Words returns the text runs of a page with their document-space
	// bounding rectangles, in reading order.
	Words(page int) ([]Word, error)

	// Annotations returns the page's annotations in native order.
	Annotations(page int) ([]Annotation, error)

	// AddAnnotation appends an annotation to a page and returns the
	// reference the document assigned to it.
	AddAnnotation(page int, a Annotation) (ref int, err error)

	// DeleteAnnotation removes the annotation with the given reference.
	DeleteAnnotation(page int, ref int) error

	// Fields returns the form fields of a page in native order.
	Fields(page int) ([]FormField, error)

	// SetFieldValue updates a form field's value.
	SetFieldValue(page int, name, value string) error

	// SaveIncremental appends pending changes to the original file. It
	// fails with an error matching ErrIncrementalForbidden when the
	// document does not permit incremental writes (for example after a
	// structural repair at open time).
	SaveIncremental() error

	// WriteTo writes a complete copy of the document, including pending
	// changes, to w.
	WriteTo(w io.Writer) (int64, error)

	Close() error
}

// Word is a text run with its document-space bounding rectangle.
type Word struct {
	Text string
	Rect geom.Rect
}

// Provider opens documents. Open failures are reported as *OpenError.
type Provider interface {
	Open(path string) (Document, error)
}

// Handle is the engine's exclusive reference to an open document. It
// serializes all collaborator access behind a mutex, since rasterization on
// worker goroutines must not interleave with annotation commits, and it
// carries an epoch that increments whenever the underlying document is
// replaced (full-save fallback reopens), so cached render results keyed by
// epoch go stale naturally.
type Handle struct {
	mu    sync.Mutex
	doc   Document
	epoch int
}

// NewHandle wraps an open document.
func NewHandle(doc Document) *Handle {
	return &Handle{doc: doc}
}

// Epoch identifies the current underlying document. It changes on Replace.
func (h *Handle) Epoch() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epoch
}

// Replace swaps the underlying document for a reopened one, closing the old
// one. In-memory view state is untouched by design; only the identity of the
// backing file changes.
func (h *Handle) Replace(doc Document) error {
	h.mu.Lock()
	old := h.doc
	h.doc = doc
	h.epoch++
	h.mu.Unlock()
	if old != nil {
		return old.Close()
	}
	return nil
}

func (h *Handle) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Path()
}

func (h *Handle) PageCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.PageCount()
}

func (h *Handle) PageSize(page int) (float64, float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.PageSize(page)
}

func (h *Handle) RenderPage(ctx context.Context, page int, scale float64, rotation int) (*image.RGBA, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.RenderPage(ctx, page, scale, rotation)
}

func (h *Handle) Words(page int) ([]Word, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Words(page)
}

func (h *Handle) Annotations(page int) ([]Annotation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Annotations(page)
}

func (h *Handle) AddAnnotation(page int, a Annotation) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.AddAnnotation(page, a)
}

func (h *Handle) DeleteAnnotation(page int, ref int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.DeleteAnnotation(page, ref)
}

func (h *Handle) Fields(page int) ([]FormField, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Fields(page)
}

func (h *Handle) SetFieldValue(page int, name, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.SetFieldValue(page, name, value)
}

func (h *Handle) SaveIncremental() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.SaveIncremental()
}

func (h *Handle) WriteTo(w io.Writer) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.WriteTo(w)
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.doc == nil {
		return nil
	}
	err := h.doc.Close()
	h.doc = nil
	return err
}
