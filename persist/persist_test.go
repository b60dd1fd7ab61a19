package persist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/document/memdoc"
	"github.com/wudi/pdfview/geom"
)

func writeDoc(t *testing.T, trailingGarbage bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.jsonl")
	if err := memdoc.Write(path, []memdoc.PageSpec{memdoc.Page(200, 400)}); err != nil {
		t.Fatalf("memdoc.Write() error = %v", err)
	}
	if trailingGarbage {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if _, err := f.WriteString("{truncated upda"); err != nil {
			t.Fatalf("append: %v", err)
		}
		f.Close()
	}
	return path
}

func openHandle(t *testing.T, path string) *document.Handle {
	t.Helper()
	doc, err := memdoc.Provider{}.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	h := document.NewHandle(doc)
	t.Cleanup(func() { h.Close() })
	return h
}

func addInk(t *testing.T, h *document.Handle) {
	t.Helper()
	_, err := h.AddAnnotation(0, document.Ink{
		Paths: [][]geom.Point{{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}},
		Width: 2,
	})
	if err != nil {
		t.Fatalf("AddAnnotation() error = %v", err)
	}
}

func TestCommitIncremental(t *testing.T) {
	path := writeDoc(t, false)
	h := openHandle(t, path)
	m := NewManager(h, memdoc.Provider{}, nil)

	addInk(t, h)
	if err := m.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if h.Epoch() != 0 {
		t.Fatalf("epoch = %d, want 0 (no reopen on incremental save)", h.Epoch())
	}

	// A fresh open sees the appended update.
	h2 := openHandle(t, path)
	annots, err := h2.Annotations(0)
	if err != nil {
		t.Fatalf("Annotations() error = %v", err)
	}
	if len(annots) != 1 {
		t.Fatalf("reloaded annotations = %d, want 1", len(annots))
	}
}

func TestCommitFallsBackToFullSave(t *testing.T) {
	path := writeDoc(t, true)
	h := openHandle(t, path)
	m := NewManager(h, memdoc.Provider{}, nil)

	addInk(t, h)
	if err := m.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if h.Epoch() != 1 {
		t.Fatalf("epoch = %d, want 1 after full-save reopen", h.Epoch())
	}

	// The rewrite consolidated the file, so the annotation survived and the
	// next commit goes back to the incremental path.
	annots, err := h.Annotations(0)
	if err != nil {
		t.Fatalf("Annotations() error = %v", err)
	}
	if len(annots) != 1 {
		t.Fatalf("annotations after reopen = %d, want 1", len(annots))
	}
	addInk(t, h)
	if err := m.Commit(); err != nil {
		t.Fatalf("second Commit() error = %v", err)
	}
	if h.Epoch() != 1 {
		t.Fatalf("epoch = %d, want 1 (second commit should be incremental)", h.Epoch())
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries, want only the document", len(entries))
	}
}

// brokenDoc fails both save strategies.
type brokenDoc struct {
	document.Document
}

func (d brokenDoc) SaveIncremental() error { return document.ErrIncrementalForbidden }

func (d brokenDoc) WriteTo(w io.Writer) (int64, error) {
	return 0, fmt.Errorf("disk full")
}

func TestCommitReportsFullStageFailure(t *testing.T) {
	path := writeDoc(t, false)
	doc, err := memdoc.Provider{}.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	h := document.NewHandle(brokenDoc{Document: doc})
	t.Cleanup(func() { h.Close() })
	m := NewManager(h, memdoc.Provider{}, nil)

	err = m.Commit()
	var saveErr *SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("Commit() error = %v, want *SaveError", err)
	}
	if saveErr.Stage != StageFull {
		t.Fatalf("stage = %v, want full", saveErr.Stage)
	}
	// The chain carries the incremental cause alongside the full-save one.
	if !errors.Is(err, document.ErrIncrementalForbidden) {
		t.Fatalf("error chain dropped the incremental cause: %v", err)
	}

	// Both stages failed: the original file must be untouched.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("original file was clobbered")
	}
}
