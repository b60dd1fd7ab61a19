package document

import (
	"context"
	"image"
	"io"
	"testing"

	"github.com/wudi/pdfview/geom"
)

// stubDoc is the minimal Document for handle tests.
type stubDoc struct {
	path   string
	closed bool
}

func (d *stubDoc) Path() string   { return d.path }
func (d *stubDoc) PageCount() int { return 1 }

func (d *stubDoc) PageSize(int) (float64, float64, error) { return 100, 100, nil }

func (d *stubDoc) RenderPage(context.Context, int, float64, int) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (d *stubDoc) Words(int) ([]Word, error)                  { return nil, nil }
func (d *stubDoc) Annotations(int) ([]Annotation, error)      { return nil, nil }
func (d *stubDoc) AddAnnotation(int, Annotation) (int, error) { return 1, nil }
func (d *stubDoc) DeleteAnnotation(int, int) error            { return nil }
func (d *stubDoc) Fields(int) ([]FormField, error)            { return nil, nil }
func (d *stubDoc) SetFieldValue(int, string, string) error    { return nil }
func (d *stubDoc) SaveIncremental() error                     { return nil }
func (d *stubDoc) WriteTo(io.Writer) (int64, error)           { return 0, nil }

func (d *stubDoc) Close() error {
	d.closed = true
	return nil
}

func TestHandleReplaceBumpsEpochAndClosesOld(t *testing.T) {
	first := &stubDoc{path: "a"}
	h := NewHandle(first)
	if h.Epoch() != 0 {
		t.Fatalf("fresh epoch = %d, want 0", h.Epoch())
	}

	second := &stubDoc{path: "b"}
	if err := h.Replace(second); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if h.Epoch() != 1 {
		t.Fatalf("epoch after replace = %d, want 1", h.Epoch())
	}
	if !first.closed {
		t.Fatalf("replaced document must be closed")
	}
	if h.Path() != "b" {
		t.Fatalf("Path() = %q, want the replacement", h.Path())
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !second.closed {
		t.Fatalf("Close() must close the current document")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestInkBoundsSpanPaths(t *testing.T) {
	ink := Ink{Paths: [][]geom.Point{
		{{X: 10, Y: 10}, {X: 20, Y: 5}},
		{},
		{{X: 50, Y: 40}},
	}}
	want := geom.Rect{X0: 10, Y0: 5, X1: 50, Y1: 40}
	if got := ink.Bounds(); got != want {
		t.Fatalf("Bounds() = %+v, want %+v", got, want)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{in: "#ffff00", want: Color{R: 1, G: 1, B: 0}},
		{in: "ff0000", want: Color{R: 1}},
		{in: "#f00", want: Color{R: 1}},
		{in: "#12345", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseHexColor(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseHexColor(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseHexColor(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
