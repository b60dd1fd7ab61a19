// Package memdoc is a reference implementation of the document collaborator
// backed by a JSON-lines file: the first line describes the pages, each
// following line is an incremental update carrying the full annotation and
// form state at the time it was appended. The format mirrors the append-only
// discipline of real incremental saves, including the rule that a document
// recovered from trailing garbage refuses further incremental writes.
package memdoc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/geom"
)

// PageSpec declares one page of a base document.
type PageSpec struct {
	Width  float64              `json:"w"`
	Height float64              `json:"h"`
	Words  []wordRec            `json:"words,omitempty"`
	Fields []document.FormField `json:"fields,omitempty"`
}

type wordRec struct {
	Text string     `json:"t"`
	Rect [4]float64 `json:"r"`
}

type baseRec struct {
	Pages []PageSpec `json:"pages"`
}

type annotRec struct {
	Type  string         `json:"type"`
	Ref   int            `json:"ref"`
	Color document.Color `json:"color"`
	Width float64        `json:"width,omitempty"`
	Paths [][][2]float64 `json:"paths,omitempty"`
	Rect  [4]float64     `json:"rect,omitempty"`
	Text  string         `json:"text,omitempty"`
}

type updateRec struct {
	Annots  map[int][]annotRec        `json:"annots"`
	Fields  map[int]map[string]string `json:"fields,omitempty"`
	NextRef int                       `json:"next_ref"`
}

// Doc implements document.Document.
type Doc struct {
	path     string
	pages    []PageSpec
	annots   map[int][]document.Annotation
	values   map[int]map[string]string
	nextRef  int
	repaired bool
	closed   bool
}

// Provider opens memdoc files.
type Provider struct{}

var _ document.Provider = Provider{}

// Open reads a memdoc file, applying every valid update line in order. A
// final line that fails to parse is dropped and the document is marked
// repaired, which forbids later incremental saves; an unparsable base line is
// a malformed-document failure.
func (Provider) Open(path string) (document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		kind := document.OpenNotFound
		if errors.Is(err, fs.ErrPermission) {
			kind = document.OpenPermission
		} else if !errors.Is(err, fs.ErrNotExist) {
			kind = document.OpenMalformed
		}
		return nil, &document.OpenError{Kind: kind, Path: path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &document.OpenError{Kind: document.OpenEmpty, Path: path}
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		return nil, &document.OpenError{Kind: document.OpenEmpty, Path: path}
	}
	var base baseRec
	if err := json.Unmarshal(sc.Bytes(), &base); err != nil {
		return nil, &document.OpenError{Kind: document.OpenMalformed, Path: path, Err: err}
	}
	if len(base.Pages) == 0 {
		return nil, &document.OpenError{Kind: document.OpenZeroPages, Path: path}
	}

	d := &Doc{
		path:    path,
		pages:   base.Pages,
		annots:  make(map[int][]document.Annotation),
		values:  make(map[int]map[string]string),
		nextRef: 1,
	}
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var upd updateRec
		if err := json.Unmarshal(line, &upd); err != nil {
			// Trailing garbage: recoverable, but the file now needs a
			// full rewrite before it can grow again.
			d.repaired = true
			break
		}
		d.applyUpdate(upd)
	}
	return d, nil
}

func (d *Doc) applyUpdate(upd updateRec) {
	d.annots = make(map[int][]document.Annotation, len(upd.Annots))
	for page, recs := range upd.Annots {
		list := make([]document.Annotation, 0, len(recs))
		for _, rec := range recs {
			if a, ok := decodeAnnot(rec); ok {
				list = append(list, a)
			}
		}
		d.annots[page] = list
	}
	d.values = make(map[int]map[string]string, len(upd.Fields))
	for page, vals := range upd.Fields {
		m := make(map[string]string, len(vals))
		for k, v := range vals {
			m[k] = v
		}
		d.values[page] = m
	}
	if upd.NextRef > d.nextRef {
		d.nextRef = upd.NextRef
	}
}

func (d *Doc) Path() string   { return d.path }
func (d *Doc) PageCount() int { return len(d.pages) }

func (d *Doc) PageSize(page int) (float64, float64, error) {
	if page < 0 || page >= len(d.pages) {
		return 0, 0, fmt.Errorf("page %d out of range [0,%d)", page, len(d.pages))
	}
	return d.pages[page].Width, d.pages[page].Height, nil
}

// RenderPage fills the page white and shades each word box light gray, which
// is enough structure for fit-mode and OCR tests to bite on.
func (d *Doc) RenderPage(ctx context.Context, page int, scale float64, rotation int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, ph, err := d.PageSize(page)
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fmt.Errorf("render page %d: non-positive scale %v", page, scale)
	}
	rw, rh := pw, ph
	if rot := ((rotation%360)+360)%360; rot == 90 || rot == 270 {
		rw, rh = rh, rw
	}
	img := image.NewRGBA(image.Rect(0, 0, int(math.Round(rw*scale)), int(math.Round(rh*scale))))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	m := geom.Rotate90(rotation, pw, ph).Multiply(geom.Scale(scale, scale))
	gray := image.NewUniform(color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff})
	for _, w := range d.pages[page].Words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := transformRect(m, geom.Rect{X0: w.Rect[0], Y0: w.Rect[1], X1: w.Rect[2], Y1: w.Rect[3]})
		box := image.Rect(int(r.X0), int(r.Y0), int(math.Ceil(r.X1)), int(math.Ceil(r.Y1)))
		draw.Draw(img, box.Intersect(img.Bounds()), gray, image.Point{}, draw.Src)
	}
	return img, nil
}

func transformRect(m geom.Matrix, r geom.Rect) geom.Rect {
	a := m.Transform(geom.Point{X: r.X0, Y: r.Y0})
	b := m.Transform(geom.Point{X: r.X1, Y: r.Y1})
	return geom.Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}.Normalize()
}

func (d *Doc) Words(page int) ([]document.Word, error) {
	if page < 0 || page >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [0,%d)", page, len(d.pages))
	}
	words := make([]document.Word, 0, len(d.pages[page].Words))
	for _, w := range d.pages[page].Words {
		words = append(words, document.Word{
			Text: w.Text,
			Rect: geom.Rect{X0: w.Rect[0], Y0: w.Rect[1], X1: w.Rect[2], Y1: w.Rect[3]},
		})
	}
	return words, nil
}

func (d *Doc) Annotations(page int) ([]document.Annotation, error) {
	if page < 0 || page >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [0,%d)", page, len(d.pages))
	}
	return append([]document.Annotation(nil), d.annots[page]...), nil
}

func (d *Doc) AddAnnotation(page int, a document.Annotation) (int, error) {
	if page < 0 || page >= len(d.pages) {
		return 0, fmt.Errorf("page %d out of range [0,%d)", page, len(d.pages))
	}
	ref := d.nextRef
	d.nextRef++
	d.annots[page] = append(d.annots[page], withRef(a, ref))
	return ref, nil
}

func (d *Doc) DeleteAnnotation(page int, ref int) error {
	list := d.annots[page]
	for i, a := range list {
		if a.Ref() == ref {
			d.annots[page] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("page %d ref %d: %w", page, ref, document.ErrNoAnnotation)
}

func (d *Doc) Fields(page int) ([]document.FormField, error) {
	if page < 0 || page >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [0,%d)", page, len(d.pages))
	}
	fields := append([]document.FormField(nil), d.pages[page].Fields...)
	for i := range fields {
		if v, ok := d.values[page][fields[i].Name]; ok {
			fields[i].Value = v
		}
	}
	return fields, nil
}

func (d *Doc) SetFieldValue(page int, name, value string) error {
	if page < 0 || page >= len(d.pages) {
		return fmt.Errorf("page %d out of range [0,%d)", page, len(d.pages))
	}
	for _, f := range d.pages[page].Fields {
		if f.Name == name {
			if d.values[page] == nil {
				d.values[page] = make(map[string]string)
			}
			d.values[page][name] = value
			return nil
		}
	}
	return fmt.Errorf("page %d field %q: %w", page, name, document.ErrNoField)
}

// SaveIncremental appends one update line to the original file.
func (d *Doc) SaveIncremental() error {
	if d.closed {
		return fmt.Errorf("save %s: document closed", d.path)
	}
	if d.repaired {
		return fmt.Errorf("save %s: %w", d.path, document.ErrIncrementalForbidden)
	}
	line, err := json.Marshal(d.currentUpdate())
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	f, err := os.OpenFile(d.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("append to %s: %w", d.path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to %s: %w", d.path, err)
	}
	return nil
}

// WriteTo writes a consolidated copy: the base record plus one update line
// holding the live state. The copy always permits incremental saves again.
func (d *Doc) WriteTo(w io.Writer) (int64, error) {
	base, err := json.Marshal(baseRec{Pages: d.pages})
	if err != nil {
		return 0, fmt.Errorf("encode base: %w", err)
	}
	upd, err := json.Marshal(d.currentUpdate())
	if err != nil {
		return 0, fmt.Errorf("encode update: %w", err)
	}
	var total int64
	for _, chunk := range [][]byte{base, {'\n'}, upd, {'\n'}} {
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (d *Doc) Close() error {
	d.closed = true
	return nil
}

func (d *Doc) currentUpdate() updateRec {
	upd := updateRec{
		Annots:  make(map[int][]annotRec, len(d.annots)),
		NextRef: d.nextRef,
	}
	for page, list := range d.annots {
		recs := make([]annotRec, 0, len(list))
		for _, a := range list {
			recs = append(recs, encodeAnnot(a))
		}
		upd.Annots[page] = recs
	}
	if len(d.values) > 0 {
		upd.Fields = make(map[int]map[string]string, len(d.values))
		for page, vals := range d.values {
			m := make(map[string]string, len(vals))
			for k, v := range vals {
				m[k] = v
			}
			upd.Fields[page] = m
		}
	}
	return upd
}

func withRef(a document.Annotation, ref int) document.Annotation {
	switch v := a.(type) {
	case document.Ink:
		v.XRef = ref
		return v
	case document.FreeText:
		v.XRef = ref
		return v
	case document.Highlight:
		v.XRef = ref
		return v
	default:
		return a
	}
}

func encodeAnnot(a document.Annotation) annotRec {
	switch v := a.(type) {
	case document.Ink:
		rec := annotRec{Type: "ink", Ref: v.XRef, Color: v.Color, Width: v.Width}
		for _, path := range v.Paths {
			pts := make([][2]float64, len(path))
			for i, p := range path {
				pts[i] = [2]float64{p.X, p.Y}
			}
			rec.Paths = append(rec.Paths, pts)
		}
		return rec
	case document.FreeText:
		return annotRec{
			Type: "freetext", Ref: v.XRef, Color: v.Color, Text: v.Text,
			Rect: [4]float64{v.Rect.X0, v.Rect.Y0, v.Rect.X1, v.Rect.Y1},
		}
	case document.Highlight:
		return annotRec{
			Type: "highlight", Ref: v.XRef, Color: v.Color,
			Rect: [4]float64{v.Rect.X0, v.Rect.Y0, v.Rect.X1, v.Rect.Y1},
		}
	default:
		return annotRec{}
	}
}

func decodeAnnot(rec annotRec) (document.Annotation, bool) {
	switch rec.Type {
	case "ink":
		a := document.Ink{XRef: rec.Ref, Color: rec.Color, Width: rec.Width}
		for _, pts := range rec.Paths {
			path := make([]geom.Point, len(pts))
			for i, p := range pts {
				path[i] = geom.Point{X: p[0], Y: p[1]}
			}
			a.Paths = append(a.Paths, path)
		}
		return a, true
	case "freetext":
		return document.FreeText{
			XRef: rec.Ref, Color: rec.Color, Text: rec.Text,
			Rect: geom.Rect{X0: rec.Rect[0], Y0: rec.Rect[1], X1: rec.Rect[2], Y1: rec.Rect[3]},
		}, true
	case "highlight":
		return document.Highlight{
			XRef: rec.Ref, Color: rec.Color,
			Rect: geom.Rect{X0: rec.Rect[0], Y0: rec.Rect[1], X1: rec.Rect[2], Y1: rec.Rect[3]},
		}, true
	default:
		return nil, false
	}
}

// Write creates a base memdoc file at path.
func Write(path string, pages []PageSpec) error {
	base, err := json.Marshal(baseRec{Pages: pages})
	if err != nil {
		return fmt.Errorf("encode base: %w", err)
	}
	return os.WriteFile(path, append(base, '\n'), 0o644)
}

// Page builds a PageSpec; words are laid out by the caller via AddWord.
func Page(w, h float64) PageSpec { return PageSpec{Width: w, Height: h} }

// AddWord appends a word with its document-space rectangle.
func (p PageSpec) AddWord(text string, x0, y0, x1, y1 float64) PageSpec {
	p.Words = append(p.Words, wordRec{Text: text, Rect: [4]float64{x0, y0, x1, y1}})
	return p
}

// AddField appends a form field.
func (p PageSpec) AddField(f document.FormField) PageSpec {
	p.Fields = append(p.Fields, f)
	return p
}
