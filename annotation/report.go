package annotation

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/wudi/pdfview/document"
)

var markdown = goldmark.New()

// Report produces a Markdown summary of every annotation in the document,
// grouped by page. Note text is embedded verbatim, so notes written in
// Markdown render structured in the HTML export.
func (e *Engine) Report() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Annotations: %s\n", e.handle.Path())
	total := 0
	for page := 0; page < e.handle.PageCount(); page++ {
		annots, err := e.handle.Annotations(page)
		if err != nil {
			return "", fmt.Errorf("page %d annotations: %w", page, err)
		}
		if len(annots) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## Page %d\n\n", page+1)
		for _, a := range annots {
			total++
			bounds := a.Bounds()
			switch v := a.(type) {
			case document.Ink:
				pts := 0
				for _, p := range v.Paths {
					pts += len(p)
				}
				fmt.Fprintf(&b, "- Ink stroke, %d points, width %.1f at (%.0f, %.0f)\n",
					pts, v.Width, bounds.X0, bounds.Y0)
			case document.Highlight:
				fmt.Fprintf(&b, "- Highlight at (%.0f, %.0f), %.0fx%.0f\n",
					bounds.X0, bounds.Y0, bounds.Width(), bounds.Height())
			case document.FreeText:
				fmt.Fprintf(&b, "- Note at (%.0f, %.0f):\n\n", bounds.X0, bounds.Y0)
				for _, line := range strings.Split(v.Text, "\n") {
					fmt.Fprintf(&b, "  > %s\n", line)
				}
			}
		}
	}
	fmt.Fprintf(&b, "\nTotal: %d annotations\n", total)
	return b.String(), nil
}

// ReportHTML renders the Markdown report to HTML.
func (e *Engine) ReportHTML() ([]byte, error) {
	md, err := e.Report()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// plainText strips Markdown structure from note text for the overlay label,
// where only raw glyphs fit.
func plainText(md string) string {
	source := []byte(md)
	node := markdown.Parser().Parse(gtext.NewReader(source))
	var b strings.Builder
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
