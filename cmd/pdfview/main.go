// Command pdfview drives the viewing engine headlessly: page export, search,
// annotation reports and single-instance handoff.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wudi/pdfview/document/memdoc"
	"github.com/wudi/pdfview/instance"
	"github.com/wudi/pdfview/observability"
	"github.com/wudi/pdfview/viewer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "export":
		err = cmdExport(os.Args[2:])
	case "search":
		err = cmdSearch(os.Args[2:])
	case "annots":
		err = cmdAnnots(os.Args[2:])
	case "send":
		err = cmdSend(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "pdfview: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfview: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: pdfview <command> [flags]

Commands:
  export   Render one page to a PNG file
  search   Find a query across all pages
  annots   Print the annotation report
  send     Hand a file path to the running primary instance
`)
}

func openEngine(path string, verbose bool) (*viewer.Engine, error) {
	b := (&viewer.EngineBuilder{}).WithProvider(memdoc.Provider{})
	if verbose {
		b = b.WithLogger(stderrLogger{})
	}
	eng, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := eng.Open(path); err != nil {
		return nil, err
	}
	return eng, nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	page := fs.Int("page", 0, "Zero-based page index")
	scale := fs.Float64("scale", 1.0, "Render scale")
	out := fs.String("out", "page.png", "Output PNG path")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("export: missing document path")
	}

	eng, err := openEngine(fs.Arg(0), *verbose)
	if err != nil {
		return err
	}
	defer eng.Close()

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()
	if err := eng.ExportPage(context.Background(), *page, *scale, f); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func cmdSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("search: want <query> <document>")
	}
	query, path := fs.Arg(0), fs.Arg(1)

	eng, err := openEngine(path, *verbose)
	if err != nil {
		return err
	}
	defer eng.Close()

	n, err := eng.Search().Search(context.Background(), query)
	if err != nil {
		return err
	}
	for _, m := range eng.Search().Matches() {
		fmt.Printf("page %d: %s\n", m.Page+1, m.Text)
	}
	fmt.Printf("%d matches\n", n)
	return nil
}

func cmdAnnots(args []string) error {
	fs := flag.NewFlagSet("annots", flag.ExitOnError)
	html := fs.Bool("html", false, "Emit HTML instead of Markdown")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("annots: missing document path")
	}

	eng, err := openEngine(fs.Arg(0), *verbose)
	if err != nil {
		return err
	}
	defer eng.Close()

	if *html {
		out, err := eng.Annotations().ReportHTML()
		if err != nil {
			return err
		}
		os.Stdout.Write(out)
		return nil
	}
	out, err := eng.Annotations().Report()
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func cmdSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	addr := fs.String("addr", instance.DefaultAddr, "Primary instance address")
	fs.Parse(args)

	path := ""
	if fs.NArg() > 0 {
		abs, err := absPath(fs.Arg(0))
		if err != nil {
			return err
		}
		path = abs
	}
	if err := instance.Send(*addr, path); err != nil {
		return err
	}
	if path == "" {
		fmt.Println("raised primary instance")
	} else {
		fmt.Printf("sent %s to primary instance\n", path)
	}
	return nil
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return abs, nil
}

// stderrLogger is the minimal Logger for -v runs.
type stderrLogger struct {
	fields []observability.Field
}

func (l stderrLogger) log(level, msg string, fields []observability.Field) {
	fmt.Fprintf(os.Stderr, "%s %s", level, msg)
	for _, f := range append(l.fields, fields...) {
		fmt.Fprintf(os.Stderr, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(os.Stderr)
}

func (l stderrLogger) Debug(msg string, fields ...observability.Field) { l.log("DEBUG", msg, fields) }
func (l stderrLogger) Info(msg string, fields ...observability.Field)  { l.log("INFO", msg, fields) }
func (l stderrLogger) Warn(msg string, fields ...observability.Field)  { l.log("WARN", msg, fields) }
func (l stderrLogger) Error(msg string, fields ...observability.Field) { l.log("ERROR", msg, fields) }

func (l stderrLogger) With(fields ...observability.Field) observability.Logger {
	return stderrLogger{fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}
