// Package forms fills interactive form fields, running the validate and
// calculate actions attached to them through the scripting engine. Field
// names are document-wide: a lookup scans pages in order and the first match
// wins, matching how fully qualified names resolve.
package forms

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfview/document"
	"github.com/wudi/pdfview/observability"
	"github.com/wudi/pdfview/scripting"
)

// ErrRejected reports a value refused by a field's validate action.
var ErrRejected = errors.New("value rejected by validate action")

// Committer persists the document after a successful field change.
type Committer interface {
	Commit() error
}

// AlertFunc receives app.alert messages raised by field scripts. The default
// logs them.
type AlertFunc func(message string)

// Engine fills form fields on one document handle.
type Engine struct {
	handle    *document.Handle
	script    scripting.Engine
	committer Committer
	logger    observability.Logger
	alert     AlertFunc
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithAlert routes script alerts to the viewer.
func WithAlert(fn AlertFunc) Option {
	return func(e *Engine) { e.alert = fn }
}

// WithCommitter persists the document after each successful change.
func WithCommitter(c Committer) Option {
	return func(e *Engine) { e.committer = c }
}

// NewEngine builds a form engine. The scripting engine gets the document DOM
// registered so field actions can reach other fields.
func NewEngine(handle *document.Handle, script scripting.Engine, opts ...Option) (*Engine, error) {
	e := &Engine{
		handle: handle,
		script: script,
		logger: observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.alert == nil {
		e.alert = func(msg string) {
			e.logger.Info("script alert", observability.String("message", msg))
		}
	}
	if err := script.RegisterDOM((*dom)(e)); err != nil {
		return nil, fmt.Errorf("register dom: %w", err)
	}
	return e, nil
}

// Fields returns the form fields of a page with current values.
func (e *Engine) Fields(page int) ([]document.FormField, error) {
	return e.handle.Fields(page)
}

// SetValue validates and assigns a field value, then reruns the calculate
// actions of every field in the document, the way a field commit recalculates
// dependent totals. A validate rejection leaves the field untouched and
// returns an error matching ErrRejected.
func (e *Engine) SetValue(ctx context.Context, page int, name, value string) error {
	field, err := e.findField(page, name)
	if err != nil {
		return err
	}
	if field.Validate != "" {
		ev := &scripting.Event{Value: value, RC: true}
		if err := e.script.ExecuteEvent(ctx, field.Validate, ev); err != nil {
			return fmt.Errorf("validate %s: %w", name, err)
		}
		if !ev.RC {
			return fmt.Errorf("field %s value %q: %w", name, value, ErrRejected)
		}
		value = fmt.Sprint(ev.Value)
	}
	if err := e.handle.SetFieldValue(page, name, value); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	e.logger.Debug("field set",
		observability.Int("page", page),
		observability.String("field", name))

	if err := e.recalculate(ctx); err != nil {
		return err
	}
	if e.committer != nil {
		if err := e.committer.Commit(); err != nil {
			return fmt.Errorf("commit field change: %w", err)
		}
	}
	return nil
}

// recalculate runs every calculate action in page order and writes the
// computed values back.
func (e *Engine) recalculate(ctx context.Context) error {
	for page := 0; page < e.handle.PageCount(); page++ {
		fields, err := e.handle.Fields(page)
		if err != nil {
			return fmt.Errorf("page %d fields: %w", page, err)
		}
		for _, f := range fields {
			if f.Calculate == "" {
				continue
			}
			ev := &scripting.Event{Value: f.Value, RC: true}
			if err := e.script.ExecuteEvent(ctx, f.Calculate, ev); err != nil {
				return fmt.Errorf("calculate %s: %w", f.Name, err)
			}
			if err := e.handle.SetFieldValue(page, f.Name, fmt.Sprint(ev.Value)); err != nil {
				return fmt.Errorf("store calculated %s: %w", f.Name, err)
			}
		}
	}
	return nil
}

func (e *Engine) findField(page int, name string) (document.FormField, error) {
	fields, err := e.handle.Fields(page)
	if err != nil {
		return document.FormField{}, fmt.Errorf("page %d fields: %w", page, err)
	}
	for _, f := range fields {
		if f.Name == name {
			return f, nil
		}
	}
	return document.FormField{}, fmt.Errorf("page %d field %q: %w", page, name, document.ErrNoField)
}

// dom adapts the engine to the scripting DOM. Field lookups scan all pages.
type dom Engine

func (d *dom) GetField(name string) (scripting.FieldProxy, error) {
	e := (*Engine)(d)
	for page := 0; page < e.handle.PageCount(); page++ {
		fields, err := e.handle.Fields(page)
		if err != nil {
			continue
		}
		for _, f := range fields {
			if f.Name == name {
				return &fieldProxy{engine: e, page: page, name: name}, nil
			}
		}
	}
	return nil, fmt.Errorf("field %q: %w", name, document.ErrNoField)
}

func (d *dom) PageCount() int { return (*Engine)(d).handle.PageCount() }

func (d *dom) Alert(message string) { (*Engine)(d).alert(message) }

type fieldProxy struct {
	engine *Engine
	page   int
	name   string
}

func (p *fieldProxy) GetValue() interface{} {
	fields, err := p.engine.handle.Fields(p.page)
	if err != nil {
		return nil
	}
	for _, f := range fields {
		if f.Name == p.name {
			return f.Value
		}
	}
	return nil
}

func (p *fieldProxy) SetValue(value interface{}) {
	if err := p.engine.handle.SetFieldValue(p.page, p.name, fmt.Sprint(value)); err != nil {
		p.engine.logger.Warn("script field write failed",
			observability.String("field", p.name),
			observability.Error("err", err))
	}
}
