// Package scripting runs the JavaScript actions attached to form fields.
// The engine is sandboxed: scripts see only the DOM the viewer registers,
// never the filesystem or network.
package scripting

import (
	"context"
)

// Engine represents a scripting engine (e.g., JavaScript).
type Engine interface {
	// Execute executes a script in the context of the document.
	Execute(ctx context.Context, script string) (interface{}, error)

	// ExecuteEvent executes a field action script with an event object
	// bound, following the AcroForm convention: validate scripts read
	// event.value and may clear event.rc to reject, calculate scripts
	// assign event.value.
	ExecuteEvent(ctx context.Context, script string, ev *Event) error

	// RegisterDOM registers the document object model with the engine.
	RegisterDOM(dom DOM) error
}

// Event carries the mutable state a field action script operates on.
type Event struct {
	// Value is the proposed (validate) or computed (calculate) field value.
	Value interface{}
	// RC is the return code; a validate script clears it to reject the
	// proposed value. It starts true.
	RC bool
}

// DOM exposes the document structure to scripts through a controlled API.
type DOM interface {
	// GetField returns a form field by fully qualified name.
	GetField(name string) (FieldProxy, error)

	// PageCount returns the number of pages.
	PageCount() int

	// Alert shows an alert dialog (if supported by the viewer).
	Alert(message string)
}

// FieldProxy represents a form field exposed to scripts.
type FieldProxy interface {
	GetValue() interface{}
	SetValue(value interface{})
}
