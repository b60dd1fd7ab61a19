package document

import (
	"errors"
	"fmt"
)

// OpenErrorKind categorizes why a document could not be opened.
type OpenErrorKind int

const (
	OpenNotFound OpenErrorKind = iota
	OpenEmpty
	OpenMalformed
	OpenPermission
	OpenZeroPages
)

func (k OpenErrorKind) String() string {
	switch k {
	case OpenNotFound:
		return "file not found"
	case OpenEmpty:
		return "file is empty"
	case OpenMalformed:
		return "malformed document data"
	case OpenPermission:
		return "permission denied"
	case OpenZeroPages:
		return "document has no pages"
	default:
		return "unknown open failure"
	}
}

// OpenError is the typed failure returned by Provider.Open. The Kind gives
// the human-readable category surfaced to the user; Err carries the
// underlying cause when there is one.
type OpenError struct {
	Kind OpenErrorKind
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("open %s: %s", e.Path, e.Kind)
}

func (e *OpenError) Unwrap() error { return e.Err }

// AsOpenError unwraps err to an *OpenError if there is one.
func AsOpenError(err error) (*OpenError, bool) {
	var oe *OpenError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// ErrIncrementalForbidden is returned by SaveIncremental when the document
// does not permit incremental writes, typically because it was structurally
// repaired at open time. Callers fall back to a full save.
var ErrIncrementalForbidden = errors.New("document: incremental writes not permitted")

// ErrNoAnnotation is returned when an annotation reference does not exist.
var ErrNoAnnotation = errors.New("document: no such annotation")

// ErrNoField is returned when a form field name does not exist on the page.
var ErrNoField = errors.New("document: no such form field")
