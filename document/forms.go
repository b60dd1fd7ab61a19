package document

import "github.com/wudi/pdfview/geom"

// FieldKind identifies a form field widget type.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldCheckbox
	FieldRadio
	FieldCombo
	FieldList
)

func (k FieldKind) String() string {
	switch k {
	case FieldText:
		return "text"
	case FieldCheckbox:
		return "checkbox"
	case FieldRadio:
		return "radio"
	case FieldCombo:
		return "combo"
	case FieldList:
		return "list"
	default:
		return "unknown"
	}
}

// FormField describes one interactive form widget on a page.
type FormField struct {
	Name    string
	Kind    FieldKind
	Value   string
	Options []string // choice values for combo/list/radio groups
	Export  string   // checkbox on-state export value, "Yes" when unset
	Rect    geom.Rect

	// Calculate and Validate hold the field's JavaScript actions, empty
	// when the document defines none.
	Calculate string
	Validate  string
}
