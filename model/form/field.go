// Package form defines the form schema of an approval definition: an ordered
// list of typed fields, each validating its own constraints and values.
package form

import "github.com/viant/approvo/errs"

// Kind identifies a field variant in the JSON/YAML envelope.
type Kind string

const (
	KindText        Kind = "text"
	KindNumber      Kind = "number"
	KindMoney       Kind = "money"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multiSelect"
	KindDate        Kind = "date"
	KindDateRange   Kind = "dateRange"
	KindUser        Kind = "user"
	KindAttachment  Kind = "attachment"
	KindTable       Kind = "table"
	KindDescription Kind = "description"
)

// DefaultDateLayout is used when a date field does not declare a layout.
const DefaultDateLayout = "2006-01-02"

// Base carries attributes shared by every field variant.
type Base struct {
	Key      string `json:"key" yaml:"key"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Help     string `json:"help,omitempty" yaml:"help,omitempty"`
}

// Header returns the shared attributes.
func (b *Base) Header() *Base { return b }

// Field is one form field variant.
type Field interface {
	Kind() Kind
	Header() *Base
	// Check validates the field declaration, reporting issues under path.
	Check(path string, issues *errs.ValidationError)
	// Validate validates a present, non-empty value reported under key.
	Validate(key string, value interface{}, issues *errs.ValidationError)
}

type defaulter interface {
	applyDefaults()
}

// New returns an empty field of the given kind, or nil for unknown kinds.
func New(kind Kind) Field {
	switch kind {
	case KindText:
		return &Text{}
	case KindNumber:
		return &Number{}
	case KindMoney:
		return &Money{}
	case KindSelect:
		return &Select{}
	case KindMultiSelect:
		return &MultiSelect{}
	case KindDate:
		return &Date{}
	case KindDateRange:
		return &DateRange{}
	case KindUser:
		return &UserPicker{}
	case KindAttachment:
		return &Attachment{}
	case KindTable:
		return &Table{}
	case KindDescription:
		return &Description{}
	}
	return nil
}
