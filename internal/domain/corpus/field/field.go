package field

import (
	"fmt"
	"time"
)

// FilterType is the filter widget kind attached to a corpus field.
type FilterType string

// Filter type constants.
const (
	None           FilterType = ""
	Boolean        FilterType = "boolean"
	Range          FilterType = "range"
	Date           FilterType = "date"
	MultipleChoice FilterType = "multiple_choice"
	Tag            FilterType = "tag"
)

// IsValid checks if the filter type is one of the supported values.
func (t FilterType) IsValid() bool {
	switch t {
	case None, Boolean, Range, Date, MultipleChoice, Tag:
		return true
	}
	return false
}

// reservedNames are URL parameter keys owned by the query model itself.
var reservedNames = map[string]bool{
	"query": true, "sort": true, "highlight": true, "page": true,
}

// IsReserved reports whether name collides with a query model parameter key.
func IsReserved(name string) bool { return reservedNames[name] }

// Options holds the filter-specific settings declared by the corpus definition.
type Options struct {
	Lower       float64
	Upper       float64
	// HasBounds is set when Lower and Upper were declared.
	HasBounds   bool
	MinDate     time.Time
	MaxDate     time.Time
	OptionCount int
}

// Field is an immutable value object describing a searchable corpus column.
type Field struct {
	name        string
	displayName string
	filterType  FilterType
	options     Options
}

// New validates and creates a Field.
// Name must be non-empty, max 64 chars, and not a reserved parameter key.
func New(name, displayName string, ft FilterType, opts Options) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if IsReserved(name) {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if !ft.IsValid() {
		return Field{}, fmt.Errorf("invalid filter type %q for %q", ft, name)
	}
	if opts.Lower > opts.Upper {
		return Field{}, fmt.Errorf("field %q: lower bound %g exceeds upper bound %g", name, opts.Lower, opts.Upper)
	}
	if !opts.MinDate.IsZero() && !opts.MaxDate.IsZero() && opts.MinDate.After(opts.MaxDate) {
		return Field{}, fmt.Errorf("field %q: min date after max date", name)
	}
	if opts.OptionCount < 0 {
		return Field{}, fmt.Errorf("field %q: option count must not be negative", name)
	}
	if displayName == "" {
		displayName = name
	}
	return Field{name: name, displayName: displayName, filterType: ft, options: opts}, nil
}

// Reconstruct creates a Field without validation.
func Reconstruct(name string, ft FilterType, opts Options) Field {
	return Field{name: name, displayName: name, filterType: ft, options: opts}
}

// Name returns the field name, which doubles as its URL parameter key.
func (f Field) Name() string { return f.name }

// DisplayName returns the human readable field label.
func (f Field) DisplayName() string { return f.displayName }

// FilterType returns the filter kind (None when the field is not filterable).
func (f Field) FilterType() FilterType { return f.filterType }

// Filterable reports whether the field carries a filter.
func (f Field) Filterable() bool { return f.filterType != None }

// Options returns the declared filter options.
func (f Field) Options() Options { return f.options }
