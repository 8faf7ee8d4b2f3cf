package corpus

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Corpus is the searchable corpus definition (immutable value object).
type Corpus struct {
	name   string
	title  string
	index  string
	fields []field.Field
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("corpus name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("corpus name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("corpus name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

func validateFields(fields []field.Field) error {
	if len(fields) > 128 {
		return fmt.Errorf("too many fields (max 128)")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
	}
	return nil
}

// New validates and creates a Corpus. Index defaults to "<name>:idx".
func New(name, title, index string, fields []field.Field) (Corpus, error) {
	if err := validateName(name); err != nil {
		return Corpus{}, err
	}
	if err := validateFields(fields); err != nil {
		return Corpus{}, err
	}
	if index == "" {
		index = name + ":idx"
	}
	if title == "" {
		title = name
	}
	return Corpus{name: name, title: title, index: index, fields: fields}, nil
}

// Reconstruct creates a Corpus without validation.
func Reconstruct(name, index string, fields []field.Field) Corpus {
	return Corpus{name: name, title: name, index: index, fields: fields}
}

// Name returns the corpus name.
func (c Corpus) Name() string { return c.name }

// Title returns the display title.
func (c Corpus) Title() string { return c.title }

// Index returns the backend index name.
func (c Corpus) Index() string { return c.index }

// Fields returns a copy of all corpus fields.
func (c Corpus) Fields() []field.Field {
	out := make([]field.Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// FilterableFields returns the fields that carry a filter type, in declaration order.
func (c Corpus) FilterableFields() []field.Field {
	out := make([]field.Field, 0, len(c.fields))
	for _, f := range c.fields {
		if f.Filterable() {
			out = append(out, f)
		}
	}
	return out
}

// FieldByName looks up a field by name.
func (c Corpus) FieldByName(name string) (field.Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}
