package corpusq

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
)

// FilterType selects the filter widget of a field.
type FilterType string

// Filter types. FilterNone marks a searchable field without a filter.
const (
	FilterNone           FilterType = ""
	FilterBoolean        FilterType = "boolean"
	FilterRange          FilterType = "range"
	FilterDate           FilterType = "date"
	FilterMultipleChoice FilterType = "multiple_choice"
	FilterTag            FilterType = "tag"
)

// Field declares a corpus field.
type Field struct {
	Name        string
	DisplayName string
	Filter      FilterType
	// Lower and Upper are declared range bounds; both or neither.
	Lower, Upper *float64
	// MinDate and MaxDate are declared date bounds; zero means unbounded.
	MinDate, MaxDate time.Time
	// OptionCount caps the options listed by a multiple-choice filter.
	OptionCount int
}

// Corpus declares a searchable corpus. Index defaults to "<name>:idx".
type Corpus struct {
	Name   string
	Title  string
	Index  string
	Fields []Field
}

// Filter values, one per FilterType.
type (
	FilterValue         = filter.Data
	BooleanValue        = filter.BooleanData
	RangeValue          = filter.RangeData
	DateValue           = filter.DateData
	MultipleChoiceValue = filter.MultipleChoiceData
	TagValue            = filter.TagData
	OptionCount         = filter.OptionCount
)

// FilterState is the state of one filter in a view.
type FilterState struct {
	Field   string
	Active  bool
	Current FilterValue
	// Default is nil until the filter has been activated.
	Default FilterValue
}

// ViewState is a consistent snapshot of a view.
type ViewState struct {
	ID         string
	Corpus     string
	CreatedAt  time.Time
	Location   string
	Query      string
	Sort       string
	Highlight  int
	Filters    []FilterState
	Errors     []error
	CanBack    bool
	CanForward bool
}

// --- Converters ---

func corpusToDomain(c Corpus) (corpus.Corpus, error) {
	fields := make([]field.Field, 0, len(c.Fields))
	for _, f := range c.Fields {
		if (f.Lower == nil) != (f.Upper == nil) {
			return corpus.Corpus{}, fmt.Errorf("%w: field %q: lower and upper must be set together",
				domain.ErrInvalidConfig, f.Name)
		}
		opts := field.Options{MinDate: f.MinDate, MaxDate: f.MaxDate, OptionCount: f.OptionCount}
		if f.Lower != nil {
			opts.Lower, opts.Upper, opts.HasBounds = *f.Lower, *f.Upper, true
		}
		df, err := field.New(f.Name, f.DisplayName, field.FilterType(f.Filter), opts)
		if err != nil {
			return corpus.Corpus{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
		}
		fields = append(fields, df)
	}
	dc, err := corpus.New(c.Name, c.Title, c.Index, fields)
	if err != nil {
		return corpus.Corpus{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return dc, nil
}

func corpusFromDomain(c corpus.Corpus) Corpus {
	fields := make([]Field, len(c.Fields()))
	for i, f := range c.Fields() {
		opts := f.Options()
		fields[i] = Field{
			Name:        f.Name(),
			DisplayName: f.DisplayName(),
			Filter:      FilterType(f.FilterType()),
			MinDate:     opts.MinDate,
			MaxDate:     opts.MaxDate,
			OptionCount: opts.OptionCount,
		}
		if opts.HasBounds {
			lo, hi := opts.Lower, opts.Upper
			fields[i].Lower, fields[i].Upper = &lo, &hi
		}
	}
	return Corpus{Name: c.Name(), Title: c.Title(), Index: c.Index(), Fields: fields}
}
