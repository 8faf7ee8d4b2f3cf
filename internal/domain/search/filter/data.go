package filter

import (
	"math"
	"slices"
	"time"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
)

// Data is the closed set of filter values, one variant per field.FilterType.
type Data interface {
	FilterType() field.FilterType
	clone() Data
	sealed()
}

// BooleanData is the value of a boolean filter. Inert when unchecked.
type BooleanData struct {
	Checked bool
}

// RangeData is an inclusive numeric interval.
type RangeData struct {
	Min float64
	Max float64
}

// DateData is an inclusive calendar interval with day precision.
type DateData struct {
	Min time.Time
	Max time.Time
}

// OptionCount is one multiple-choice option with its document count.
type OptionCount struct {
	Label    string
	Value    string
	DocCount int
}

// MultipleChoiceData holds the available options and the current selection.
type MultipleChoiceData struct {
	Options          []string
	Selected         []string
	OptionsAndCounts []OptionCount
}

// TagData holds corpus-defined tag identifiers.
type TagData struct {
	Tags []int
}

// FilterType implements Data.
func (BooleanData) FilterType() field.FilterType { return field.Boolean }

// FilterType implements Data.
func (RangeData) FilterType() field.FilterType { return field.Range }

// FilterType implements Data.
func (DateData) FilterType() field.FilterType { return field.Date }

// FilterType implements Data.
func (MultipleChoiceData) FilterType() field.FilterType { return field.MultipleChoice }

// FilterType implements Data.
func (TagData) FilterType() field.FilterType { return field.Tag }

func (d BooleanData) clone() Data { return d }
func (d RangeData) clone() Data   { return d }
func (d DateData) clone() Data    { return d }

func (d MultipleChoiceData) clone() Data {
	return MultipleChoiceData{
		Options:          slices.Clone(d.Options),
		Selected:         slices.Clone(d.Selected),
		OptionsAndCounts: slices.Clone(d.OptionsAndCounts),
	}
}

func (d TagData) clone() Data { return TagData{Tags: slices.Clone(d.Tags)} }

func (BooleanData) sealed()        {}
func (RangeData) sealed()          {}
func (DateData) sealed()           {}
func (MultipleChoiceData) sealed() {}
func (TagData) sealed()            {}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// inertValue returns the no-op value for a field given its resolved default (may be nil).
// base supplies multiple-choice options to carry over.
func inertValue(f field.Field, def, base Data) Data {
	opts := f.Options()
	switch f.FilterType() {
	case field.Boolean:
		return BooleanData{}
	case field.Range:
		if d, ok := def.(RangeData); ok {
			return d
		}
		return RangeData{Min: opts.Lower, Max: opts.Upper}
	case field.Date:
		if d, ok := def.(DateData); ok {
			return d
		}
		return DateData{Min: Day(opts.MinDate), Max: Day(opts.MaxDate)}
	case field.MultipleChoice:
		out := MultipleChoiceData{}
		if b, ok := base.(MultipleChoiceData); ok {
			out.Options = slices.Clone(b.Options)
			out.OptionsAndCounts = slices.Clone(b.OptionsAndCounts)
		}
		if d, ok := def.(MultipleChoiceData); ok && out.Options == nil {
			out.Options = slices.Clone(d.Options)
		}
		return out
	case field.Tag:
		return TagData{}
	}
	return nil
}

// hasInert reports whether f has a value its current data can be compared
// against. A range or date filter without a resolved default or declared
// bounds has none, so any value it holds constrains results.
func hasInert(f field.Field, def Data) bool {
	if def != nil {
		return true
	}
	opts := f.Options()
	switch f.FilterType() {
	case field.Range:
		return opts.HasBounds
	case field.Date:
		return !opts.MinDate.IsZero() && !opts.MaxDate.IsZero()
	}
	return true
}

// differsFromInert reports whether current constrains results relative to inert.
func differsFromInert(current, inert Data) bool {
	switch c := current.(type) {
	case BooleanData:
		return c.Checked
	case RangeData:
		i, _ := inert.(RangeData)
		return c != i
	case DateData:
		i, _ := inert.(DateData)
		return !c.Min.Equal(i.Min) || !c.Max.Equal(i.Max)
	case MultipleChoiceData:
		return len(c.Selected) > 0
	case TagData:
		return len(c.Tags) > 0
	}
	return false
}

// sameValue reports whether a and b carry the same filter value.
// Multiple-choice option lists and counts are presentation data and are ignored.
func sameValue(a, b Data) bool {
	switch x := a.(type) {
	case BooleanData:
		y, ok := b.(BooleanData)
		return ok && x == y
	case RangeData:
		y, ok := b.(RangeData)
		return ok && x == y
	case DateData:
		y, ok := b.(DateData)
		return ok && x.Min.Equal(y.Min) && x.Max.Equal(y.Max)
	case MultipleChoiceData:
		y, ok := b.(MultipleChoiceData)
		return ok && slices.Equal(x.Selected, y.Selected) && slices.Equal(x.Options, y.Options)
	case TagData:
		y, ok := b.(TagData)
		return ok && slices.Equal(x.Tags, y.Tags)
	}
	return false
}

// validate checks a value is well-formed for its variant. Returns a reason or "".
func validate(d Data) string {
	switch v := d.(type) {
	case RangeData:
		if math.IsNaN(v.Min) || math.IsNaN(v.Max) {
			return "range bound is NaN"
		}
		if v.Min > v.Max {
			return "range min exceeds max"
		}
	case DateData:
		if v.Min.After(v.Max) {
			return "date min after max"
		}
	case MultipleChoiceData:
		for _, s := range v.Selected {
			if s == "" {
				return "empty selected value"
			}
		}
	}
	return ""
}

// normalize returns the canonical form of a value (day-precision dates).
func normalize(d Data) Data {
	if v, ok := d.(DateData); ok {
		return DateData{Min: Day(v.Min), Max: Day(v.Max)}
	}
	return d.clone()
}
