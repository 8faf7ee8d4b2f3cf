package chi

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
	viewuc "github.com/kailas-cloud/corpusq/internal/usecase/view"
)

// --- Corpora ---

// CorpusResponse describes a configured corpus.
type CorpusResponse struct {
	Name   string          `json:"name"`
	Title  string          `json:"title"`
	Index  string          `json:"index"`
	Fields []FieldResponse `json:"fields"`
}

// FieldResponse describes a corpus field and its filter widget.
type FieldResponse struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Filter      string   `json:"filter,omitempty"`
	Lower       *float64 `json:"lower,omitempty"`
	Upper       *float64 `json:"upper,omitempty"`
	MinDate     string   `json:"min_date,omitempty"`
	MaxDate     string   `json:"max_date,omitempty"`
	OptionCount int      `json:"option_count,omitempty"`
}

// CorpusListResponse is the body of GET /corpora.
type CorpusListResponse struct {
	Items []CorpusResponse `json:"items"`
}

// ParamsResponse is the canonical rendering of a location.
type ParamsResponse struct {
	Query  string              `json:"query"`
	Values map[string][]string `json:"values"`
	Errors []string            `json:"errors,omitempty"`
}

// --- Views ---

// OpenViewRequest is the body of POST /corpora/{corpus}/views.
type OpenViewRequest struct {
	Location string `json:"location"`
}

// NavigateRequest is the body of POST /views/{id}/navigate.
type NavigateRequest struct {
	Location string `json:"location"`
}

// UpdateQueryRequest is the body of PUT /views/{id}/query. Omitted fields are unchanged;
// an empty sort restores relevance order.
type UpdateQueryRequest struct {
	Text      *string `json:"text,omitempty"`
	Sort      *string `json:"sort,omitempty"`
	Highlight *int    `json:"highlight,omitempty"`
}

// ViewResponse is the state of a search view.
type ViewResponse struct {
	ID         string           `json:"id"`
	Corpus     string           `json:"corpus"`
	CreatedAt  time.Time        `json:"created_at"`
	Location   string           `json:"location"`
	Query      QueryResponse    `json:"query"`
	Filters    []FilterResponse `json:"filters"`
	Errors     []string         `json:"errors,omitempty"`
	CanBack    bool             `json:"can_back"`
	CanForward bool             `json:"can_forward"`
}

// QueryResponse is the model-level state of a view.
type QueryResponse struct {
	Text      string `json:"text"`
	Sort      string `json:"sort,omitempty"`
	Highlight int    `json:"highlight,omitempty"`
}

// FilterResponse is the state of one filter.
type FilterResponse struct {
	Field       string      `json:"field"`
	DisplayName string      `json:"display_name"`
	Active      bool        `json:"active"`
	Current     FilterData  `json:"current"`
	Default     *FilterData `json:"default,omitempty"`
}

// HistoryResponse is the body of back/forward responses.
type HistoryResponse struct {
	Moved bool         `json:"moved"`
	View  ViewResponse `json:"view"`
}

// ViewListResponse is the body of GET /views.
type ViewListResponse struct {
	Items []ViewResponse `json:"items"`
}

// FilterData is the JSON envelope of every filter variant, discriminated by Type.
type FilterData struct {
	Type string `json:"type,omitempty"`

	// boolean
	Checked *bool `json:"checked,omitempty"`

	// range
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// date, YYYY-MM-DD
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// multiple_choice
	Options          []string      `json:"options,omitempty"`
	Selected         []string      `json:"selected,omitempty"`
	OptionsAndCounts []OptionCount `json:"options_and_counts,omitempty"`

	// tag
	Tags []int `json:"tags,omitempty"`
}

// OptionCount is one multiple-choice option with its document count.
type OptionCount struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	DocCount int    `json:"doc_count"`
}

// --- Converters ---

func corpusToResponse(c corpus.Corpus) CorpusResponse {
	fields := make([]FieldResponse, len(c.Fields()))
	for i, f := range c.Fields() {
		fields[i] = fieldToResponse(f)
	}
	return CorpusResponse{Name: c.Name(), Title: c.Title(), Index: c.Index(), Fields: fields}
}

func fieldToResponse(f field.Field) FieldResponse {
	opts := f.Options()
	resp := FieldResponse{
		Name:        f.Name(),
		DisplayName: f.DisplayName(),
		Filter:      string(f.FilterType()),
		OptionCount: opts.OptionCount,
	}
	if opts.HasBounds {
		lo, hi := opts.Lower, opts.Upper
		resp.Lower, resp.Upper = &lo, &hi
	}
	if !opts.MinDate.IsZero() {
		resp.MinDate = opts.MinDate.Format(filter.DateLayout)
	}
	if !opts.MaxDate.IsZero() {
		resp.MaxDate = opts.MaxDate.Format(filter.DateLayout)
	}
	return resp
}

func stateToResponse(st viewuc.State) ViewResponse {
	filters := make([]FilterResponse, len(st.Filters))
	for i, snap := range st.Filters {
		filters[i] = FilterResponse{
			Field:       snap.Field.Name(),
			DisplayName: snap.Field.DisplayName(),
			Active:      snap.UseAsFilter,
			Current:     dataToResponse(snap.CurrentData),
		}
		if snap.DefaultData != nil {
			d := dataToResponse(snap.DefaultData)
			filters[i].Default = &d
		}
	}
	return ViewResponse{
		ID:        st.ID,
		Corpus:    st.Corpus,
		CreatedAt: st.CreatedAt,
		Location:  st.Location.Encode(),
		Query: QueryResponse{
			Text:      st.QueryText,
			Sort:      st.Sort.String(),
			Highlight: st.Highlight,
		},
		Filters:    filters,
		Errors:     errorStrings(st.Errors),
		CanBack:    st.CanBack,
		CanForward: st.CanFwd,
	}
}

func dataToResponse(d filter.Data) FilterData {
	out := FilterData{Type: string(d.FilterType())}
	switch v := d.(type) {
	case filter.BooleanData:
		checked := v.Checked
		out.Checked = &checked
	case filter.RangeData:
		lo, hi := v.Min, v.Max
		out.Min, out.Max = &lo, &hi
	case filter.DateData:
		out.From = v.Min.Format(filter.DateLayout)
		out.To = v.Max.Format(filter.DateLayout)
	case filter.MultipleChoiceData:
		out.Options = v.Options
		out.Selected = v.Selected
		for _, oc := range v.OptionsAndCounts {
			out.OptionsAndCounts = append(out.OptionsAndCounts, OptionCount(oc))
		}
	case filter.TagData:
		out.Tags = v.Tags
	}
	return out
}

// toData converts the envelope into the variant of ft. An explicit Type that
// disagrees with the field yields the requested variant, which the filter rejects.
func (d FilterData) toData(ft field.FilterType) (filter.Data, error) {
	if d.Type != "" {
		ft = field.FilterType(d.Type)
	}
	switch ft {
	case field.Boolean:
		if d.Checked == nil {
			return nil, fmt.Errorf("boolean filter requires checked")
		}
		return filter.BooleanData{Checked: *d.Checked}, nil
	case field.Range:
		if d.Min == nil || d.Max == nil {
			return nil, fmt.Errorf("range filter requires min and max")
		}
		return filter.RangeData{Min: *d.Min, Max: *d.Max}, nil
	case field.Date:
		from, err := time.Parse(filter.DateLayout, d.From)
		if err != nil {
			return nil, fmt.Errorf("date filter from: %w", err)
		}
		to, err := time.Parse(filter.DateLayout, d.To)
		if err != nil {
			return nil, fmt.Errorf("date filter to: %w", err)
		}
		return filter.DateData{Min: from, Max: to}, nil
	case field.MultipleChoice:
		mc := filter.MultipleChoiceData{Options: d.Options, Selected: d.Selected}
		if mc.Selected == nil {
			mc.Selected = []string{}
		}
		for _, oc := range d.OptionsAndCounts {
			mc.OptionsAndCounts = append(mc.OptionsAndCounts, filter.OptionCount(oc))
		}
		return mc, nil
	case field.Tag:
		return filter.TagData{Tags: d.Tags}, nil
	default:
		return nil, fmt.Errorf("unknown filter type %q", ft)
	}
}

func paramsToResponse(v url.Values, err error) ParamsResponse {
	return ParamsResponse{
		Query:  v.Encode(),
		Values: v,
		Errors: errorStrings(splitErrors(err)),
	}
}

// splitErrors flattens an errors.Join tree one level.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
