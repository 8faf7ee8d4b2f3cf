package corpusq

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	viewuc "github.com/kailas-cloud/corpusq/internal/usecase/view"
)

// View is an open search view. Every method is safe for concurrent use.
type View struct {
	inner *viewuc.View
	svc   *viewuc.Service
	obs   *observer
}

// ID returns the view id.
func (v *View) ID() string { return v.inner.ID() }

// State settles pending synchronization and returns a snapshot.
func (v *View) State() ViewState {
	st := v.inner.State()
	filters := make([]FilterState, len(st.Filters))
	for i, snap := range st.Filters {
		filters[i] = FilterState{
			Field:   snap.Field.Name(),
			Active:  snap.UseAsFilter,
			Current: snap.CurrentData,
			Default: snap.DefaultData,
		}
	}
	return ViewState{
		ID:         st.ID,
		Corpus:     st.Corpus,
		CreatedAt:  st.CreatedAt,
		Location:   st.Location.Encode(),
		Query:      st.QueryText,
		Sort:       st.Sort.String(),
		Highlight:  st.Highlight,
		Filters:    filters,
		Errors:     st.Errors,
		CanBack:    st.CanBack,
		CanForward: st.CanFwd,
	}
}

// SetQuery sets the free-text query.
func (v *View) SetQuery(text string) error {
	return v.inner.UpdateQuery(viewuc.QueryUpdate{Text: &text}) //nolint:wrapcheck // view errors are domain errors
}

// SetSort orders results by "<field>,<asc|desc>"; an empty string restores relevance order.
func (v *View) SetSort(raw string) error {
	var s query.Sort
	if raw != "" {
		parsed, err := query.ParseSort(raw)
		if err != nil {
			return fmt.Errorf("parse sort: %w", err)
		}
		s = parsed
	}
	return v.inner.UpdateQuery(viewuc.QueryUpdate{Sort: &s}) //nolint:wrapcheck // view errors are domain errors
}

// SetHighlight sets the highlight fragment size; zero turns highlighting off.
func (v *View) SetHighlight(size int) error {
	return v.inner.UpdateQuery(viewuc.QueryUpdate{Highlight: &size}) //nolint:wrapcheck // view errors are domain errors
}

// SetFilter sets a filter value.
func (v *View) SetFilter(field string, value FilterValue) (err error) {
	start := time.Now()
	defer func() { v.obs.observe("set_filter", start, err) }()
	return v.inner.SetFilter(field, value) //nolint:wrapcheck // view errors are domain errors
}

// ClearFilter returns a filter to its inert value.
func (v *View) ClearFilter(field string) error {
	return v.inner.ClearFilter(field) //nolint:wrapcheck // view errors are domain errors
}

// Activate resolves a filter's defaults from the backend.
func (v *View) Activate(ctx context.Context, field string) (err error) {
	start := time.Now()
	defer func() { v.obs.observe("activate", start, err) }()
	return v.inner.Activate(ctx, field) //nolint:wrapcheck // view errors are domain errors
}

// Dismiss tells the view a filter's widget went away: in-flight resolution is
// cancelled and option counts stop refreshing until the next Activate.
func (v *View) Dismiss(field string) error {
	return v.inner.Dismiss(field) //nolint:wrapcheck // view errors are domain errors
}

// Navigate moves the view to rawQuery as a new history entry.
func (v *View) Navigate(rawQuery string) error {
	loc, err := url.ParseQuery(rawQuery)
	if err != nil {
		return fmt.Errorf("parse query string: %w", err)
	}
	return v.inner.Navigate(loc) //nolint:wrapcheck // view errors are domain errors
}

// Back goes one history entry back. Reports false at the first entry.
func (v *View) Back() (bool, error) {
	return v.inner.Back() //nolint:wrapcheck // view errors are domain errors
}

// Forward goes one history entry forward. Reports false at the last entry.
func (v *View) Forward() (bool, error) {
	return v.inner.Forward() //nolint:wrapcheck // view errors are domain errors
}

// Close tears the view down. Later calls on the view return ErrViewClosed.
func (v *View) Close() error {
	return v.svc.CloseView(v.inner.ID()) //nolint:wrapcheck // ErrNotFound carries the id
}
