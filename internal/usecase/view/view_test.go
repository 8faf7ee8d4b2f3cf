package view

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	"github.com/kailas-cloud/corpusq/internal/usecase/defaults"
)

func TestView_ScenarioA(t *testing.T) {
	backend := &mockBackend{lo: 1900, hi: 2000}
	v, err := newTestService(t, backend).Open("letters", url.Values{})
	require.NoError(t, err)

	require.NoError(t, v.Activate(context.Background(), "year"))
	state := v.State()
	require.Empty(t, state.Location, "resolving defaults must not change the location")

	require.NoError(t, v.SetFilter("year", filter.RangeData{Min: 1950, Max: 1960}))
	state = v.State()

	require.Equal(t, "1950:1960", state.Location.Get("year"))
	require.Equal(t, 2, v.History().Len())
	require.True(t, state.CanBack)
	require.Equal(t, 1, backend.count(aggregation.KindMin))
	require.Equal(t, 1, backend.count(aggregation.KindMax))
}

func TestView_BackRestoresState(t *testing.T) {
	v, err := newTestService(t, &mockBackend{}).Open("letters", url.Values{})
	require.NoError(t, err)

	require.NoError(t, v.SetFilter("has_image", filter.BooleanData{Checked: true}))
	v.Settle()

	ok, err := v.Back()
	require.NoError(t, err)
	require.True(t, ok)

	state := v.State()
	require.Empty(t, state.Location)
	require.True(t, state.CanFwd)
	sf, err := v.Model().FilterForField("has_image")
	require.NoError(t, err)
	require.False(t, sf.Active(), "going back must restore the earlier state")
	require.Equal(t, 2, v.History().Len(), "reading history must not push")

	ok, err = v.Forward()
	require.NoError(t, err)
	require.True(t, ok)
	v.Settle()
	require.True(t, sf.Active())
}

func TestView_OpenRewritesLegacyLocation(t *testing.T) {
	v, err := newTestService(t, &mockBackend{}).Open("letters", mustQuery(t, "compareTerm=a&category=fiction"))
	require.NoError(t, err)

	state := v.State()
	require.Equal(t, 1, v.History().Len(), "legacy rewrite must replace the entry")
	require.Equal(t, "a", state.Location.Get("compareTerms"))
	require.Equal(t, "fiction", state.Location.Get("category"))
}

func TestView_QueryUpdate(t *testing.T) {
	v, err := newTestService(t, &mockBackend{}).Open("letters", url.Values{})
	require.NoError(t, err)

	text := "dear sir"
	sort := query.Sort{Field: "year", Direction: query.Desc}
	size := 3
	require.NoError(t, v.UpdateQuery(QueryUpdate{Text: &text, Sort: &sort, Highlight: &size}))

	loc := v.State().Location
	require.Equal(t, "dear sir", loc.Get("query"))
	require.Equal(t, "year,desc", loc.Get("sort"))
	require.Equal(t, "3", loc.Get("highlight"))

	bad := query.Sort{Field: "nope"}
	require.Error(t, v.UpdateQuery(QueryUpdate{Sort: &bad}))
}

func TestView_NavigateMalformedRecordsError(t *testing.T) {
	v, err := newTestService(t, &mockBackend{}).Open("letters", url.Values{})
	require.NoError(t, err)

	require.NoError(t, v.Navigate(mustQuery(t, "year=abc&has_image=true")))
	state := v.State()

	require.Len(t, state.Errors, 1)
	require.True(t, errors.Is(state.Errors[0], domain.ErrMalformedParam))
	sf, err := v.Model().FilterForField("has_image")
	require.NoError(t, err)
	require.True(t, sf.Active())
}

func TestView_InvalidInput(t *testing.T) {
	v, err := newTestService(t, &mockBackend{}).Open("letters", url.Values{})
	require.NoError(t, err)

	err = v.SetFilter("content", filter.BooleanData{Checked: true})
	require.True(t, errors.Is(err, domain.ErrUnknownField), "got %v", err)

	err = v.SetFilter("year", filter.BooleanData{Checked: true})
	require.True(t, errors.Is(err, domain.ErrInvalidFilterData), "got %v", err)
}

func TestView_ActivateFailure(t *testing.T) {
	backend := &mockBackend{err: errors.New("backend down")}
	v, err := newTestService(t, backend).Open("letters", url.Values{})
	require.NoError(t, err)

	err = v.Activate(context.Background(), "year")
	require.True(t, errors.Is(err, domain.ErrAggregationFailure), "got %v", err)

	sf, err := v.Model().FilterForField("year")
	require.NoError(t, err)
	require.False(t, sf.HasDefault())
}

func TestView_ClosedRejectsOperations(t *testing.T) {
	v, err := newTestService(t, &mockBackend{}).Open("letters", url.Values{})
	require.NoError(t, err)
	v.Close()
	v.Close()

	require.ErrorIs(t, v.SetFilter("has_image", filter.BooleanData{Checked: true}), domain.ErrViewClosed)
	require.ErrorIs(t, v.ClearFilter("has_image"), domain.ErrViewClosed)
	require.ErrorIs(t, v.Activate(context.Background(), "year"), domain.ErrViewClosed)
	require.ErrorIs(t, v.Navigate(url.Values{}), domain.ErrViewClosed)
	_, err = v.Back()
	require.ErrorIs(t, err, domain.ErrViewClosed)
}

func fastCountingService(t *testing.T, backend *mockBackend) *Service {
	t.Helper()
	return newTestServiceWith(t, backend, Options{
		SyncWindow: time.Hour,
		Defaults:   defaults.Options{CoalesceWindow: 5 * time.Millisecond},
	})
}

func TestView_OptionCountsFollowActivatedFiltersOnly(t *testing.T) {
	backend := &mockBackend{buckets: []aggregation.RawBucket{{Key: "poetry", DocCount: 4}}}
	v, err := fastCountingService(t, backend).Open("letters", url.Values{})
	require.NoError(t, err)

	require.NoError(t, v.SetFilter("has_image", filter.BooleanData{Checked: true}))
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, backend.count(aggregation.KindTerms), "an inactive widget must not be counted")

	require.NoError(t, v.Activate(context.Background(), "category"))
	require.Equal(t, 1, backend.count(aggregation.KindTerms))

	require.NoError(t, v.SetFilter("has_image", filter.BooleanData{Checked: false}))
	require.Eventually(t, func() bool { return backend.count(aggregation.KindTerms) == 2 },
		time.Second, time.Millisecond)
}

func TestView_DismissStopsCounting(t *testing.T) {
	backend := &mockBackend{buckets: []aggregation.RawBucket{{Key: "poetry", DocCount: 4}}}
	v, err := fastCountingService(t, backend).Open("letters", url.Values{})
	require.NoError(t, err)

	require.NoError(t, v.Activate(context.Background(), "category"))
	require.NoError(t, v.SetFilter("category", filter.MultipleChoiceData{Selected: []string{"poetry"}}))
	require.NoError(t, v.Dismiss("category"))

	require.NoError(t, v.SetFilter("has_image", filter.BooleanData{Checked: true}))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, backend.count(aggregation.KindTerms))
	require.Equal(t, "poetry", v.State().Location.Get("category"), "dismissing keeps the filter value")

	var unknown *domain.UnknownFieldError
	require.ErrorAs(t, v.Dismiss("content"), &unknown)
	v.Close()
	require.ErrorIs(t, v.Dismiss("category"), domain.ErrViewClosed)
}
