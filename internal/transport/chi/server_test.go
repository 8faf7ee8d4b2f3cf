package chi

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func ptrBool(b bool) *bool        { return &b }
func ptrFloat(f float64) *float64 { return &f }
func ptrString(s string) *string  { return &s }

func location(t *testing.T, v ViewResponse) url.Values {
	t.Helper()
	loc, err := url.ParseQuery(v.Location)
	require.NoError(t, err)
	return loc
}

func filterByName(t *testing.T, v ViewResponse, name string) FilterResponse {
	t.Helper()
	for _, f := range v.Filters {
		if f.Field == name {
			return f
		}
	}
	t.Fatalf("filter %q not in view", name)
	return FilterResponse{}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	rr := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[map[string]any](t, rr)
	require.Equal(t, "ok", body["status"])
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{err: errors.New("conn refused")})
	rr := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestListCorpora(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	rr := ts.do(t, http.MethodGet, "/corpora", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[CorpusListResponse](t, rr)
	require.Len(t, resp.Items, 1)
	require.Equal(t, "letters", resp.Items[0].Name)
	require.Len(t, resp.Items[0].Fields, 4)
	require.Equal(t, "multiple_choice", resp.Items[0].Fields[2].Filter)
	require.Equal(t, 5, resp.Items[0].Fields[2].OptionCount)
}

func TestCanonicalParams(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	rr := ts.do(t, http.MethodGet, "/corpora/letters/params?compareTerm=a&year=1900:1950&debug=1&has_image=maybe", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[ParamsResponse](t, rr)
	require.Equal(t, []string{"a"}, resp.Values["compareTerms"])
	require.Equal(t, []string{"1900:1950"}, resp.Values["year"])
	require.Equal(t, []string{"1"}, resp.Values["debug"])
	require.NotContains(t, resp.Values, "has_image")
	require.Len(t, resp.Errors, 1)
	require.Contains(t, resp.Errors[0], "has_image")
}

func TestCanonicalParams_UnknownCorpus(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	rr := ts.do(t, http.MethodGet, "/corpora/diaries/params", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, CodeNotFound, decode[ErrorResponse](t, rr).Code)
}

func TestOpenView(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "year=1900:1950&highlight=3")

	require.NotEmpty(t, v.ID)
	require.Equal(t, "letters", v.Corpus)
	require.Equal(t, "1900:1950", location(t, v).Get("year"))
	require.Equal(t, 3, v.Query.Highlight)

	year := filterByName(t, v, "year")
	require.True(t, year.Active)
	require.Equal(t, 1900.0, *year.Current.Min)
	require.Equal(t, 1950.0, *year.Current.Max)
}

func TestOpenView_EmptyBody(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	rr := ts.do(t, http.MethodPost, "/corpora/letters/views", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Empty(t, decode[ViewResponse](t, rr).Location)
}

func TestOpenView_UnknownCorpus(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	rr := ts.do(t, http.MethodPost, "/corpora/diaries/views", OpenViewRequest{})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestViewLifecycle(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "")

	rr := ts.do(t, http.MethodGet, "/views/"+v.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodGet, "/views", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ViewListResponse](t, rr).Items, 1)

	rr = ts.do(t, http.MethodDelete, "/views/"+v.ID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodGet, "/views/"+v.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(t, http.MethodDelete, "/views/"+v.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetAndClearFilter(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "")

	rr := ts.do(t, http.MethodPut, "/views/"+v.ID+"/filters/has_image", FilterData{Checked: ptrBool(true)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decode[ViewResponse](t, rr)
	require.Equal(t, "true", location(t, v).Get("has_image"))
	require.True(t, v.CanBack)

	rr = ts.do(t, http.MethodPut, "/views/"+v.ID+"/filters/year",
		FilterData{Type: "range", Min: ptrFloat(1900), Max: ptrFloat(1950)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "1900:1950", location(t, decode[ViewResponse](t, rr)).Get("year"))

	rr = ts.do(t, http.MethodDelete, "/views/"+v.ID+"/filters/has_image", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	v = decode[ViewResponse](t, rr)
	require.NotContains(t, location(t, v), "has_image")
	require.False(t, filterByName(t, v, "has_image").Active)
}

func TestSetFilter_Errors(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "")

	tests := []struct {
		name     string
		field    string
		body     any
		wantCode int
		wantErr  ErrorCode
	}{
		{"unknown field", "content", FilterData{Checked: ptrBool(true)}, http.StatusNotFound, CodeUnknownField},
		{"missing bounds", "year", FilterData{Min: ptrFloat(1)}, http.StatusBadRequest, CodeValidationFailed},
		{"variant mismatch", "has_image", FilterData{Type: "range", Min: ptrFloat(1), Max: ptrFloat(2)},
			http.StatusBadRequest, CodeInvalidFilterData},
		{"inverted range", "year", FilterData{Min: ptrFloat(2000), Max: ptrFloat(1900)},
			http.StatusBadRequest, CodeInvalidFilterData},
		{"bad body", "year", "not an object", http.StatusBadRequest, CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPut, "/views/"+v.ID+"/filters/"+tt.field, tt.body)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			require.Equal(t, tt.wantErr, decode[ErrorResponse](t, rr).Code)
		})
	}
}

func TestActivateFilter(t *testing.T) {
	ts := newTestServer(t, &mockBackend{lo: 1850, hi: 1990}, &mockPinger{})
	v := ts.openView(t, "")

	rr := ts.do(t, http.MethodPost, "/views/"+v.ID+"/filters/year/activate", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decode[ViewResponse](t, rr)

	year := filterByName(t, v, "year")
	require.NotNil(t, year.Default)
	require.Equal(t, 1850.0, *year.Default.Min)
	require.Equal(t, 1990.0, *year.Default.Max)
	require.False(t, year.Active, "activation alone must not filter")
	require.Empty(t, v.Location)
}

func TestActivateFilter_BackendFailure(t *testing.T) {
	ts := newTestServer(t, &mockBackend{err: errors.New("boom")}, &mockPinger{})
	v := ts.openView(t, "")

	rr := ts.do(t, http.MethodPost, "/views/"+v.ID+"/filters/year/activate", nil)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	resp := decode[ErrorResponse](t, rr)
	require.Equal(t, CodeAggregationFailed, resp.Code)
	require.NotContains(t, resp.Message, "boom", "backend errors must not leak")
}

func TestDismissFilter(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "has_image=true")

	rr := ts.do(t, http.MethodPost, "/views/"+v.ID+"/filters/has_image/dismiss", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decode[ViewResponse](t, rr)
	require.True(t, filterByName(t, v, "has_image").Active, "dismissing keeps the value")
	require.Equal(t, "has_image=true", v.Location)

	rr = ts.do(t, http.MethodPost, "/views/"+v.ID+"/filters/content/dismiss", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, CodeUnknownField, decode[ErrorResponse](t, rr).Code)
}

func TestUpdateQuery(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "")

	rr := ts.do(t, http.MethodPut, "/views/"+v.ID+"/query",
		UpdateQueryRequest{Text: ptrString("dear friend"), Sort: ptrString("year,desc")})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decode[ViewResponse](t, rr)
	require.Equal(t, "dear friend", location(t, v).Get("query"))
	require.Equal(t, "year,desc", location(t, v).Get("sort"))

	rr = ts.do(t, http.MethodPut, "/views/"+v.ID+"/query", UpdateQueryRequest{Sort: ptrString("")})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, location(t, decode[ViewResponse](t, rr)), "sort")

	rr = ts.do(t, http.MethodPut, "/views/"+v.ID+"/query", UpdateQueryRequest{Sort: ptrString("year,up")})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, CodeValidationFailed, decode[ErrorResponse](t, rr).Code)
}

func TestNavigateBackForward(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "")

	rr := ts.do(t, http.MethodPost, "/views/"+v.ID+"/navigate", NavigateRequest{Location: "year=1900:1950"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decode[ViewResponse](t, rr)
	require.True(t, filterByName(t, v, "year").Active)

	rr = ts.do(t, http.MethodPost, "/views/"+v.ID+"/back", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	hist := decode[HistoryResponse](t, rr)
	require.True(t, hist.Moved)
	require.Empty(t, hist.View.Location)
	require.False(t, filterByName(t, hist.View, "year").Active)
	require.True(t, hist.View.CanForward)

	rr = ts.do(t, http.MethodPost, "/views/"+v.ID+"/back", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.False(t, decode[HistoryResponse](t, rr).Moved)

	rr = ts.do(t, http.MethodPost, "/views/"+v.ID+"/forward", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	hist = decode[HistoryResponse](t, rr)
	require.True(t, hist.Moved)
	require.True(t, filterByName(t, hist.View, "year").Active)
}

func TestNavigate_MalformedParamIsRecorded(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "")

	rr := ts.do(t, http.MethodPost, "/views/"+v.ID+"/navigate", NavigateRequest{Location: "year=abc"})
	require.Equal(t, http.StatusOK, rr.Code)
	v = decode[ViewResponse](t, rr)
	require.False(t, filterByName(t, v, "year").Active)
	require.NotEmpty(t, v.Errors)
}

func TestNavigate_InvalidLocation(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	v := ts.openView(t, "")

	rr := ts.do(t, http.MethodPost, "/views/"+v.ID+"/navigate", NavigateRequest{Location: "year=%zz"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_AuthAndNotFound(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{}, "secret")

	rr := ts.do(t, http.MethodGet, "/corpora", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodGet, "/views/nope", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	ts := newTestServer(t, &mockBackend{}, &mockPinger{})
	rr := ts.do(t, http.MethodGet, "/collections", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, CodeNotFound, decode[ErrorResponse](t, rr).Code)
}
