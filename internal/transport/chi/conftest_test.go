package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
	healthuc "github.com/kailas-cloud/corpusq/internal/usecase/health"
	viewuc "github.com/kailas-cloud/corpusq/internal/usecase/view"
)

// --- Mocks ---

type mockBackend struct {
	lo, hi float64
	err    error
}

func (m *mockBackend) Aggregate(
	_ context.Context, _ corpus.Corpus, _ expr.Expression, req aggregation.Request,
) (aggregation.Raw, error) {
	if m.err != nil {
		return aggregation.Raw{}, m.err
	}
	switch req.Kind {
	case aggregation.KindMin:
		v := m.lo
		return aggregation.Raw{Value: &v}, nil
	case aggregation.KindMax:
		v := m.hi
		return aggregation.Raw{Value: &v}, nil
	}
	return aggregation.Raw{Buckets: []aggregation.RawBucket{
		{Key: "poetry", DocCount: 4},
		{Key: "prose", DocCount: 2},
	}}, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Fixtures ---

func testCorpus() corpus.Corpus {
	return corpus.Reconstruct("letters", "letters:idx", []field.Field{
		field.Reconstruct("content", field.None, field.Options{}),
		field.Reconstruct("year", field.Range, field.Options{}),
		field.Reconstruct("genre", field.MultipleChoice, field.Options{OptionCount: 5}),
		field.Reconstruct("has_image", field.Boolean, field.Options{}),
	})
}

type testServer struct {
	handler http.Handler
	views   *viewuc.Service
}

func newTestServer(t *testing.T, backend *mockBackend, pinger *mockPinger, apiKeys ...string) *testServer {
	t.Helper()
	views := viewuc.New([]corpus.Corpus{testCorpus()}, backend,
		viewuc.Options{SyncWindow: time.Hour}, zap.NewNop())
	t.Cleanup(views.Close)
	srv := NewServer(views, healthuc.New(pinger, nil), zap.NewNop())
	return &testServer{handler: srv.Handler(apiKeys), views: views}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response (status %d): %v", rr.Code, err)
	}
	return v
}

func (ts *testServer) openView(t *testing.T, location string) ViewResponse {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/corpora/letters/views", OpenViewRequest{Location: location})
	if rr.Code != http.StatusCreated {
		t.Fatalf("open view: status %d: %s", rr.Code, rr.Body.String())
	}
	return decode[ViewResponse](t, rr)
}
