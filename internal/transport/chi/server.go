// Package chi exposes corpora, canonical params and search views over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	logpkg "github.com/kailas-cloud/corpusq/internal/logger"
	"github.com/kailas-cloud/corpusq/internal/metrics"
	healthuc "github.com/kailas-cloud/corpusq/internal/usecase/health"
	viewuc "github.com/kailas-cloud/corpusq/internal/usecase/view"
)

// Server serves the corpusq HTTP API.
type Server struct {
	views  *viewuc.Service
	health *healthuc.Service
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(views *viewuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{views: views, health: health, logger: logger}
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/corpora", func(r chi.Router) {
		r.Get("/", s.ListCorpora)
		r.Get("/{corpus}/params", s.CanonicalParams)
		r.Post("/{corpus}/views", s.OpenView)
	})

	r.Route("/views", func(r chi.Router) {
		r.Get("/", s.ListViews)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetView)
			r.Delete("/", s.CloseView)
			r.Put("/query", s.UpdateQuery)
			r.Put("/filters/{field}", s.SetFilter)
			r.Delete("/filters/{field}", s.ClearFilter)
			r.Post("/filters/{field}/activate", s.ActivateFilter)
			r.Post("/filters/{field}/dismiss", s.DismissFilter)
			r.Post("/navigate", s.Navigate)
			r.Post("/back", s.Back)
			r.Post("/forward", s.Forward)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// ListCorpora handles GET /corpora.
func (s *Server) ListCorpora(w http.ResponseWriter, _ *http.Request) {
	corpora := s.views.Corpora()
	items := make([]CorpusResponse, len(corpora))
	for i, c := range corpora {
		items[i] = corpusToResponse(c)
	}
	writeJSON(w, http.StatusOK, CorpusListResponse{Items: items})
}

// CanonicalParams handles GET /corpora/{corpus}/params. Malformed values are
// reported alongside the canonical location rather than failing the request.
func (s *Server) CanonicalParams(w http.ResponseWriter, r *http.Request) {
	values, err := s.views.Canonicalize(chi.URLParam(r, "corpus"), r.URL.Query())
	if values == nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paramsToResponse(values, err))
}

// OpenView handles POST /corpora/{corpus}/views.
func (s *Server) OpenView(w http.ResponseWriter, r *http.Request) {
	var req OpenViewRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	loc, ok := parseLocation(w, req.Location)
	if !ok {
		return
	}

	v, err := s.views.Open(chi.URLParam(r, "corpus"), loc)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stateToResponse(v.State()))
}

// ListViews handles GET /views.
func (s *Server) ListViews(w http.ResponseWriter, _ *http.Request) {
	views := s.views.List()
	items := make([]ViewResponse, len(views))
	for i, v := range views {
		items[i] = stateToResponse(v.State())
	}
	writeJSON(w, http.StatusOK, ViewListResponse{Items: items})
}

// GetView handles GET /views/{id}.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	v, r, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(v.State()))
}

// CloseView handles DELETE /views/{id}.
func (s *Server) CloseView(w http.ResponseWriter, r *http.Request) {
	if err := s.views.CloseView(chi.URLParam(r, "id")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateQuery handles PUT /views/{id}/query.
func (s *Server) UpdateQuery(w http.ResponseWriter, r *http.Request) {
	v, r, ok := s.view(w, r)
	if !ok {
		return
	}
	var req UpdateQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u := viewuc.QueryUpdate{Text: req.Text, Highlight: req.Highlight}
	if req.Sort != nil {
		var sort query.Sort
		if *req.Sort != "" {
			parsed, err := query.ParseSort(*req.Sort)
			if err != nil {
				writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
				return
			}
			sort = parsed
		}
		u.Sort = &sort
	}

	if err := v.UpdateQuery(u); err != nil {
		if errors.Is(err, domain.ErrViewClosed) {
			handleDomainError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(v.State()))
}

// SetFilter handles PUT /views/{id}/filters/{field}.
func (s *Server) SetFilter(w http.ResponseWriter, r *http.Request) {
	v, r, ok := s.view(w, r)
	if !ok {
		return
	}
	var req FilterData
	if !decodeBody(w, r, &req) {
		return
	}

	name := chi.URLParam(r, "field")
	sf, err := v.Model().FilterForField(name)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	d, err := req.toData(sf.FilterType())
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	if err := v.SetFilter(name, d); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(v.State()))
}

// ClearFilter handles DELETE /views/{id}/filters/{field}.
func (s *Server) ClearFilter(w http.ResponseWriter, r *http.Request) {
	v, r, ok := s.view(w, r)
	if !ok {
		return
	}
	if err := v.ClearFilter(chi.URLParam(r, "field")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(v.State()))
}

// ActivateFilter handles POST /views/{id}/filters/{field}/activate.
func (s *Server) ActivateFilter(w http.ResponseWriter, r *http.Request) {
	v, r, ok := s.view(w, r)
	if !ok {
		return
	}
	if err := v.Activate(r.Context(), chi.URLParam(r, "field")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(v.State()))
}

// DismissFilter handles POST /views/{id}/filters/{field}/dismiss.
func (s *Server) DismissFilter(w http.ResponseWriter, r *http.Request) {
	v, r, ok := s.view(w, r)
	if !ok {
		return
	}
	if err := v.Dismiss(chi.URLParam(r, "field")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(v.State()))
}

// Navigate handles POST /views/{id}/navigate.
func (s *Server) Navigate(w http.ResponseWriter, r *http.Request) {
	v, r, ok := s.view(w, r)
	if !ok {
		return
	}
	var req NavigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	loc, ok := parseLocation(w, req.Location)
	if !ok {
		return
	}
	if err := v.Navigate(loc); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(v.State()))
}

// Back handles POST /views/{id}/back.
func (s *Server) Back(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, (*viewuc.View).Back)
}

// Forward handles POST /views/{id}/forward.
func (s *Server) Forward(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, (*viewuc.View).Forward)
}

func (s *Server) move(w http.ResponseWriter, r *http.Request, step func(*viewuc.View) (bool, error)) {
	v, r, ok := s.view(w, r)
	if !ok {
		return
	}
	moved, err := step(v)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Moved: moved, View: stateToResponse(v.State())})
}

// view looks up the view of the route and scopes the request logger to it.
func (s *Server) view(w http.ResponseWriter, r *http.Request) (*viewuc.View, *http.Request, bool) {
	v, err := s.views.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, r, err)
		return nil, r, false
	}
	ctx := logpkg.With(r.Context(), zap.String("view_id", v.ID()), zap.String("corpus", v.Corpus()))
	return v, r.WithContext(ctx), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body as the zero request.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseLocation(w http.ResponseWriter, raw string) (url.Values, bool) {
	loc, err := url.ParseQuery(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid location: "+err.Error())
		return nil, false
	}
	return loc, true
}
