package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain"
	logpkg "github.com/kailas-cloud/corpusq/internal/logger"
)

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeNotFound          ErrorCode = "not_found"
	CodeUnknownField      ErrorCode = "unknown_field"
	CodeInvalidFilterData ErrorCode = "invalid_filter_data"
	CodeMalformedParam    ErrorCode = "malformed_param"
	CodeViewClosed        ErrorCode = "view_closed"
	CodeAggregationFailed ErrorCode = "aggregation_failed"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
	sentinelHandler(domain.ErrUnknownField, http.StatusNotFound, CodeUnknownField),
	sentinelHandler(domain.ErrInvalidFilterData, http.StatusBadRequest, CodeInvalidFilterData),
	sentinelHandler(domain.ErrMalformedParam, http.StatusBadRequest, CodeMalformedParam),
	sentinelHandler(domain.ErrViewClosed, http.StatusGone, CodeViewClosed),
	sentinelHandler(domain.ErrAggregationFailure, http.StatusBadGateway, CodeAggregationFailed),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Typed errors that only carry request data are passed through; backend
// failures collapse to their sentinel.
func safeDomainMessage(err error) string {
	var (
		ifd *domain.InvalidFilterDataError
		uf  *domain.UnknownFieldError
		mp  *domain.MalformedParamError
	)
	switch {
	case errors.As(err, &ifd):
		return ifd.Error()
	case errors.As(err, &uf):
		return uf.Error()
	case errors.As(err, &mp):
		return mp.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrViewClosed,
		domain.ErrAggregationFailure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
