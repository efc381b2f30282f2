// Package chi exposes the pipelines over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain"
	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
	"github.com/kailas-cloud/naviq/internal/logger"
	"github.com/kailas-cloud/naviq/internal/usecase/backfill"
	"github.com/kailas-cloud/naviq/internal/usecase/hybrid"
	"github.com/kailas-cloud/naviq/internal/usecase/update"
)

const maxBodyBytes = 64 << 10

// Error codes returned in the response body alongside the HTTP status.
const (
	codeBadRequest        = "bad_request"
	codeAccessDenied      = "access_denied"
	codeSecurityRejected  = "security_rejected"
	codeCollectionUnknown = "collection_not_found"
	codeRecordNotFound    = "record_not_found"
	codeContentBlocked    = "content_blocked"
	codeUpstreamError     = "upstream_error"
	codeMalformedOutput   = "malformed_model_output"
	codeInternalError     = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// HealthChecker reports liveness of the backing store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server routes HTTP requests to the pipelines.
type Server struct {
	hybrid        *hybrid.Service
	update        *update.Service
	backfill      *backfill.Service
	health        HealthChecker
	defaultCaller domain.Caller
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	hybridSvc *hybrid.Service,
	updateSvc *update.Service,
	backfillSvc *backfill.Service,
	health HealthChecker,
	defaultCaller domain.Caller,
	logger *zap.Logger,
) *Server {
	s := &Server{
		hybrid:        hybridSvc,
		update:        updateSvc,
		backfill:      backfillSvc,
		health:        health,
		defaultCaller: defaultCaller,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		securityRejectedHandler,
		sentinelHandler(domain.ErrAccessDenied, http.StatusForbidden, codeAccessDenied),
		sentinelHandler(domain.ErrUnknownCollection, http.StatusNotFound, codeCollectionUnknown),
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, codeRecordNotFound),
		sentinelHandler(domain.ErrContentBlocked, http.StatusUnprocessableEntity, codeContentBlocked),
		sentinelHandler(domain.ErrMalformedOutput, http.StatusBadGateway, codeMalformedOutput),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, codeUpstreamError),
	}
	return s
}

// Router builds the route tree. The middleware stack is assembled by the
// caller (composition root).
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/collections/{collection}/query", s.Query)
	r.Post("/collections/{collection}/update", s.Update)
	r.Post("/admin/backfill/{collection}", s.Backfill)

	return r
}

type queryRequest struct {
	Input string `json:"input"`
}

type recordResponse struct {
	ID       string             `json:"id"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Numerics map[string]float64 `json:"numerics,omitempty"`
	Notes    string             `json:"notes,omitempty"`
}

type queryResponse struct {
	Source     string           `json:"source"`
	Confidence float64          `json:"confidence"`
	Answer     string           `json:"answer,omitempty"`
	Records    []recordResponse `json:"records,omitempty"`
	Filter     string           `json:"filter,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// Query handles POST /collections/{collection}/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "input is required")
		return
	}

	res, err := s.hybrid.Run(r.Context(), collection, req.Input, s.caller(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := queryResponse{
		Source:     string(res.Source),
		Confidence: res.Confidence,
	}
	switch res.Source {
	case hybrid.SourceStructured:
		resp.Filter = res.Structured.ResolvedFilter
		resp.Reason = res.Structured.SpecificityReason
		resp.Records = make([]recordResponse, 0, len(res.Structured.Records))
		for i := range res.Structured.Records {
			resp.Records = append(resp.Records, recordToResponse(&res.Structured.Records[i]))
		}
	case hybrid.SourceRetrieval:
		resp.Answer = res.Retrieval.Answer
	}

	writeJSON(w, http.StatusOK, resp)
}

type updateRequest struct {
	Input string `json:"input"`
}

type updateResponse struct {
	ModifiedCount   int    `json:"modified_count"`
	ReEmbeddedCount int    `json:"re_embedded_count"`
	Filter          string `json:"filter"`
	Change          string `json:"change"`
}

// Update handles POST /collections/{collection}/update.
func (s *Server) Update(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req updateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "input is required")
		return
	}

	res, err := s.update.Run(r.Context(), collection, req.Input, s.caller(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{
		ModifiedCount:   res.ModifiedCount,
		ReEmbeddedCount: res.ReEmbeddedCount,
		Filter:          res.ResolvedFilter,
		Change:          res.ResolvedChange,
	})
}

type backfillResponse struct {
	ReEmbedded int `json:"re_embedded"`
	Batches    int `json:"batches"`
}

// Backfill handles POST /admin/backfill/{collection}.
func (s *Server) Backfill(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	res, err := s.backfill.Run(r.Context(), collection)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, backfillResponse{
		ReEmbedded: res.ReEmbedded,
		Batches:    res.Batches,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	if err := s.health.Ping(r.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]string{"status": status})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// caller resolves the acting identity from request headers, falling back to
// the configured default for unattributed traffic.
func (s *Server) caller(r *http.Request) domain.Caller {
	caller := s.defaultCaller
	if id := r.Header.Get("X-Caller-Id"); id != "" {
		caller.ID = id
	}
	if role := r.Header.Get("X-Caller-Role"); role != "" {
		caller.Role = role
	}
	return caller
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

func recordToResponse(rec *domrec.Record) recordResponse {
	return recordResponse{
		ID:       rec.ID(),
		Tags:     rec.Tags(),
		Numerics: rec.Numerics(),
		Notes:    rec.Notes(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrAccessDenied,
		domain.ErrSecurityRejected,
		domain.ErrUnknownCollection,
		domain.ErrRecordNotFound,
		domain.ErrContentBlocked,
		domain.ErrMalformedOutput,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// securityRejectedHandler surfaces the rejection reason: it is the one
// detail callers need to rephrase a refused request.
func securityRejectedHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrSecurityRejected) {
		return false
	}
	var rej *domain.SecurityRejectedError
	if errors.As(err, &rej) {
		msg = rej.Reason
	}
	writeError(w, http.StatusUnprocessableEntity, codeSecurityRejected, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.RequestLogger(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
