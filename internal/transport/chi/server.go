// Package chi provides the HTTP surface of the gateway.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kareline/raggate/internal/domain"
	answeruc "github.com/kareline/raggate/internal/usecase/answer"
	healthuc "github.com/kareline/raggate/internal/usecase/health"
	raguc "github.com/kareline/raggate/internal/usecase/rag"
)

const (
	maxQueryLen  = 2000
	maxRagTopK   = 200
	defRagTopK   = 50
	maxAnswerK   = 20
	defAnswerK   = 5
	maxBatchSize = 100
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	pipeline      *raguc.Service
	answers       *answeruc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	pipeline *raguc.Service,
	answers *answeruc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pipeline: pipeline,
		answers:  answers,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"),
		sentinelHandler(domain.ErrCircuitOpen, http.StatusServiceUnavailable, "circuit_open"),
		sentinelHandler(domain.ErrSearchFailed, http.StatusInternalServerError, "search_failed"),
		sentinelHandler(domain.ErrIngestFailed, http.StatusInternalServerError, "ingest_failed"),
	}
	return s
}

// ragRequest is the POST /rag body.
type ragRequest struct {
	Q      string `json:"q"`
	K      int    `json:"k"`
	Rerank bool   `json:"rerank"`
}

// answerRequest is the POST /answer body. Rerank defaults to true, so it
// needs a tri-state field.
type answerRequest struct {
	Q      string `json:"q"`
	K      int    `json:"k"`
	Rerank *bool  `json:"rerank"`
}

// ingestItem is one document in POST /ingest and /ingest_batch.
type ingestItem struct {
	ID    int64  `json:"id"`
	Text  string `json:"text"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type ingestBatchRequest struct {
	Items []ingestItem `json:"items"`
}

// Rag handles POST /rag.
func (s *Server) Rag(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if req.K == 0 {
		req.K = defRagTopK
	}
	if msg := validateQuery(req.Q, req.K, maxRagTopK); msg != "" {
		s.logger.Debug("rag request rejected", zap.String("reason", msg))
		writeError(w, http.StatusBadRequest, "validation_failed")
		return
	}

	hits, err := s.pipeline.Query(r.Context(), domain.Query{
		Text:       req.Q,
		TopK:       req.K,
		WantRerank: req.Rerank,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if hits == nil {
		hits = []domain.Hit{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

// Answer handles POST /answer: retrieve, optionally rerank, then generate a
// grounded answer with the retrieved passages as citations.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if req.K == 0 {
		req.K = defAnswerK
	}
	rerank := true
	if req.Rerank != nil {
		rerank = *req.Rerank
	}
	if msg := validateQuery(req.Q, req.K, maxAnswerK); msg != "" {
		s.logger.Debug("answer request rejected", zap.String("reason", msg))
		writeError(w, http.StatusBadRequest, "validation_failed")
		return
	}

	hits, err := s.pipeline.Query(r.Context(), domain.Query{
		Text:       req.Q,
		TopK:       req.K,
		WantRerank: rerank,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if hits == nil {
		hits = []domain.Hit{}
	}

	answer := s.answers.Answer(r.Context(), req.Q, hits)

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":    answer,
		"citations": hits,
	})
}

// Ingest handles POST /ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var item ingestItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if item.Text == "" {
		writeError(w, http.StatusBadRequest, "validation_failed")
		return
	}

	chunks, err := s.pipeline.Ingest(r.Context(), docFromItem(item))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"doc_id": item.ID,
		"chunks": chunks,
	})
}

// IngestBatch handles POST /ingest_batch.
func (s *Server) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req ingestBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "validation_failed")
		return
	}

	docs := make([]domain.Document, len(req.Items))
	for i, item := range req.Items {
		if item.Text == "" {
			writeError(w, http.StatusBadRequest, "validation_failed")
			return
		}
		docs[i] = docFromItem(item)
	}

	results := s.pipeline.IngestBatch(r.Context(), docs)

	succeeded, failed := 0, 0
	items := make([]map[string]any, len(results))
	for i, res := range results {
		item := map[string]any{
			"ok":     res.Err == nil,
			"doc_id": res.DocID,
			"chunks": res.Chunks,
		}
		if res.Err != nil {
			s.logger.Warn("batch item failed",
				zap.Int64("doc_id", res.DocID), zap.Error(res.Err))
			item["error"] = "ingest_failed"
			failed++
		} else {
			succeeded++
		}
		items[i] = item
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":     items,
		"succeeded": succeeded,
		"failed":    failed,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":       report.Status,
		"checks":       report.Checks,
		"circuit_open": report.CircuitOpen,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func docFromItem(item ingestItem) domain.Document {
	return domain.Document{
		ID:    item.ID,
		Text:  item.Text,
		Title: item.Title,
		URL:   item.URL,
	}
}

func validateQuery(q string, k, maxK int) string {
	if q == "" || len(q) > maxQueryLen {
		return fmt.Sprintf("q length must be between 1 and %d", maxQueryLen)
	}
	if k < 1 || k > maxK {
		return fmt.Sprintf("k must be between 1 and %d", maxK)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error")
}
