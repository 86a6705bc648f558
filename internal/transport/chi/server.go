// Package chi exposes the search and analysis services over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/uxlens/uxlens/internal/domain"
	domanalysis "github.com/uxlens/uxlens/internal/domain/analysis"
	"github.com/uxlens/uxlens/internal/domain/guideline"
	"github.com/uxlens/uxlens/internal/domain/search"
	"github.com/uxlens/uxlens/internal/knowledge"
	analysisuc "github.com/uxlens/uxlens/internal/usecase/analysis"
)

// maxUploadBytes bounds one screenshot upload.
const maxUploadBytes = 10 << 20

// SearchEngine is the search surface the HTTP layer depends on.
type SearchEngine interface {
	Search(ctx context.Context, query string, opts search.Options) (search.Response, error)
	SearchByElements(
		ctx context.Context, elements []string, prompt string, opts search.Options,
	) (search.Response, error)
	SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]search.Result, error)
	MultiModal(
		ctx context.Context, query string, elements, keywords []string, opts search.Options,
	) (search.Response, error)
}

// Analyzer is the analysis surface the HTTP layer depends on.
type Analyzer interface {
	Analyze(
		ctx context.Context, image []byte, mimeType, prompt string, opts analysisuc.Options,
	) (domanalysis.Result, error)
	AnalyzeBatch(
		ctx context.Context, images [][]byte, mimeTypes, prompts []string, opts analysisuc.Options,
	) ([]domanalysis.Result, error)
}

// KnowledgeIndex reports offline corpus statistics.
type KnowledgeIndex interface {
	Stats() knowledge.Stats
}

// Pinger checks a dependency's liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	engine        SearchEngine
	analyzer      Analyzer
	know          KnowledgeIndex
	store         Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	engine SearchEngine,
	analyzer Analyzer,
	know KnowledgeIndex,
	store Pinger,
	logger *zap.Logger,
) *Server {
	s := &Server{
		engine:   engine,
		analyzer: analyzer,
		know:     know,
		store:    store,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, "empty_query"),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, "invalid_filter"),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, "vector_dim_mismatch"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrVisionProviderError, http.StatusBadGateway, "vision_provider_error"),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"),
		sentinelHandler(domain.ErrCapabilityNotFound, http.StatusNotImplemented, "capability_not_found"),
	}
	return s
}

// Register mounts the API routes. Middleware is assembled by the caller.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.SearchGuidelines)
		r.Post("/search/elements", s.SearchByElements)
		r.Post("/search/keywords", s.SearchByKeywords)
		r.Post("/search/multimodal", s.MultiModalSearch)
		r.Post("/analyze", s.Analyze)
		r.Post("/analyze/batch", s.AnalyzeBatch)
		r.Get("/knowledge/stats", s.KnowledgeStats)
	})
}

type searchRequest struct {
	Query      string   `json:"query"`
	Categories []string `json:"categories,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Threshold  float64  `json:"threshold,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

func (req searchRequest) options() search.Options {
	cats := make([]guideline.Category, len(req.Categories))
	for i, c := range req.Categories {
		cats[i] = guideline.Category(c)
	}
	return search.Options{
		Categories: cats,
		Sources:    req.Sources,
		Threshold:  req.Threshold,
		Limit:      req.Limit,
	}
}

// SearchGuidelines handles POST /api/v1/search.
func (s *Server) SearchGuidelines(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.engine.Search(r.Context(), req.Query, req.options())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchByElements handles POST /api/v1/search/elements.
func (s *Server) SearchByElements(w http.ResponseWriter, r *http.Request) {
	var req struct {
		searchRequest
		Elements []string `json:"elements"`
		Prompt   string   `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.engine.SearchByElements(r.Context(), req.Elements, req.Prompt, req.options())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchByKeywords handles POST /api/v1/search/keywords.
func (s *Server) SearchByKeywords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keywords []string `json:"keywords"`
		Limit    int      `json:"limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Keywords) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "keywords are required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	results, err := s.engine.SearchByKeywords(r.Context(), req.Keywords, req.Limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":      results,
		"totalResults": len(results),
	})
}

// MultiModalSearch handles POST /api/v1/search/multimodal.
func (s *Server) MultiModalSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		searchRequest
		Elements []string `json:"elements,omitempty"`
		Keywords []string `json:"keywords,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.engine.MultiModal(r.Context(), req.Query, req.Elements, req.Keywords, req.options())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Analyze handles POST /api/v1/analyze (multipart: image file + prompt).
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	image, mimeType, prompt, mode, ok := s.readAnalyzeForm(w, r)
	if !ok {
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), image, mimeType, prompt,
		analysisuc.Options{Mode: mode})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	// The envelope must be well-formed on the wire no matter what upstream did.
	repaired, _ := domanalysis.ValidateAndRepair(result)
	writeJSON(w, http.StatusOK, repaired)
}

// AnalyzeBatch handles POST /api/v1/analyze/batch (multipart: images files +
// prompts JSON array).
func (s *Server) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 5*maxUploadBytes)
	if err := r.ParseMultipartForm(5 * maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form: "+err.Error())
		return
	}

	var prompts []string
	if raw := r.FormValue("prompts"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &prompts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "prompts must be a JSON string array")
			return
		}
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "at least one image is required")
		return
	}

	images := make([][]byte, 0, len(files))
	mimeTypes := make([]string, 0, len(files))
	for _, fh := range files {
		data, mt, err := readUpload(fh.Open, fh.Header.Get("Content-Type"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		images = append(images, data)
		mimeTypes = append(mimeTypes, mt)
	}

	results, err := s.analyzer.AnalyzeBatch(r.Context(), images, mimeTypes, prompts, analysisuc.Options{})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	for i := range results {
		results[i], _ = domanalysis.ValidateAndRepair(results[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) readAnalyzeForm(
	w http.ResponseWriter, r *http.Request,
) (image []byte, mimeType, prompt string, mode analysisuc.Mode, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form: "+err.Error())
		return nil, "", "", "", false
	}

	prompt = r.FormValue("prompt")
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "prompt is required")
		return nil, "", "", "", false
	}

	switch r.FormValue("mode") {
	case "", "comprehensive":
		mode = analysisuc.ModeComprehensive
	case "quick":
		mode = analysisuc.ModeQuick
	default:
		writeError(w, http.StatusBadRequest, "invalid_input", "mode must be comprehensive or quick")
		return nil, "", "", "", false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "image file is required")
		return nil, "", "", "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "failed to read image: "+err.Error())
		return nil, "", "", "", false
	}

	mimeType = header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, prompt, mode, true
}

func readUpload(open func() (multipart.File, error), declaredType string) ([]byte, string, error) {
	f, err := open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if declaredType == "" {
		declaredType = http.DetectContentType(data)
	}
	return data, declaredType, nil
}

// KnowledgeStats handles GET /api/v1/knowledge/stats.
func (s *Server) KnowledgeStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.know.Stats())
}

// HealthCheck handles GET /health. The service is degraded but alive without
// its store; only a dead process is unhealthy, because the tier cascade can
// serve from the offline corpus.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	status := "healthy"
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			checks["store"] = "unavailable"
			status = "degraded"
		} else {
			checks["store"] = "ok"
		}
	}
	checks["offline_index"] = "ok"

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidFilter,
		domain.ErrInvalidInput,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrVisionProviderError,
		domain.ErrStoreUnavailable,
		domain.ErrCapabilityNotFound,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler matching a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
