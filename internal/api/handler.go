package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rajasatyajit/CommentIntel/internal/cache"
	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	"github.com/rajasatyajit/CommentIntel/internal/pipeline"
	"github.com/rajasatyajit/CommentIntel/internal/store"
)

const defaultMaxComments = 10000

// Handler handles HTTP requests for the API
type Handler struct {
	store       store.Store
	pipeline    *pipeline.Pipeline
	classifier  *classifier.Classifier
	cache       *cache.Cache
	maxComments int
	version     string
	buildTime   string
	gitCommit   string
	startTime   time.Time
	now         func() time.Time
}

// Option configures a Handler
type Option func(*Handler)

// WithCache caches non-persisted analyze responses
func WithCache(c *cache.Cache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithClock sets the time source used for the analyze cache day
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithMaxComments bounds the comments accepted by one analyze request
func WithMaxComments(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxComments = n
		}
	}
}

// NewHandler creates a new API handler
func NewHandler(st store.Store, p *pipeline.Pipeline, cls *classifier.Classifier, version, buildTime, gitCommit string, opts ...Option) *Handler {
	h := &Handler{
		store:       st,
		pipeline:    p,
		classifier:  cls,
		maxComments: defaultMaxComments,
		version:     version,
		buildTime:   buildTime,
		gitCommit:   gitCommit,
		startTime:   time.Now(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		// Taxonomy and ad-hoc analysis
		r.Get("/categories", h.categoriesHandler)
		r.Post("/classify", h.classifyHandler)
		r.Post("/analyze", h.analyzeHandler)

		// Stored comments and runs
		r.Get("/comments", h.getCommentsHandler)
		r.Get("/comments/{id}", h.getCommentHandler)
		r.Get("/runs/latest", h.latestRunHandler)
		r.Get("/runs/{id}", h.getRunHandler)
		r.Get("/runs/{id}/report", h.runReportHandler)
		r.Get("/runs/{id}/comments", h.runCommentsHandler)

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store":    "ok",
		"pipeline": "idle",
	}

	statusCode := http.StatusOK

	// Check store health
	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}
	if h.pipeline != nil && h.pipeline.IsRunning() {
		checks["pipeline"] = "running"
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}
	if statusCode != http.StatusOK {
		response["status"] = "not ready"
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}
	if h.classifier != nil {
		response["taxonomy_fingerprint"] = h.classifier.Taxonomy().Fingerprint()
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// decodeJSON reads a JSON request body into dst, mapping oversized bodies to 413
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeTextResponse writes a plain text report
func (h *Handler) writeTextResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write([]byte(body))
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = r.Header.Get("X-Request-ID")
	}

	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
