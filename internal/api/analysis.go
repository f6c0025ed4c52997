package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rajasatyajit/CommentIntel/internal/cache"
	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/models"
	"github.com/rajasatyajit/CommentIntel/internal/priority"
	"github.com/rajasatyajit/CommentIntel/internal/report"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

const (
	defaultSource     = "api"
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// ClassifyRequest is the body of POST /v1/classify
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse lists the per-category classification of one comment
type ClassifyResponse struct {
	Text     string                       `json:"text"`
	Relevant []string                     `json:"relevant_categories"`
	Results  map[string]classifier.Result `json:"results"`
}

// AnalyzeRequest is the body of POST /v1/analyze
type AnalyzeRequest struct {
	Source   string           `json:"source,omitempty"`
	Comments []models.Comment `json:"comments"`
	Persist  bool             `json:"persist,omitempty"`
}

// AnalyzeResponse carries both analysis outputs. RunID is set only for persisted runs.
type AnalyzeResponse struct {
	RunID     string                      `json:"run_id,omitempty"`
	Source    string                      `json:"source"`
	Persisted bool                        `json:"persisted"`
	Aggregate *classifier.AggregateResult `json:"aggregate"`
	Analysis  *priority.Analysis          `json:"analysis"`
}

// categoriesHandler handles GET /categories
func (h *Handler) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	tax := h.classifier.Taxonomy()

	response := map[string]interface{}{
		"data":        tax.Categories,
		"count":       len(tax.Categories),
		"version":     tax.Version,
		"locale":      tax.Locale,
		"fingerprint": tax.Fingerprint(),
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// classifyHandler handles POST /classify
func (h *Handler) classifyHandler(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if utils.IsBlank(req.Text) {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "text is required")
		return
	}

	results := h.classifier.Classify(req.Text)
	relevant := []string{}
	for _, id := range h.classifier.Taxonomy().IDs() {
		if res, ok := results[id]; ok && res.Relevant {
			relevant = append(relevant, id)
		}
	}

	h.writeJSONResponse(w, http.StatusOK, ClassifyResponse{
		Text:     req.Text,
		Relevant: relevant,
		Results:  results,
	})
}

// analyzeHandler handles POST /analyze
func (h *Handler) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AnalyzeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Comments) > h.maxComments {
		h.writeErrorResponse(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("at most %d comments per request", h.maxComments))
		return
	}
	if req.Source == "" {
		req.Source = defaultSource
	}

	if req.Persist {
		res, run, err := h.pipeline.Ingest(ctx, req.Source, req.Comments)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to ingest comments", "error", err, "source", req.Source)
			h.writeErrorResponse(w, r, statusFor(err), "analysis failed")
			return
		}
		h.writeJSONResponse(w, http.StatusCreated, AnalyzeResponse{
			RunID:     run.ID,
			Source:    req.Source,
			Persisted: true,
			Aggregate: res.Aggregate,
			Analysis:  res.Analysis,
		})
		return
	}

	key := h.analyzeCacheKey(req)
	var cached AnalyzeResponse
	if hit, err := h.cache.Get(ctx, key, &cached); err != nil {
		logger.WithContext(ctx).Warn("Cache read failed", "error", err)
	} else if hit {
		w.Header().Set("X-Cache", "HIT")
		h.writeJSONResponse(w, http.StatusOK, cached)
		return
	}

	res, err := h.pipeline.Analyze(ctx, req.Source, req.Comments)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to analyze comments", "error", err, "source", req.Source)
		h.writeErrorResponse(w, r, statusFor(err), "analysis failed")
		return
	}

	response := AnalyzeResponse{
		Source:    req.Source,
		Aggregate: res.Aggregate,
		Analysis:  res.Analysis,
	}
	if err := h.cache.Set(ctx, key, response); err != nil {
		logger.WithContext(ctx).Warn("Cache write failed", "error", err)
	}

	if h.cache != nil {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// analyzeCacheKey identifies a request by taxonomy, day, source and comment content.
// Recency depends on the current date, so entries never outlive it.
func (h *Handler) analyzeCacheKey(req AnalyzeRequest) string {
	body, _ := json.Marshal(req.Comments)
	day := h.now().UTC().Format("2006-01-02")
	return cache.Key("analyze", h.classifier.Taxonomy().Fingerprint(), day, req.Source, string(body))
}

// getCommentsHandler handles GET /comments
func (h *Handler) getCommentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseCommentQuery(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.store.QueryComments(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query comments", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"data":      comments,
		"count":     len(comments),
		"timestamp": time.Now().UTC(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// getCommentHandler handles GET /comments/{id}
func (h *Handler) getCommentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	commentID := chi.URLParam(r, "id")

	if commentID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "comment ID is required")
		return
	}

	comment, err := h.store.GetComment(ctx, commentID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to get comment", "error", err, "comment_id", commentID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	if comment == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Comment not found")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, comment)
}

// latestRunHandler handles GET /runs/latest
func (h *Handler) latestRunHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	source := r.URL.Query().Get("source")

	run, err := h.store.LatestRun(ctx, source)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to get latest run", "error", err, "source", source)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if run == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "No analysis runs found")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, run)
}

// getRunHandler handles GET /runs/{id}
func (h *Handler) getRunHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	h.writeJSONResponse(w, http.StatusOK, run)
}

// runReportHandler handles GET /runs/{id}/report?type=priority|category
func (h *Handler) runReportHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	switch kind := r.URL.Query().Get("type"); kind {
	case "", "priority":
		var analysis priority.Analysis
		if err := json.Unmarshal(run.Analysis, &analysis); err != nil {
			h.corruptRun(w, r, run.ID, err)
			return
		}
		h.writeTextResponse(w, http.StatusOK, report.PriorityReport(&analysis))
	case "category":
		agg, err := decodeAggregate(run)
		if err != nil {
			h.corruptRun(w, r, run.ID, err)
			return
		}
		h.writeTextResponse(w, http.StatusOK, report.CategoryReport(agg))
	default:
		h.writeErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("unknown report type %q", kind))
	}
}

// runCommentsHandler handles GET /runs/{id}/comments?category=&sentiment=&format=
func (h *Handler) runCommentsHandler(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "category is required")
		return
	}
	sentiment, err := classifier.ParseSentiment(r.URL.Query().Get("sentiment"))
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	agg, err := decodeAggregate(run)
	if err != nil {
		h.corruptRun(w, r, run.ID, err)
		return
	}
	if _, known := agg.FilteredComments[category]; !known {
		err := fmt.Errorf("%w: %s", apperrors.ErrUnknownCategory, category)
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "text" {
		h.writeTextResponse(w, http.StatusOK, report.FilteredReport(agg, category, sentiment))
		return
	}

	comments := agg.Filter(category, sentiment)
	response := map[string]interface{}{
		"run_id":    run.ID,
		"category":  category,
		"sentiment": sentiment,
		"data":      comments,
		"count":     len(comments),
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// loadRun fetches the run named by the id URL parameter, writing 404 or 500 on failure
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*models.AnalysisRun, bool) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	if runID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "run ID is required")
		return nil, false
	}

	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to get run", "error", err, "run_id", runID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if run == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Run not found")
		return nil, false
	}
	return run, true
}

func (h *Handler) corruptRun(w http.ResponseWriter, r *http.Request, runID string, err error) {
	logger.WithContext(r.Context()).Error("Stored run document is unreadable", "error", err, "run_id", runID)
	h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
}

func decodeAggregate(run *models.AnalysisRun) (*classifier.AggregateResult, error) {
	var agg classifier.AggregateResult
	if err := json.Unmarshal(run.Aggregate, &agg); err != nil {
		return nil, err
	}
	return &agg, nil
}

// parseCommentQuery parses query parameters into CommentQuery
func (h *Handler) parseCommentQuery(r *http.Request) (models.CommentQuery, error) {
	q := models.CommentQuery{Limit: defaultQueryLimit}

	// Parse limit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return q, fmt.Errorf("invalid limit: %s", limitStr)
		}
		if limit < 0 || limit > maxQueryLimit {
			return q, fmt.Errorf("limit must be between 0 and %d", maxQueryLimit)
		}
		q.Limit = limit
	}

	// Parse offset
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return q, fmt.Errorf("invalid offset: %s", offsetStr)
		}
		if offset < 0 {
			return q, fmt.Errorf("offset must be non-negative")
		}
		q.Offset = offset
	}

	// Parse time filters
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return q, fmt.Errorf("invalid since format: %s", sinceStr)
		}
		q.Since = since
	}

	if untilStr := r.URL.Query().Get("until"); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return q, fmt.Errorf("invalid until format: %s", untilStr)
		}
		q.Until = until
	}

	// Parse array filters
	q.IDs = r.URL.Query()["id"]
	q.Sources = r.URL.Query()["source"]
	q.Sellers = r.URL.Query()["seller"]
	q.Users = r.URL.Query()["user"]
	q.Text = r.URL.Query().Get("q")

	return q, nil
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, apperrors.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, apperrors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrUnknownCategory):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
