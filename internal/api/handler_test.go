package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rajasatyajit/CommentIntel/config"
	"github.com/rajasatyajit/CommentIntel/internal/cache"
	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	"github.com/rajasatyajit/CommentIntel/internal/contextual"
	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/models"
	"github.com/rajasatyajit/CommentIntel/internal/pipeline"
	"github.com/rajasatyajit/CommentIntel/internal/priority"
	"github.com/rajasatyajit/CommentIntel/internal/store"
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
)

// MockStore wraps the in-memory store so health and failures can be injected
type MockStore struct {
	*store.InMemoryStore
	health   error
	queryErr error
}

func NewMockStore() *MockStore {
	return &MockStore{InMemoryStore: store.NewInMemoryStore()}
}

func (m *MockStore) Health(ctx context.Context) error {
	return m.health
}

func (m *MockStore) QueryComments(ctx context.Context, q models.CommentQuery) ([]models.Comment, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.InMemoryStore.QueryComments(ctx, q)
}

func (m *MockStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.InMemoryStore.GetComment(ctx, id)
}

func (m *MockStore) SetHealthError(err error) {
	m.health = err
}

var testComments = []models.Comment{
	{User: "ayse", Text: "kargo çok geç geldi, berbat", Date: "18.01.2024"},
	{User: "ali", Text: "kalite berbat, ürün bozuk geldi"},
	{User: "can", Text: "fiyatı uygun ve ucuz"},
}

func newTestRouter(t *testing.T, st store.Store, opts ...Option) *chi.Mux {
	t.Helper()
	logger.Init("error", "text")

	tax, err := taxonomy.Default()
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	cls := classifier.New(contextual.New(tax))
	p := pipeline.New(st, cls, priority.New(tax), config.PipelineConfig{
		RateLimit:   100,
		WorkerCount: 2,
		BatchSize:   100,
	})

	handler := NewHandler(st, p, cls, "test-version", "test-build-time", "test-commit", opts...)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_HealthEndpoints(t *testing.T) {
	r := newTestRouter(t, NewMockStore())

	tests := []struct {
		name           string
		endpoint       string
		expectedStatus int
		checkBody      bool
	}{
		{
			name:           "Basic health check",
			endpoint:       "/health",
			expectedStatus: http.StatusOK,
			checkBody:      true,
		},
		{
			name:           "V1 health check",
			endpoint:       "/v1/health",
			expectedStatus: http.StatusOK,
			checkBody:      true,
		},
		{
			name:           "Readiness check - healthy",
			endpoint:       "/v1/health/ready",
			expectedStatus: http.StatusOK,
			checkBody:      true,
		},
		{
			name:           "Liveness check",
			endpoint:       "/v1/health/live",
			expectedStatus: http.StatusOK,
			checkBody:      true,
		},
		{
			name:           "Version endpoint",
			endpoint:       "/v1/version",
			expectedStatus: http.StatusOK,
			checkBody:      false, // Version endpoint doesn't have timestamp
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.endpoint, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.checkBody {
				contentType := w.Header().Get("Content-Type")
				if contentType != "application/json" {
					t.Errorf("Expected Content-Type application/json, got %s", contentType)
				}

				var response map[string]interface{}
				err := json.NewDecoder(w.Body).Decode(&response)
				if err != nil {
					t.Errorf("Failed to decode JSON response: %v", err)
				}

				if _, exists := response["timestamp"]; !exists {
					t.Error("Expected timestamp in response")
				}
			}
		})
	}
}

func TestHandler_ReadinessUnhealthy(t *testing.T) {
	st := NewMockStore()
	st.SetHealthError(errors.New("database connection failed"))
	r := newTestRouter(t, st)

	w := doJSON(t, r, "GET", "/v1/health/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)
	checks := response["checks"].(map[string]interface{})
	if !strings.Contains(checks["store"].(string), "database connection failed") {
		t.Errorf("Expected store error in checks, got %v", checks["store"])
	}
}

func TestHandler_Version(t *testing.T) {
	r := newTestRouter(t, NewMockStore())

	w := doJSON(t, r, "GET", "/v1/version", nil)
	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)

	if response["version"] != "test-version" || response["git_commit"] != "test-commit" {
		t.Errorf("Unexpected version info: %v", response)
	}
	if response["taxonomy_fingerprint"] == "" || response["taxonomy_fingerprint"] == nil {
		t.Error("Expected taxonomy fingerprint")
	}
}

func TestHandler_Categories(t *testing.T) {
	r := newTestRouter(t, NewMockStore())

	w := doJSON(t, r, "GET", "/v1/categories", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Data  []taxonomy.Category `json:"data"`
		Count int                 `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
	if response.Count == 0 || response.Count != len(response.Data) {
		t.Fatalf("Expected categories, got %d/%d", response.Count, len(response.Data))
	}

	found := false
	for _, c := range response.Data {
		if c.ID == "kargo" {
			found = true
			if c.Department == "" || c.BusinessImpact == 0 {
				t.Errorf("Expected kargo metadata, got %+v", c)
			}
		}
	}
	if !found {
		t.Error("Expected kargo category")
	}
}

func TestHandler_Classify(t *testing.T) {
	r := newTestRouter(t, NewMockStore())

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		wantRelevant   string
	}{
		{"shipping complaint", `{"text":"kargo çok geç geldi, berbat"}`, http.StatusOK, "kargo"},
		{"blank text", `{"text":"   "}`, http.StatusBadRequest, ""},
		{"invalid JSON", `{"text":`, http.StatusBadRequest, ""},
		{"unknown field", `{"comment":"kargo"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/classify", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.wantRelevant == "" {
				var errResp ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil || errResp.Error == "" {
					t.Errorf("Expected error response, got %v", err)
				}
				return
			}

			var response ClassifyResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode JSON response: %v", err)
			}
			if len(response.Relevant) == 0 || response.Relevant[0] != tt.wantRelevant {
				t.Errorf("Expected %s relevant, got %v", tt.wantRelevant, response.Relevant)
			}
			if res := response.Results[tt.wantRelevant]; res.Sentiment != classifier.Negative {
				t.Errorf("Expected negative sentiment, got %s", res.Sentiment)
			}
		})
	}
}

func TestHandler_Analyze(t *testing.T) {
	r := newTestRouter(t, NewMockStore())

	w := doJSON(t, r, "POST", "/v1/analyze", AnalyzeRequest{Comments: testComments})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Cache") != "" {
		t.Errorf("Expected no cache header without a cache, got %q", w.Header().Get("X-Cache"))
	}

	var response AnalyzeResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
	if response.Persisted || response.RunID != "" || response.Source != defaultSource {
		t.Errorf("Unexpected response metadata: %+v", response)
	}
	if response.Aggregate.TotalComments != 3 {
		t.Errorf("Expected 3 comments, got %d", response.Aggregate.TotalComments)
	}
	if top := response.Analysis.Top(); top == nil || top.Category != "kargo" {
		t.Errorf("Expected kargo as top issue, got %+v", top)
	}
}

func TestHandler_Analyze_EmptyBatch(t *testing.T) {
	r := newTestRouter(t, NewMockStore())

	w := doJSON(t, r, "POST", "/v1/analyze", AnalyzeRequest{Comments: []models.Comment{}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response AnalyzeResponse
	json.NewDecoder(w.Body).Decode(&response)
	if !response.Analysis.Summary.NothingCritical {
		t.Errorf("Expected nothing-critical summary, got %+v", response.Analysis.Summary)
	}
}

func TestHandler_Analyze_TooManyComments(t *testing.T) {
	r := newTestRouter(t, NewMockStore(), WithMaxComments(2))

	w := doJSON(t, r, "POST", "/v1/analyze", AnalyzeRequest{Comments: testComments})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
}

func TestHandler_Analyze_Cached(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	r := newTestRouter(t, NewMockStore(), WithCache(cache.New(client, time.Minute)))

	first := doJSON(t, r, "POST", "/v1/analyze", AnalyzeRequest{Source: "trendyol", Comments: testComments})
	if first.Header().Get("X-Cache") != "MISS" {
		t.Errorf("Expected MISS, got %q", first.Header().Get("X-Cache"))
	}

	second := doJSON(t, r, "POST", "/v1/analyze", AnalyzeRequest{Source: "trendyol", Comments: testComments})
	if second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("Expected HIT, got %q", second.Header().Get("X-Cache"))
	}
	if second.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", second.Code)
	}

	var response AnalyzeResponse
	json.NewDecoder(second.Body).Decode(&response)
	if top := response.Analysis.Top(); top == nil || top.Category != "kargo" {
		t.Errorf("Expected cached analysis, got %+v", response.Analysis)
	}

	other := doJSON(t, r, "POST", "/v1/analyze", AnalyzeRequest{Source: "hepsiburada", Comments: testComments})
	if other.Header().Get("X-Cache") != "MISS" {
		t.Errorf("Expected a different source to miss, got %q", other.Header().Get("X-Cache"))
	}
}

func TestHandler_Analyze_CacheExpiresWithDay(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	now := time.Date(2024, 1, 20, 23, 59, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := newTestRouter(t, NewMockStore(), WithCache(cache.New(client, 48*time.Hour)), WithClock(clock))

	req := AnalyzeRequest{Source: "trendyol", Comments: testComments}
	if w := doJSON(t, r, "POST", "/v1/analyze", req); w.Header().Get("X-Cache") != "MISS" {
		t.Errorf("Expected MISS, got %q", w.Header().Get("X-Cache"))
	}
	if w := doJSON(t, r, "POST", "/v1/analyze", req); w.Header().Get("X-Cache") != "HIT" {
		t.Errorf("Expected HIT on the same day, got %q", w.Header().Get("X-Cache"))
	}

	// Recent complaint counts change at midnight even though the entry is still live
	now = now.Add(2 * time.Minute)
	if w := doJSON(t, r, "POST", "/v1/analyze", req); w.Header().Get("X-Cache") != "MISS" {
		t.Errorf("Expected MISS on the next day, got %q", w.Header().Get("X-Cache"))
	}
}

// persistRun posts testComments with persistence and returns the run id
func persistRun(t *testing.T, r http.Handler) string {
	t.Helper()
	w := doJSON(t, r, "POST", "/v1/analyze", AnalyzeRequest{Source: "trendyol", Comments: testComments, Persist: true})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var response AnalyzeResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatal(err)
	}
	if !response.Persisted || response.RunID == "" {
		t.Fatalf("Expected persisted run, got %+v", response)
	}
	return response.RunID
}

func TestHandler_Runs(t *testing.T) {
	st := NewMockStore()
	r := newTestRouter(t, st)

	if w := doJSON(t, r, "GET", "/v1/runs/latest", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before any run, got %d", w.Code)
	}

	runID := persistRun(t, r)

	w := doJSON(t, r, "GET", "/v1/runs/"+runID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var run models.AnalysisRun
	json.NewDecoder(w.Body).Decode(&run)
	if run.ID != runID || run.Source != "trendyol" || run.TopCategory != "kargo" || run.TotalComments != 3 {
		t.Errorf("Unexpected run: %+v", run)
	}

	w = doJSON(t, r, "GET", "/v1/runs/latest?source=trendyol", nil)
	var latest models.AnalysisRun
	json.NewDecoder(w.Body).Decode(&latest)
	if w.Code != http.StatusOK || latest.ID != runID {
		t.Errorf("Expected latest run %s, got %d %s", runID, w.Code, latest.ID)
	}

	if w := doJSON(t, r, "GET", "/v1/runs/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown run, got %d", w.Code)
	}
}

func TestHandler_RunReport(t *testing.T) {
	r := newTestRouter(t, NewMockStore())
	runID := persistRun(t, r)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		contains       string
	}{
		{"priority report", "", http.StatusOK, "KARGO"},
		{"explicit priority", "?type=priority", http.StatusOK, "PRIORITISED ACTION PLAN"},
		{"category report", "?type=category", http.StatusOK, "TOPIC SENTIMENT ANALYSIS"},
		{"unknown type", "?type=pdf", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, "GET", "/v1/runs/"+runID+"/report"+tt.query, nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.contains == "" {
				return
			}
			if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
				t.Errorf("Expected text/plain, got %s", w.Header().Get("Content-Type"))
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("Expected report to contain %q, got:\n%s", tt.contains, w.Body.String())
			}
		})
	}
}

func TestHandler_RunComments(t *testing.T) {
	r := newTestRouter(t, NewMockStore())
	runID := persistRun(t, r)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
	}{
		{"negative kargo", "?category=kargo&sentiment=negative", http.StatusOK},
		{"all kargo", "?category=kargo", http.StatusOK},
		{"missing category", "", http.StatusBadRequest},
		{"unknown category", "?category=weather", http.StatusBadRequest},
		{"unknown sentiment", "?category=kargo&sentiment=angry", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, "GET", "/v1/runs/"+runID+"/comments"+tt.query, nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code != http.StatusOK {
				return
			}

			var response struct {
				Count int                          `json:"count"`
				Data  []classifier.AnalyzedComment `json:"data"`
			}
			json.NewDecoder(w.Body).Decode(&response)
			if response.Count == 0 || response.Count != len(response.Data) {
				t.Fatalf("Expected kargo comments, got %d/%d", response.Count, len(response.Data))
			}
			if !strings.Contains(response.Data[0].Comment, "kargo") {
				t.Errorf("Expected the shipping complaint first, got %q", response.Data[0].Comment)
			}
		})
	}

	w := doJSON(t, r, "GET", "/v1/runs/"+runID+"/comments?category=kargo&sentiment=negative&format=text", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ayse") {
		t.Errorf("Expected filtered text report, got %d:\n%s", w.Code, w.Body.String())
	}

	var errResp ErrorResponse
	w = doJSON(t, r, "GET", "/v1/runs/"+runID+"/comments?category=weather", nil)
	json.NewDecoder(w.Body).Decode(&errResp)
	if !strings.Contains(errResp.Message, apperrors.ErrUnknownCategory.Error()) {
		t.Errorf("Expected unknown category message, got %q", errResp.Message)
	}
}

func TestHandler_Comments(t *testing.T) {
	st := NewMockStore()
	r := newTestRouter(t, st)
	persistRun(t, r)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedCount  int
	}{
		{"all", "", http.StatusOK, 3},
		{"by source", "?source=trendyol", http.StatusOK, 3},
		{"other source", "?source=n11", http.StatusOK, 0},
		{"by user", "?user=ayse", http.StatusOK, 1},
		{"text search", "?q=KARGO", http.StatusOK, 1},
		{"limit", "?limit=2", http.StatusOK, 2},
		{"invalid limit", "?limit=abc", http.StatusBadRequest, 0},
		{"limit too large", "?limit=5000", http.StatusBadRequest, 0},
		{"negative offset", "?offset=-1", http.StatusBadRequest, 0},
		{"invalid since", "?since=yesterday", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, "GET", "/v1/comments"+tt.query, nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if w.Code != http.StatusOK {
				return
			}
			var response map[string]interface{}
			json.NewDecoder(w.Body).Decode(&response)
			if count := int(response["count"].(float64)); count != tt.expectedCount {
				t.Errorf("Expected %d comments, got %d", tt.expectedCount, count)
			}
		})
	}

	st.queryErr = errors.New("database query failed")
	if w := doJSON(t, r, "GET", "/v1/comments", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestHandler_GetComment(t *testing.T) {
	st := NewMockStore()
	r := newTestRouter(t, st)
	persistRun(t, r)

	stored, err := st.QueryComments(context.Background(), models.CommentQuery{Users: []string{"ayse"}})
	if err != nil || len(stored) != 1 {
		t.Fatalf("Expected one stored comment for ayse, got %v, %v", stored, err)
	}

	tests := []struct {
		name           string
		id             string
		expectedStatus int
	}{
		{"stored comment", stored[0].ID, http.StatusOK},
		{"unknown comment", "does-not-exist", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, "GET", "/v1/comments/"+tt.id, nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if w.Code != http.StatusOK {
				return
			}
			var comment models.Comment
			if err := json.NewDecoder(w.Body).Decode(&comment); err != nil {
				t.Fatal(err)
			}
			if comment.ID != tt.id || comment.User != "ayse" || comment.Source != "trendyol" {
				t.Errorf("Unexpected comment: %+v", comment)
			}
		})
	}

	st.queryErr = errors.New("database query failed")
	if w := doJSON(t, r, "GET", "/v1/comments/"+stored[0].ID, nil); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{apperrors.PipelineError{Source: "s", Stage: "classify", Err: context.Canceled}, http.StatusServiceUnavailable},
		{apperrors.ErrUnknownCategory, http.StatusBadRequest},
		{apperrors.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}
