package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rajasatyajit/CommentIntel/config"
	"github.com/rajasatyajit/CommentIntel/internal/api"
	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	"github.com/rajasatyajit/CommentIntel/internal/contextual"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	middlewares "github.com/rajasatyajit/CommentIntel/internal/middleware"
	"github.com/rajasatyajit/CommentIntel/internal/models"
	"github.com/rajasatyajit/CommentIntel/internal/pipeline"
	"github.com/rajasatyajit/CommentIntel/internal/priority"
	"github.com/rajasatyajit/CommentIntel/internal/ratelimit"
	"github.com/rajasatyajit/CommentIntel/internal/scheduler"
	"github.com/rajasatyajit/CommentIntel/internal/store"
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
)

type stack struct {
	router   http.Handler
	pipeline *pipeline.Pipeline
}

func newStack(t *testing.T, st store.Store) stack {
	t.Helper()
	logger.Init("error", "text")

	tax, err := taxonomy.Default()
	if err != nil {
		t.Fatal(err)
	}
	cls := classifier.New(contextual.New(tax))
	p := pipeline.New(st, cls, priority.New(tax), config.PipelineConfig{RateLimit: 10, WorkerCount: 2, BatchSize: 2},
		pipeline.WithLookback(24*time.Hour))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.Security)
	r.Use(middlewares.BodyLimit(1 << 20))
	r.Use(middlewares.RateLimit(ratelimit.NewMemoryLimiter(), 1000))
	api.NewHandler(st, p, cls, "test", "test-time", "test-commit").RegisterRoutes(r)

	return stack{router: r, pipeline: p}
}

func TestHealthEndpoints(t *testing.T) {
	s := newStack(t, store.NewInMemoryStore())

	tests := []struct {
		name           string
		endpoint       string
		expectedStatus int
	}{
		{"Health Check", "/health", http.StatusOK},
		{"Readiness Check", "/v1/health/ready", http.StatusOK},
		{"Liveness Check", "/v1/health/live", http.StatusOK},
		{"Version Info", "/v1/version", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.endpoint, nil)
			w := httptest.NewRecorder()

			s.router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if w.Header().Get("X-RateLimit-Limit") != "1000" {
				t.Errorf("Expected rate limit headers, got %q", w.Header().Get("X-RateLimit-Limit"))
			}
		})
	}
}

// TestSQLiteEndToEnd persists through the API, reopens the database and re-analyses
// the stored comments on a schedule trigger.
func TestSQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "commentintel.db")

	st, err := store.NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	s := newStack(t, st)

	body, _ := json.Marshal(api.AnalyzeRequest{
		Source:  "trendyol",
		Persist: true,
		Comments: []models.Comment{
			{User: "ayse", Text: "kargo çok geç geldi, berbat", Date: "18.01.2024"},
			{User: "ali", Text: "kargo 10 gün bekledim, hala gelmedi"},
			{User: "can", Text: "fiyatı uygun ve ucuz"},
		},
	})
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/analyze", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created api.AnalyzeResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen and serve the stored run
	st, err = store.NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	s = newStack(t, st)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/runs/"+created.RunID+"/report", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "KARGO") {
		t.Fatalf("Expected stored report, got %d:\n%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/comments?source=trendyol", nil))
	var listed struct {
		Count int `json:"count"`
	}
	json.NewDecoder(w.Body).Decode(&listed)
	if listed.Count != 3 {
		t.Errorf("Expected 3 stored comments, got %d", listed.Count)
	}

	// A scheduled re-analysis reads the stored comments back
	sched, err := scheduler.New("@hourly", s.pipeline, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	run, err := sched.Trigger(ctx)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if run == nil || run.Source != pipeline.ReanalysisSource || run.TotalComments != 3 {
		t.Fatalf("Unexpected re-analysis run: %+v", run)
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/runs/latest", nil))
	var latest models.AnalysisRun
	json.NewDecoder(w.Body).Decode(&latest)
	if latest.ID != run.ID {
		t.Errorf("Expected latest run to be the re-analysis %s, got %s", run.ID, latest.ID)
	}
}
