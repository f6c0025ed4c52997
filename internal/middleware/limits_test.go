package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/rajasatyajit/CommentIntel/config"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/ratelimit"
)

func TestRedisRateLimiterRPM(t *testing.T) {
	// Start miniredis
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	client, err := ratelimit.Connect(context.Background(), config.RedisConfig{URL: "redis://" + s.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	mgr := ratelimit.NewManager(client)
	defer mgr.Close()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mw := RateLimit(mgr, 20)(h)

	req := httptest.NewRequest("POST", "/v1/analyze", nil)

	var last *httptest.ResponseRecorder
	for i := 0; i < 25; i++ {
		last = httptest.NewRecorder()
		mw.ServeHTTP(last, req)
	}
	if last.Code != 429 {
		t.Fatalf("expected 429 after exceeding rpm, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Errorf("missing Retry-After")
	}

	// Other routes count separately
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/categories", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200 on a different route, got %d", rec.Code)
	}

	// A fresh window allows again
	s.FastForward(time.Minute)
	s.FlushAll()
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200 after window reset, got %d", rec.Code)
	}
}

func TestHeadersPresentAfterRequest(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mw := RateLimit(ratelimit.NewMemoryLimiter(), 5)(h)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/runs/latest", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "5" {
		t.Fatalf("unexpected X-RateLimit-Limit %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Fatalf("unexpected X-RateLimit-Remaining %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatalf("missing X-RateLimit-Reset")
	}
}

type failingLimiter struct{}

func (failingLimiter) CheckRate(ctx context.Context, key string, rpm int) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	logger.Init("error", "text")
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	rec := httptest.NewRecorder()
	RateLimit(failingLimiter{}, 1)(h).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != 200 {
		t.Errorf("expected limiter errors to let requests through, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	RateLimit(nil, 1)(h).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != 200 || rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Errorf("expected nil limiter to disable limiting")
	}
}
