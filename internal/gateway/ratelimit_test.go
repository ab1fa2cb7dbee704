package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) RateLimitAllow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return f.allow, f.err
}

func newTestEngine() *gin.Engine {
	return gin.New()
}

func TestRateLimitMiddlewareAllows(t *testing.T) {
	r := newTestEngine()
	r.Use(RateLimitMiddleware(&fakeLimiter{allow: true}, 10, time.Minute, slog.Default()))
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRateLimitMiddlewareDenies(t *testing.T) {
	r := newTestEngine()
	r.Use(RateLimitMiddleware(&fakeLimiter{allow: false}, 10, time.Minute, slog.Default()))
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestRateLimitMiddlewareFailOpenOnError(t *testing.T) {
	r := newTestEngine()
	r.Use(RateLimitMiddleware(&fakeLimiter{allow: false, err: context.DeadlineExceeded}, 10, time.Minute, slog.Default()))
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", w.Code)
	}
}
