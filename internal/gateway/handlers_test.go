package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/swarmguard/agentmind/internal/task"
)

func TestStatusString(t *testing.T) {
	if statusString(http.StatusOK) != "healthy" {
		t.Fatalf("expected healthy for 200")
	}
	if statusString(http.StatusServiceUnavailable) != "degraded" {
		t.Fatalf("expected degraded for 503")
	}
}

func TestRecordToJSON(t *testing.T) {
	rec := task.NewRecord("corr-1", "user-1", "find pandas", 5, 1000)
	rec.Status = task.StateInProgress
	rec.Tick = 2

	out := recordToJSON(rec)
	if out["correlation_id"] != "corr-1" {
		t.Errorf("expected correlation_id corr-1, got %v", out["correlation_id"])
	}
	if out["status"] != "IN_PROGRESS" {
		t.Errorf("expected IN_PROGRESS, got %v", out["status"])
	}
	if out["tick"] != 2 {
		t.Errorf("expected tick 2, got %v", out["tick"])
	}
}

func TestRateLimitKeyPrefersUser(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/t", nil)
	c.Set(ContextKeyUserID, "user-7")

	if got := rateLimitKey(c); got != "user:user-7" {
		t.Fatalf("expected user:user-7, got %q", got)
	}
}

func TestRateLimitKeyFallsBackToIP(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	c.Request = req

	got := rateLimitKey(c)
	if got == "" || got[:3] != "ip:" {
		t.Fatalf("expected ip: prefix, got %q", got)
	}
}
