package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, ip string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = ip + ":40000"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_BlocksAfterBudget(t *testing.T) {
	r := limitedRouter(NewRateLimiter(3, time.Minute))

	for i := 0; i < 3; i++ {
		if code := hit(r, "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, code)
		}
	}
	if code := hit(r, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after budget, got %d", code)
	}
}

func TestRateLimiter_BucketsPerIP(t *testing.T) {
	r := limitedRouter(NewRateLimiter(1, time.Minute))

	if code := hit(r, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first IP first request: got %d", code)
	}
	if code := hit(r, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("first IP second request: got %d", code)
	}
	// A different client is unaffected by the exhausted bucket.
	if code := hit(r, "10.0.0.2"); code != http.StatusOK {
		t.Fatalf("second IP: got %d", code)
	}
}
