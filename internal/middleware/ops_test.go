package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func opsRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ops/metrics", RequireOpsToken(secret), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hitOps(r *gin.Engine, token string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ops/metrics", nil)
	if token != "" {
		req.Header.Set(HeaderOpsToken, token)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireOpsToken_MatchingSecretPasses(t *testing.T) {
	r := opsRouter("s3cret")

	if code := hitOps(r, "s3cret"); code != http.StatusOK {
		t.Fatalf("expected 200 with matching token, got %d", code)
	}
}

func TestRequireOpsToken_RejectsWrongOrMissingToken(t *testing.T) {
	r := opsRouter("s3cret")

	if code := hitOps(r, "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", code)
	}
	if code := hitOps(r, ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", code)
	}
}

func TestRequireOpsToken_UnconfiguredSecretHidesRoute(t *testing.T) {
	r := opsRouter("")

	// Without OPS_TOKEN set, the route should not reveal its existence.
	if code := hitOps(r, "anything"); code != http.StatusNotFound {
		t.Fatalf("expected 404 when no secret configured, got %d", code)
	}
}
