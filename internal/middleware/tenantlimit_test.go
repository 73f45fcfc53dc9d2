package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/config"
	"github.com/costwatch/costwatch/internal/ratelimit"
	"github.com/costwatch/costwatch/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func rateLimitedRouter(maxRequests, burst int) *gin.Engine {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), &config.RateLimitConfig{
		MaxRequests: maxRequests,
		Window:      time.Minute,
		Burst:       burst,
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextTenantID, "acme")
	})
	r.Use(TenantRateLimit(limiter))
	r.POST("/usage", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestTenantRateLimitHeadersOnSuccess(t *testing.T) {
	r := rateLimitedRouter(10, 2)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/usage", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, expected 201", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "12" {
		t.Errorf("X-RateLimit-Limit = %q, expected 12", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "11" {
		t.Errorf("X-RateLimit-Remaining = %q, expected 11", got)
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset should always be set")
	}
	if w.Header().Get("Retry-After") != "" {
		t.Error("Retry-After must only appear on denials")
	}
}

func TestTenantRateLimitDenial(t *testing.T) {
	r := rateLimitedRouter(2, 0)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest("POST", "/usage", nil))
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, expected 429", last.Code)
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, expected 0", got)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("denials must carry Retry-After")
	}

	var body response.ErrorBody
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Error.Code != response.CodeRateLimited {
		t.Errorf("error code = %s, expected %s", body.Error.Code, response.CodeRateLimited)
	}
}

func TestTenantRateLimitSkipsWithoutTenant(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), &config.RateLimitConfig{
		MaxRequests: 1,
		Window:      time.Minute,
	})
	r := gin.New()
	r.Use(TenantRateLimit(limiter))
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/open", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, tenant-less requests bypass the limiter", i, w.Code)
		}
	}
}
