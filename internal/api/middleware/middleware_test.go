package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "203.0.113.9:12345"
	r.ServeHTTP(w, req)
	return w
}

func TestLoggerSetsRequestID(t *testing.T) {
	r := newRouter(Logger())
	w := get(r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	// Each request gets a fresh id.
	if a, b := get(r).Header().Get("X-Request-ID"), get(r).Header().Get("X-Request-ID"); a == b {
		t.Error("request ids repeat")
	}
}

func TestRateLimitEnforcesBurst(t *testing.T) {
	r := newRouter(RateLimit(RateLimitConfig{PerMinute: 60, Burst: 3}))

	for i := 0; i < 3; i++ {
		if w := get(r); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
	if w := get(r); w.Code != http.StatusTooManyRequests {
		t.Errorf("status after burst = %d, want 429", w.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	r := newRouter(RateLimit(RateLimitConfig{PerMinute: 0}))
	for i := 0; i < 20; i++ {
		if w := get(r); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d with limiting disabled", i, w.Code)
		}
	}
}

func TestCORSHeaders(t *testing.T) {
	r := newRouter(CORS(CORSConfig{AllowAllOrigins: true}))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://example.com")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("Access-Control-Allow-Origin missing")
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS(CORSConfig{AllowAllOrigins: true}))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}
