package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	promhandler "github.com/nextlogic/remix-api/internal/handler/prometheus"
	"github.com/nextlogic/remix-api/internal/middleware"
)

type routes func(*gin.RouterGroup)

func (f routes) RegisterRoutes(g *gin.RouterGroup) { f(g) }

func newTestRouter(config RouterConfig) *gin.Engine {
	api := routes(func(g *gin.RouterGroup) {
		g.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		g.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.POST(StripeWebhookPath, func(c *gin.Context) { c.Status(http.StatusOK) })
		g.GET("/panic", func(c *gin.Context) { panic("boom") })
	})
	health := routes(func(g *gin.RouterGroup) {
		g.GET("/health/live", func(c *gin.Context) { c.String(http.StatusOK, "UP") })
	})

	r := NewRouter(config, health, promhandler.New("test", prometheus.NewRegistry()), api)
	r.Setup()
	return r.Engine()
}

func serve(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRoutesMountedTwice(t *testing.T) {
	e := newTestRouter(RouterConfig{CORSConfig: middleware.DefaultCORSConfig(nil)})

	for _, path := range []string{"/ping", "/api/ping"} {
		w := serve(e, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "pong", w.Body.String())
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	}

	w := serve(e, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestRouter(RouterConfig{})
	serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",path="/ping",status="200"} 1`)
}

func TestPanicRecovered(t *testing.T) {
	e := newTestRouter(RouterConfig{})

	w := serve(e, httptest.NewRequest(http.MethodGet, "/api/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestBodyLimitSkipsWebhook(t *testing.T) {
	e := newTestRouter(RouterConfig{MaxBodyBytes: 8})
	big := strings.Repeat("x", 64)

	w := serve(e, httptest.NewRequest(http.MethodPost, "/api/echo", bytes.NewBufferString(big)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	for _, path := range []string{StripeWebhookPath, "/api" + StripeWebhookPath} {
		w = serve(e, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(big)))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestRouter(RouterConfig{RateLimitEnabled: true, RateLimit: 1, RateBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// health checks are not limited
	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
}
