package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nextlogic/remix-api/internal/handler"
	promhandler "github.com/nextlogic/remix-api/internal/handler/prometheus"
	"github.com/nextlogic/remix-api/internal/middleware"
)

// StripeWebhookPath is exempt from the body size limit; Stripe controls its payloads.
const StripeWebhookPath = "/webhooks/stripe"

// apiPrefixes mounts every API route twice: at the root and under /api.
var apiPrefixes = []string{"", "/api"}

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine   *gin.Engine
	health   Handler
	metrics  *promhandler.Handler
	handlers []Handler
	limiter  *middleware.RateLimiter
}

type RouterConfig struct {
	RequestTimeout   time.Duration
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	Security         middleware.SecurityConfig
	MaxBodyBytes     int64
}

func NewRouter(config RouterConfig, health Handler, metrics *promhandler.Handler, handlers ...Handler) *Router {
	gin.SetMode(gin.ReleaseMode)
	handler.UseJSONFieldNames()

	engine := gin.New()

	r := &Router{
		engine:   engine,
		health:   health,
		metrics:  metrics,
		handlers: handlers,
	}
	if config.RateLimitEnabled {
		r.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
	}

	timeout := middleware.DefaultTimeoutConfig()
	if config.RequestTimeout > 0 {
		timeout.Duration = config.RequestTimeout
	}

	skip := make([]string, 0, len(apiPrefixes))
	for _, p := range apiPrefixes {
		skip = append(skip, p+StripeWebhookPath)
	}

	// ErrorHandler sits inside Recovery and Logger so the logged status is the final one.
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		metrics.Middleware(),
		middleware.Timeout(timeout),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(config.Security),
		middleware.SizeLimit(middleware.SizeLimitConfig{
			MaxBodySize: config.MaxBodyBytes,
			SkipPaths:   skip,
		}),
	)

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(&r.engine.RouterGroup)
	r.engine.GET("/metrics", r.metrics.Handler())

	for _, prefix := range apiPrefixes {
		api := r.engine.Group(prefix)
		if r.limiter != nil {
			api.Use(r.limiter.RateLimit())
		}
		api.Use(middleware.NoStore())

		for _, h := range r.handlers {
			h.RegisterRoutes(api)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
