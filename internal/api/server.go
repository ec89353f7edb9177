// Package api exposes the order router and the strategy engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/monitor"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/trace"
)

// Options are shared by both servers. Zero values disable the optional parts.
type Options struct {
	ServiceName    string
	Logger         *slog.Logger
	Metrics        *monitor.Metrics
	Registry       *prometheus.Registry
	MetricsPath    string
	Bus            *events.Bus
	Health         *Health
	JWTSecret      string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Health == nil {
		o.Health = NewHealth(true)
	}
	if o.MetricsPath == "" {
		o.MetricsPath = "/metrics"
	}
	if o.ServiceName == "" {
		o.ServiceName = "order-router"
	}
	return o
}

// newEngine builds the gin engine with the common middleware stack and the
// health, metrics and websocket routes. The returned group carries the
// per-request limits and is where API routes go.
func newEngine(opts Options, wsTopics ...events.Event) (*gin.Engine, *gin.RouterGroup) {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(Recovery(opts.Logger))                    // Panic recovery (first)
	r.Use(RequestIDMiddleware())                    // Request ID tracking
	r.Use(RequestLogger(opts.Logger, opts.Metrics)) // Request logging (after ID is set)
	r.Use(trace.Middleware(opts.ServiceName))       // Server spans
	r.Use(CORSMiddleware())                         // CORS

	r.GET("/healthz", livenessHandler)
	r.GET("/readyz", readinessHandler(opts.Health))
	if opts.Registry != nil {
		r.GET(opts.MetricsPath, gin.WrapH(monitor.Handler(opts.Registry)))
	}
	if len(wsTopics) > 0 {
		r.GET("/ws", streamEvents(opts.Bus, opts.Logger, wsTopics...))
	}

	api := r.Group("")
	api.Use(RateLimitMiddleware(opts.RateLimit, opts.RateBurst, opts.Logger))
	api.Use(TimeoutMiddleware(opts.RequestTimeout))
	return r, api
}

// NewHTTPServer wraps handler with the timeouts used by both services.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
