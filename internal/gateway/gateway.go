// Package gateway implements the external HTTP entry point (C9): authenticate
// callers, persist PENDING task records, enqueue TaskEnvelopes, and stream
// status back to the caller, in the style of an api-gateway service
// built on a gin middleware stack.
package gateway

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/agentmind/internal/io"
	"github.com/swarmguard/agentmind/internal/store"
)

const (
	serviceName = "agentmind-gateway"
	version     = "1.0.0"
)

// Gateway wires the HTTP surface to the task store and broker.
type Gateway struct {
	Store         *store.TaskStore
	Broker        *io.Broker
	InputSubject  string
	StatusSubject string

	Auth            *AuthMiddleware
	RateLimiter     RateLimitAllower
	RateLimit       int
	RateLimitWindow time.Duration

	Logger *slog.Logger
	Now    func() time.Time
	// PollInterval controls how often HandleStream re-checks the record;
	// defaults to 1s.
	PollInterval time.Duration

	reqCounter  metric.Int64Counter
	latencyHist metric.Float64Histogram
}

// New constructs a Gateway with OTel instruments wired for request-level
// observability (request counter, latency histogram).
func New(st *store.TaskStore, broker *io.Broker, inputSubject, statusSubject string, auth *AuthMiddleware, limiter RateLimitAllower, rateLimit int, rateLimitWindow time.Duration, logger *slog.Logger) *Gateway {
	meter := otel.GetMeterProvider().Meter(serviceName)
	reqCounter, _ := meter.Int64Counter("agentmind_gateway_requests_total")
	latencyHist, _ := meter.Float64Histogram("agentmind_gateway_latency_ms")

	return &Gateway{
		Store: st, Broker: broker, InputSubject: inputSubject, StatusSubject: statusSubject,
		Auth: auth, RateLimiter: limiter, RateLimit: rateLimit, RateLimitWindow: rateLimitWindow,
		Logger: logger, Now: time.Now,
		reqCounter: reqCounter, latencyHist: latencyHist,
	}
}

func (g *Gateway) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

func (g *Gateway) streamPollInterval() time.Duration {
	if g.PollInterval <= 0 {
		return time.Second
	}
	return g.PollInterval
}

// Router builds the gin engine: logging/tracing on every route, auth and
// rate limiting on the task surface, health/version left public.
func (g *Gateway) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(g.loggingMiddleware())

	r.GET("/health", g.HandleHealth)
	r.GET("/version", g.HandleVersion)

	tasks := r.Group("/tasks")
	tasks.Use(g.Auth.RequireAuth())
	tasks.Use(RateLimitMiddleware(g.RateLimiter, g.RateLimit, g.RateLimitWindow, g.Logger))
	{
		tasks.POST("", g.HandleSubmit)
		tasks.GET("/:id", g.HandleGet)
		tasks.GET("/:id/stream", g.HandleStream)
	}

	return r
}

// loggingMiddleware traces and logs every request: request id, span,
// duration, structured log line.
func (g *Gateway) loggingMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)
	return func(c *gin.Context) {
		start := g.now()

		ctx, span := tracer.Start(c.Request.Context(), c.FullPath())
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.path", c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := float64(g.now().Sub(start).Milliseconds())
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		span.End()

		g.reqCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.Int("status", c.Writer.Status()),
		))
		g.latencyHist.Record(ctx, duration, metric.WithAttributes(
			attribute.String("path", c.FullPath()),
		))

		g.Logger.Info("gateway: request completed",
			"method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration_ms", duration,
			"remote_addr", c.ClientIP())
	}
}
