package router

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"imgopt/internal/config"
	"imgopt/internal/handlers"
	"imgopt/internal/middleware"
	"imgopt/internal/telemetry"
)

// RouterDependencies holds everything needed to register routes.
type RouterDependencies struct {
	Cfg          *config.Config
	Logger       *slog.Logger
	ImageHandler *handlers.ImageHandler
	Limiter      *middleware.IPRateLimiter
	Tracer       trace.Tracer
	Metrics      *telemetry.Metrics
	Prometheus   http.Handler
	StartedAt    time.Time
}

func NewRouter(deps RouterDependencies) http.Handler {
	appMux := http.NewServeMux()

	// the single user-facing route: every variant request carries its
	// parameters in the query string
	appMux.Handle("GET "+deps.Cfg.Optimizer.HandlerPath, deps.ImageHandler)

	appMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	middlewareStack := []middleware.Middleware{
		middleware.Recover(deps.Logger),
	}

	if deps.Cfg.Metrics.EnableTelemetry {
		// order matters so don't append
		middlewareStack = append(middlewareStack, middleware.Observability(deps.Tracer, deps.Metrics, deps.Logger))
	} else {
		middlewareStack = append(middlewareStack, middleware.Logger(deps.Logger))
	}

	middlewareStack = append(middlewareStack, deps.Limiter.Middleware(deps.Logger))

	appHandler := middleware.Chain(appMux, middlewareStack...)

	rootMux := http.NewServeMux()

	if deps.Prometheus != nil {
		rootMux.Handle("GET /metrics", deps.Prometheus)
	}

	// lightweight for docker keepalive
	rootMux.Handle("GET /healthz", handlers.HandleHealth(deps.StartedAt))

	rootMux.Handle("/", appHandler)

	return rootMux
}
