// Package rest serves the read-only presentation API: the current
// snapshot, its flattened devices, the recent change feed, a manual
// rescan hook, health and Prometheus metrics.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"usbspeed/internal/application/monitor"
	"usbspeed/internal/domain/snapshot"
)

// Monitor is the part of the engine the API reads from.
type Monitor interface {
	Current() *snapshot.Snapshot
	RecentN(n int) []monitor.ChangeEvent
	Subscribe(buf int) (<-chan monitor.ChangeEvent, func())
	Signal(sig monitor.Signal)
}

// HTTPRecorder records one served request.
type HTTPRecorder interface {
	RecordHTTP(method, route string, status int, duration time.Duration)
}

// RouterParams holds the router's collaborators. Metrics and
// MetricsHandler are optional.
type RouterParams struct {
	Monitor        Monitor
	Metrics        HTTPRecorder
	MetricsHandler http.Handler
	Logger         *zap.Logger
	AllowedOrigins []string
	Now            func() time.Time
}

// Router creates and configures the HTTP router
type Router struct {
	monitor        Monitor
	metrics        HTTPRecorder
	metricsHandler http.Handler
	logger         *zap.Logger
	allowedOrigins []string
	now            func() time.Time
	started        time.Time
}

// NewRouter creates a new router instance
func NewRouter(p RouterParams) *Router {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if len(p.AllowedOrigins) == 0 {
		p.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	return &Router{
		monitor:        p.Monitor,
		metrics:        p.Metrics,
		metricsHandler: p.MetricsHandler,
		logger:         p.Logger.Named("http"),
		allowedOrigins: p.AllowedOrigins,
		now:            p.Now,
		started:        p.Now(),
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(Metrics(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/healthz", rt.health)
	if rt.metricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", rt.metricsHandler)
	}

	handler := &Handler{monitor: rt.monitor, logger: rt.logger, now: rt.now}
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshot", handler.GetSnapshot)
		r.Get("/devices", handler.ListDevices)
		r.Get("/changes", handler.ListChanges)
		r.Get("/changes/stream", handler.StreamChanges)
		r.Post("/rescan", handler.Rescan)
	})

	return router
}

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Uptime    string     `json:"uptime"`
	Devices   int        `json:"devices"`
	LastScan  *time.Time `json:"last_scan,omitempty"`
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	now := rt.now()
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: now.UTC(),
		Uptime:    now.Sub(rt.started).Round(time.Second).String(),
	}
	if current := rt.monitor.Current(); current != nil {
		resp.Devices = current.Len()
		if at := current.TakenAt(); !at.IsZero() {
			at = at.UTC()
			resp.LastScan = &at
		}
	}
	Success(w, http.StatusOK, resp)
}
