package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/booking"
	"github.com/hackgods/service-provider-scheduling/internal/catalog"
)

type RouterConfig struct {
	Scheduling *booking.Service
	Catalog    *catalog.Catalog
	Logger     *zap.Logger
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	// PgPool and Redis are optional, health reports them as disabled.
	PgPool         Pinger
	Redis          *redis.Client
	Env            string
	Version        string
	AdminJWTSecret string
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	d := handlerDeps{
		scheduling: cfg.Scheduling,
		catalog:    cfg.Catalog,
		logger:     logger,
		validate:   newRequestValidator(),
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Route("/api/services", func(r chi.Router) {
			r.Get("/product/{product}", servicesForProductHandler(d))
			r.Post("/check-availability", checkAvailabilityHandler(d))
			r.Get("/available-slots", availableSlotsHandler(d))
			r.Post("/available-slots", availableSlotsHandler(d))
			r.Get("/providers/{provider}", providerDetailHandler(d, "provider"))
			r.Post("/calculate-cost", calculateCostHandler(d))
			r.Post("/bookings", claimSlotHandler(d))
			r.Get("/bookings/{id}", getBookingHandler(d))
		})

		r.Route("/admin/service-management", func(r chi.Router) {
			if cfg.AdminJWTSecret != "" {
				r.Use(AdminJWT(cfg.AdminJWTSecret))
			}

			r.Get("/", listProvidersHandler(d))
			r.Post("/", createProviderHandler(d))

			r.Get("/services", listServicesHandler(d))
			r.Post("/services", createServiceHandler(d))

			r.Post("/bookings/{id}/start", startBookingHandler(d))
			r.Post("/bookings/{id}/complete", completeBookingHandler(d))
			r.Post("/bookings/{id}/cancel", cancelBookingHandler(d))

			r.Get("/{id}", providerDetailHandler(d, "id"))
			r.Delete("/{id}", deleteProviderHandler(d))
			r.Put("/{id}/working-hours", updateWorkingHoursHandler(d))
			r.Put("/{id}/availability-status", updateAvailabilityStatusHandler(d))
			r.Get("/{id}/schedule", scheduleHandler(d))
			r.Put("/{id}/services", assignServicesHandler(d))
		})
	})

	return r
}
