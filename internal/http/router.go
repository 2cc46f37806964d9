package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/storefront-checkout/internal/metrics"
	"github.com/fjod/storefront-checkout/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Checkout           service.CheckoutService
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	Gatherer           prometheus.Gatherer
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter builds the checkout API.
func NewRouter(cfg RouterConfig) http.Handler {
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.RequestTimeout, cfg.MaxRequestBodySize)
	ordersHandler := NewOrdersHandler(cfg.Checkout, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(LoggerMiddleware(cfg.Logger))
	}
	r.Use(RequestIDMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer))
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.With(MetricsMiddleware(cfg.Metrics, "checkout")).Post("/checkout", checkoutHandler.Checkout)
		r.With(MetricsMiddleware(cfg.Metrics, "get_order")).Get("/orders/{order_id}", ordersHandler.GetOrder)
	})

	return otelhttp.NewHandler(r, "checkout-api")
}
