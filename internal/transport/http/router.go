package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter wires all HTTP surfaces: checkout, cart, orders, health and
// metrics.
func NewRouter(
	checkout CheckoutRunner,
	carts CartService,
	orders OrderReader,
	gatherer prometheus.Gatherer,
	requestTimeout time.Duration,
) chi.Router {
	checkoutHandler := NewCheckoutHandler(checkout, requestTimeout)
	cartHandler := NewCartHandler(carts, requestTimeout)
	ordersHandler := NewOrdersHandler(orders, requestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(CustomerAuthMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "checkout-http")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", checkoutHandler.Checkout)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddLine)
			r.Delete("/items/{sku}", cartHandler.RemoveLine)
			r.Delete("/", cartHandler.ClearCart)
		})
		r.Get("/orders/{order_id}", ordersHandler.GetOrder)
	})

	return r
}
