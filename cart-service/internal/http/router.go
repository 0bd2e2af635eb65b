package http

import (
	"net/http"
	"time"

	"github.com/fjod/pos_cart/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter mounts the cart and delivery APIs under /api/v1 along with
// /health and /metrics.
func NewRouter(cfg RouterConfig, carts *CartHandler, deliveries *DeliveryHandler, health http.HandlerFunc, m *metrics.Metrics, l *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(l, m))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/carts", func(r chi.Router) {
			r.Post("/", carts.CreateCart)
			r.Route("/{cart_id}", func(r chi.Router) {
				r.Get("/", carts.GetCart)
				r.Post("/lineItems", carts.AddItems)
				r.Patch("/lineItems/{line_no}/quantity", carts.UpdateQuantity)
				r.Patch("/lineItems/{line_no}/unitPrice", carts.UpdateUnitPrice)
				r.Post("/lineItems/{line_no}/cancel", carts.CancelLineItem)
				r.Post("/lineItems/{line_no}/discounts", carts.AddLineDiscounts)
				r.Post("/subtotal", carts.Subtotal)
				r.Post("/discounts", carts.AddCartDiscounts)
				r.Post("/payments", carts.AddPayments)
				r.Post("/bill", carts.Bill)
				r.Post("/cancel", carts.CancelTransaction)
				r.Post("/resume-item-entry", carts.ResumeItemEntry)
			})
		})
		r.Route("/deliveries", func(r chi.Router) {
			r.Post("/recovery", deliveries.Sweep)
			r.Get("/{event_id}", deliveries.GetDelivery)
			r.Put("/{event_id}/services/{service}", deliveries.Acknowledge)
		})
	})

	return r
}

// HealthHandler answers 503 until every check passes.
func HealthHandler(checks map[string]func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(r); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		respondJSON(w, code, status)
	}
}
