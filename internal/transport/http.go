package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wanderhub/checkout-service/internal/catalog"
	"github.com/wanderhub/checkout-service/internal/checkout"
	"github.com/wanderhub/checkout-service/internal/handler"
	"github.com/wanderhub/checkout-service/internal/order"
	"github.com/wanderhub/checkout-service/internal/promo"
	"github.com/wanderhub/checkout-service/pkg/metrics"
)

func NewRouter(pool *pgxpool.Pool) *chi.Mux {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	catalogReader := catalog.NewReader(pool)
	promoResolver := promo.NewResolver(pool)
	cartValidator := checkout.NewValidator(catalogReader, promoResolver)

	repo := order.NewRepository(pool)
	svc := order.NewService(repo, cartValidator, m)
	h := handler.NewOrderHandler(svc)

	r := chi.NewRouter()
	r.Use(m.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	r.Post("/cart/validate", h.ValidateCart)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/stats", h.GetStats)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}", h.UpdateOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Patch("/{id}/status", h.UpdateOrderStatus)
	})

	return r
}
