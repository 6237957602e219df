package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the page routes. instrument wraps every request for
// metrics and may be nil.
func NewRouter(handler *Handler, instrument func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	if instrument != nil {
		r.Use(instrument)
	}
	r.Use(loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", handler.readyz)
	if handler.metrics != nil {
		r.Handle("/metrics", handler.metrics)
	}
	r.Route("/api/static-paths", func(r chi.Router) {
		r.Get("/orders", handler.orderStaticPaths)
		r.Get("/products", handler.productStaticPaths)
	})

	r.Group(func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.Get("/login", handler.login)
		r.Get("/cart", handler.cart)
		r.Get("/orders", handler.orderHistory)
		r.Get("/orders/{id}", handler.orderDetail)
		r.Get("/products/{slug}", handler.productDetail)
	})
	return r
}
