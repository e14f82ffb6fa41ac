package routes

import (
	"net/http"

	"github.com/courseloom/courseloom/internal/router"
)

// RegisterAPIRoutes registers the storefront-facing payment API.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	r.Post("/api/checkout", deps.CheckoutHandler.HandleInitiate)
	r.Post("/api/memberships/{id}/cancel", deps.SubscriptionHandler.HandleCancel)
	r.Post("/api/memberships/{id}/reconcile", deps.SubscriptionHandler.HandleReconcile)
}

// RegisterOpsRoutes registers operational endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if deps.MetricsHandler != nil {
		r.Handle(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
}
