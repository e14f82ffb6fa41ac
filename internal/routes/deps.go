package routes

import (
	"net/http"

	"github.com/courseloom/courseloom/internal/handler/api"
	"github.com/courseloom/courseloom/internal/handler/webhook"
)

// APIDeps contains dependencies for API routes
type APIDeps struct {
	CheckoutHandler     *api.CheckoutHandler
	SubscriptionHandler *api.SubscriptionHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler       *webhook.StripeHandler
	RazorpayHandler     *webhook.RazorpayHandler
	LemonSqueezyHandler *webhook.LemonSqueezyHandler
	MercadoPagoHandler  *webhook.MercadoPagoHandler
}

// OpsDeps contains dependencies for operational routes
type OpsDeps struct {
	MetricsHandler http.Handler
}
