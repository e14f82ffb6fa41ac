package routes

import (
	"github.com/courseloom/courseloom/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
// These routes handle incoming callbacks from payment gateways.
//
// Note: Webhook routes do NOT have authentication middleware.
// Each webhook handler is responsible for verifying the request
// signature against the tenant's signing secret.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe/{tenant_id}", deps.StripeHandler.HandleWebhook)
	r.Post("/webhooks/razorpay/{tenant_id}", deps.RazorpayHandler.HandleWebhook)
	r.Post("/webhooks/lemonsqueezy/{tenant_id}", deps.LemonSqueezyHandler.HandleWebhook)
	r.Post("/webhooks/mercadopago/{tenant_id}", deps.MercadoPagoHandler.HandleWebhook)
}
