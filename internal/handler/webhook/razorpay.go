package webhook

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/handler"
	"github.com/courseloom/courseloom/internal/provider"
	"github.com/courseloom/courseloom/internal/telemetry"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayHandler handles Razorpay webhook events
type RazorpayHandler struct {
	deps   Deps
	logger *slog.Logger
}

// NewRazorpayHandler creates a new Razorpay webhook handler
func NewRazorpayHandler(deps Deps, logger *slog.Logger) *RazorpayHandler {
	return &RazorpayHandler{deps: deps, logger: logger}
}

// HandleWebhook processes incoming Razorpay webhook events. Razorpay signs
// the raw body with the webhook secret; the signature arrives in
// X-Razorpay-Signature.
func (h *RazorpayHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	tenantID, err := tenantFromRequest(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	payload, err := readBody(w, r)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.razorpay", "error reading request body"))
		return
	}

	cfg, err := loadGatewayConfig(r.Context(), h.deps.Configs, tenantID, provider.PaymentMethodRazorpay)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	secret := configString(cfg.Config, "razorpay_webhook_secret")
	signature := r.Header.Get("X-Razorpay-Signature")
	if !utils.VerifyWebhookSignature(string(payload), signature, secret) {
		h.logger.Warn("razorpay webhook signature verification failed", "tenant_id", tenantID)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.razorpay", "invalid signature"))
		return
	}

	gateway, err := h.deps.Factory.CreatePaymentProvider(cfg)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.deps.Payments.ProcessEvent(r.Context(), gateway, tenantID, payload); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookLatency.WithLabelValues(
			tenantID.String(), gateway.Name()).Observe(time.Since(start).Seconds())
	}
	w.WriteHeader(http.StatusOK)
}
