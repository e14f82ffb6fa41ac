package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/handler"
	"github.com/courseloom/courseloom/internal/provider"
	"github.com/courseloom/courseloom/internal/telemetry"
)

// LemonSqueezyHandler handles Lemon Squeezy webhook events
type LemonSqueezyHandler struct {
	deps   Deps
	logger *slog.Logger
}

// NewLemonSqueezyHandler creates a new Lemon Squeezy webhook handler
func NewLemonSqueezyHandler(deps Deps, logger *slog.Logger) *LemonSqueezyHandler {
	return &LemonSqueezyHandler{deps: deps, logger: logger}
}

// HandleWebhook processes incoming Lemon Squeezy webhook events. The
// X-Signature header carries a hex HMAC-SHA256 of the raw body keyed with the
// signing secret chosen when the webhook was registered.
func (h *LemonSqueezyHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	tenantID, err := tenantFromRequest(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	payload, err := readBody(w, r)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.lemonsqueezy", "error reading request body"))
		return
	}

	cfg, err := loadGatewayConfig(r.Context(), h.deps.Configs, tenantID, provider.PaymentMethodLemonSqueezy)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	secret := configString(cfg.Config, "lemonsqueezy_webhook_secret")
	if !verifyLemonSqueezySignature(payload, r.Header.Get("X-Signature"), secret) {
		h.logger.Warn("lemonsqueezy webhook signature verification failed", "tenant_id", tenantID)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.lemonsqueezy", "invalid signature"))
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

// verifyLemonSqueezySignature checks the hex HMAC-SHA256 signature.
func verifyLemonSqueezySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
