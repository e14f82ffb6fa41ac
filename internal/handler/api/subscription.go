package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/handler"
	"github.com/courseloom/courseloom/internal/payment"
	"github.com/courseloom/courseloom/internal/provider"
	"github.com/courseloom/courseloom/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// SubscriptionHandler exposes subscription cancellation and reconciliation.
type SubscriptionHandler struct {
	configs       service.PaymentConfigSource
	factory       provider.PaymentFactory
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewSubscriptionHandler creates a subscription API handler.
func NewSubscriptionHandler(
	configs service.PaymentConfigSource,
	factory provider.PaymentFactory,
	subscriptions service.SubscriptionService,
	logger *slog.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		configs:       configs,
		factory:       factory,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

type subscriptionRequest struct {
	TenantID string `json:"tenant_id"`
	Reason   string `json:"reason,omitempty"`
}

// resolveGateway parses the request and builds the tenant's gateway.
func (h *SubscriptionHandler) resolveGateway(r *http.Request) (payment.Provider, uuid.UUID, uuid.UUID, error) {
	membershipID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, domain.Invalid("subscription.request", "invalid membership id")
	}

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, uuid.Nil, uuid.Nil, domain.Invalid("subscription.request", "invalid JSON body")
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, domain.Invalid("subscription.request", "invalid tenant id")
	}

	cfg, err := h.configs.ActiveConfig(r.Context(), pgtype.UUID{Bytes: tenantID, Valid: true})
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, err
	}
	gateway, err := h.factory.CreatePaymentProvider(cfg)
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, err
	}

	return gateway, tenantID, membershipID, nil
}

// HandleCancel processes POST /api/memberships/{id}/cancel.
func (h *SubscriptionHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	gateway, tenantID, membershipID, err := h.resolveGateway(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.subscriptions.Cancel(r.Context(), gateway, tenantID, membershipID, "user_request"); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

// HandleReconcile processes POST /api/memberships/{id}/reconcile.
func (h *SubscriptionHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	gateway, tenantID, membershipID, err := h.resolveGateway(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.subscriptions.Reconcile(r.Context(), gateway, tenantID, membershipID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "reconciled"})
}
