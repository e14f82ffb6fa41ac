package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/handler"
	"github.com/courseloom/courseloom/internal/service"
	"github.com/google/uuid"
)

// CheckoutHandler exposes checkout initiation to the storefront.
type CheckoutHandler struct {
	checkouts service.CheckoutService
	logger    *slog.Logger
}

// NewCheckoutHandler creates a checkout API handler.
func NewCheckoutHandler(checkouts service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		logger:    logger,
	}
}

type checkoutRequest struct {
	TenantID     string `json:"tenant_id"`
	MembershipID string `json:"membership_id"`
	ProductTitle string `json:"product_title"`
	ProductType  string `json:"product_type"`
	Origin       string `json:"origin"`
}

type checkoutResponse struct {
	InvoiceID   string `json:"invoice_id,omitempty"`
	Provider    string `json:"provider,omitempty"`
	PaymentID   string `json:"payment_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`

	// Activated is true when a free plan was granted with no payment.
	Activated bool `json:"activated"`
}

// HandleInitiate processes POST /api/checkout.
func (h *CheckoutHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("checkout.initiate", "invalid JSON body"))
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("checkout.initiate", "invalid tenant id"))
		return
	}
	membershipID, err := uuid.Parse(req.MembershipID)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("checkout.initiate", "invalid membership id"))
		return
	}
	if req.Origin == "" {
		handler.ErrorResponse(w, r, domain.Invalid("checkout.initiate", "origin is required"))
		return
	}

	result, err := h.checkouts.InitiateCheckout(r.Context(), service.InitiateCheckoutParams{
		TenantID:     tenantID,
		MembershipID: membershipID,
		Product: domain.Product{
			Title: req.ProductTitle,
			Type:  domain.ProductType(req.ProductType),
		},
		Origin: req.Origin,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := checkoutResponse{
		InvoiceID: result.InvoiceID,
		Provider:  result.Provider,
		Activated: result.Provider == "",
	}
	if result.Handle != nil {
		resp.PaymentID = result.Handle.ID
		resp.RedirectURL = result.Handle.RedirectURL
	}

	handler.RespondJSON(w, http.StatusOK, resp)
}
