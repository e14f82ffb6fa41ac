package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/payment"
	"github.com/courseloom/courseloom/internal/provider"
	"github.com/courseloom/courseloom/internal/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Checkout-specific errors
var (
	ErrMembershipNotPending = domain.Errorf(domain.ECONFLICT, "", "Membership has already been activated")
)

// PaymentConfigSource loads the active gateway configuration for a tenant.
type PaymentConfigSource interface {
	ActiveConfig(ctx context.Context, tenantID pgtype.UUID) (*provider.TenantPaymentConfig, error)
}

// CheckoutService provides business logic for starting a purchase.
type CheckoutService interface {
	// InitiateCheckout resolves the tenant's gateway, records a pending
	// invoice, and opens a checkout with the provider.
	InitiateCheckout(ctx context.Context, params InitiateCheckoutParams) (*CheckoutResult, error)
}

// InitiateCheckoutParams contains parameters for starting a checkout.
type InitiateCheckoutParams struct {
	TenantID     uuid.UUID
	MembershipID uuid.UUID
	Product      domain.Product

	// Origin is the storefront origin the buyer should land back on.
	Origin string
}

// CheckoutResult is what the storefront needs to continue the purchase.
type CheckoutResult struct {
	// InvoiceID correlates the eventual webhook back to this attempt. Empty
	// for free plans.
	InvoiceID string

	// Provider is the gateway name the storefront should load, empty for
	// free plans.
	Provider string

	// Handle is nil for free plans, which activate immediately.
	Handle *payment.Handle
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	store       domain.MembershipStore
	configs     PaymentConfigSource
	factory     provider.PaymentFactory
	successPath string
	cancelPath  string
	logger      *slog.Logger
}

// NewCheckoutService creates a checkout service.
func NewCheckoutService(
	store domain.MembershipStore,
	configs PaymentConfigSource,
	factory provider.PaymentFactory,
	successPath string,
	cancelPath string,
	logger *slog.Logger,
) CheckoutService {
	return &checkoutService{
		store:       store,
		configs:     configs,
		factory:     factory,
		successPath: successPath,
		cancelPath:  cancelPath,
		logger:      logger,
	}
}

// InitiateCheckout starts a purchase for a pending membership.
func (s *checkoutService) InitiateCheckout(ctx context.Context, params InitiateCheckoutParams) (*CheckoutResult, error) {
	membership, err := s.store.Membership(ctx, params.MembershipID)
	if err != nil {
		return nil, err
	}
	if membership.Status != domain.MembershipStatusPending {
		return nil, ErrMembershipNotPending
	}
	if membership.TenantID != params.TenantID {
		return nil, domain.ErrTenantMismatch
	}

	plan := membership.Plan
	if plan == nil {
		return nil, domain.Internal(nil, "checkout.initiate", "membership has no plan")
	}

	// Free plans never touch a gateway.
	if plan.Type == domain.PlanTypeFree {
		if err := s.store.UpdateMembershipStatus(ctx, membership.ID, domain.MembershipStatusActive); err != nil {
			return nil, err
		}
		s.logger.Info("free plan membership activated",
			"tenant_id", params.TenantID, "membership_id", membership.ID)
		return &CheckoutResult{}, nil
	}

	cfg, err := s.configs.ActiveConfig(ctx, pgtype.UUID{Bytes: params.TenantID, Valid: true})
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return nil, provider.ErrNoProviderConfigured
		}
		return nil, err
	}

	gateway, err := s.factory.CreatePaymentProvider(cfg)
	if err != nil {
		return nil, err
	}

	amount, err := payment.ResolveUnitAmount(*plan)
	if err != nil {
		return nil, err
	}

	invoice := &domain.Invoice{
		ID:                  uuid.New(),
		TenantID:            membership.TenantID,
		MembershipID:        membership.ID,
		MembershipSessionID: membership.SessionID,
		Amount:              amount,
		Currency:            cfg.Currency,
		Status:              domain.InvoiceStatusPending,
		PaymentMethod:       string(cfg.Method),
	}
	if err := s.store.CreateInvoice(ctx, invoice); err != nil {
		return nil, err
	}

	handle, err := gateway.Initiate(ctx, payment.InitiateParams{
		Metadata: map[string]string{
			payment.MetadataKeyInvoiceID:    invoice.ID.String(),
			payment.MetadataKeyMembershipID: membership.ID.String(),
		},
		Plan:       *plan,
		Product:    params.Product,
		Origin:     params.Origin,
		SuccessURL: joinURL(params.Origin, s.successPath),
		CancelURL:  joinURL(params.Origin, s.cancelPath),
	})
	if err != nil {
		s.logger.Error("checkout initiation failed",
			"tenant_id", params.TenantID, "gateway", gateway.Name(), "error", err)
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.WithLabelValues(
			params.TenantID.String(), gateway.Name(), string(plan.Type)).Inc()
	}
	s.logger.Info("checkout initiated",
		"tenant_id", params.TenantID, "gateway", gateway.Name(),
		"invoice_id", invoice.ID, "plan_type", plan.Type)

	return &CheckoutResult{
		InvoiceID: invoice.ID.String(),
		Provider:  gateway.Name(),
		Handle:    handle,
	}, nil
}

// joinURL appends a path to an origin without doubling slashes.
func joinURL(origin, path string) string {
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(path, "/")
}
