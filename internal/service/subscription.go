package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/payment"
	"github.com/courseloom/courseloom/internal/telemetry"
	"github.com/google/uuid"
)

// Subscription-specific errors
var (
	ErrNoSubscription = domain.Errorf(domain.EINVALID, "", "Membership has no subscription attached")
)

// SubscriptionService manages the recurring side of memberships against the
// tenant's gateway.
type SubscriptionService interface {
	// Cancel ends the subscription behind a membership at the gateway and
	// expires the membership.
	Cancel(ctx context.Context, gateway payment.Provider, tenantID, membershipID uuid.UUID, reason string) error

	// Reconcile checks a membership's subscription against the gateway and
	// expires the membership when the gateway no longer considers it valid.
	Reconcile(ctx context.Context, gateway payment.Provider, tenantID, membershipID uuid.UUID) error
}

type subscriptionService struct {
	store  domain.MembershipStore
	logger *slog.Logger
}

// NewSubscriptionService creates a subscription lifecycle service.
func NewSubscriptionService(store domain.MembershipStore, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		store:  store,
		logger: logger,
	}
}

// Cancel ends a membership's subscription at the gateway, then expires the
// membership locally. Gateways without cancel support surface
// payment.ErrNotImplemented to the caller untouched.
func (s *subscriptionService) Cancel(ctx context.Context, gateway payment.Provider, tenantID, membershipID uuid.UUID, reason string) error {
	membership, err := s.store.Membership(ctx, membershipID)
	if err != nil {
		return err
	}
	if membership.TenantID != tenantID {
		return domain.ErrTenantMismatch
	}
	if membership.SubscriptionID == "" {
		return ErrNoSubscription
	}

	if err := gateway.Cancel(ctx, membership.SubscriptionID); err != nil {
		if errors.Is(err, payment.ErrNotImplemented) {
			// Wrapping keeps errors.Is(err, payment.ErrNotImplemented) true
			// while the handler maps the code to 501.
			return domain.WrapError(err, domain.ENOTIMPL, "subscription.cancel",
				"gateway does not support cancellation")
		}
		return domain.WrapError(err, domain.EPAYMENT, "subscription.cancel", "gateway cancellation failed")
	}

	if err := s.store.UpdateMembershipStatus(ctx, membershipID, domain.MembershipStatusExpired); err != nil {
		return err
	}

	if telemetry.Business != nil {
		telemetry.Business.SubscriptionsCanceled.WithLabelValues(
			tenantID.String(), gateway.Name(), reason).Inc()
	}
	s.logger.Info("subscription canceled",
		"tenant_id", tenantID, "gateway", gateway.Name(),
		"membership_id", membershipID, "reason", reason)

	return nil
}

// Reconcile expires memberships whose subscriptions lapsed at the gateway
// without a webhook reaching us.
func (s *subscriptionService) Reconcile(ctx context.Context, gateway payment.Provider, tenantID, membershipID uuid.UUID) error {
	membership, err := s.store.Membership(ctx, membershipID)
	if err != nil {
		return err
	}
	if membership.TenantID != tenantID {
		return domain.ErrTenantMismatch
	}
	if membership.SubscriptionID == "" {
		return ErrNoSubscription
	}

	valid, err := gateway.ValidateSubscription(ctx, membership.SubscriptionID)
	if err != nil {
		if errors.Is(err, payment.ErrNotImplemented) {
			return domain.WrapError(err, domain.ENOTIMPL, "subscription.reconcile",
				"gateway does not support subscription validation")
		}
		return domain.WrapError(err, domain.EPAYMENT, "subscription.reconcile", "gateway validation failed")
	}

	if valid {
		return nil
	}

	if err := s.store.UpdateMembershipStatus(ctx, membershipID, domain.MembershipStatusExpired); err != nil {
		return err
	}
	s.logger.Info("membership expired by reconciliation",
		"tenant_id", tenantID, "gateway", gateway.Name(), "membership_id", membershipID)

	return nil
}
