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

// PaymentService applies verified gateway events to memberships and invoices.
type PaymentService interface {
	// ProcessEvent runs one webhook event through the gateway's verification
	// and records the outcome. Safe to call repeatedly with the same event.
	ProcessEvent(ctx context.Context, gateway payment.Provider, tenantID uuid.UUID, event []byte) error
}

type paymentService struct {
	store  domain.MembershipStore
	logger *slog.Logger
}

// NewPaymentService creates a payment event processor.
func NewPaymentService(store domain.MembershipStore, logger *slog.Logger) PaymentService {
	return &paymentService{
		store:  store,
		logger: logger,
	}
}

// ProcessEvent verifies the event and, when it confirms a payment, marks the
// correlated invoice paid and activates its membership.
func (s *paymentService) ProcessEvent(ctx context.Context, gateway payment.Provider, tenantID uuid.UUID, event []byte) error {
	tenant := tenantID.String()
	name := gateway.Name()

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(tenant, name).Inc()
	}

	verified, err := gateway.Verify(ctx, event)
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(tenant, name, "verify_error").Inc()
		}
		return err
	}
	if !verified {
		// Lifecycle events the adapter handled internally, or noise.
		if telemetry.Business != nil {
			telemetry.Business.WebhookProcessed.WithLabelValues(tenant, name).Inc()
		}
		return nil
	}

	identifier, err := gateway.PaymentIdentifier(event)
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(tenant, name, "identifier_error").Inc()
		}
		return err
	}

	invoiceID, err := uuid.Parse(identifier)
	if err != nil {
		// A confirmed payment we never initiated, e.g. a charge made directly
		// in the gateway dashboard. Acknowledge and move on.
		s.logger.Warn("verified payment without invoice correlation",
			"tenant_id", tenant, "gateway", name, "identifier", identifier)
		if telemetry.Business != nil {
			telemetry.Business.WebhookProcessed.WithLabelValues(tenant, name).Inc()
		}
		return nil
	}

	if err := s.store.MarkInvoicePaid(ctx, invoiceID, identifier); err != nil {
		if errors.Is(err, domain.ErrPaymentAlreadyProcessed) {
			s.logger.Info("duplicate payment event acknowledged",
				"tenant_id", tenant, "gateway", name, "invoice_id", invoiceID)
			if telemetry.Business != nil {
				telemetry.Business.WebhookProcessed.WithLabelValues(tenant, name).Inc()
			}
			return nil
		}
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(tenant, name, "invoice_update_failed").Inc()
		}
		return err
	}

	invoice, err := s.store.Invoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	if err := s.store.UpdateMembershipStatus(ctx, invoice.MembershipID, domain.MembershipStatusActive); err != nil {
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(tenant, name, "membership_update_failed").Inc()
		}
		return err
	}

	if subID, err := gateway.SubscriptionID(event); err == nil && subID != "" {
		if err := s.store.SetMembershipSubscription(ctx, invoice.MembershipID, subID); err != nil {
			// The payment is already recorded; losing the subscription link is
			// recoverable on the next recurring event.
			s.logger.Error("failed to record subscription id",
				"tenant_id", tenant, "gateway", name,
				"membership_id", invoice.MembershipID, "error", err)
		}
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentSucceeded.WithLabelValues(tenant, name).Inc()
		telemetry.Business.RevenueCollected.WithLabelValues(tenant, name, invoice.Currency).Add(invoice.Amount)
		telemetry.Business.WebhookProcessed.WithLabelValues(tenant, name).Inc()
	}
	s.logger.Info("payment recorded",
		"tenant_id", tenant, "gateway", name,
		"invoice_id", invoiceID, "membership_id", invoice.MembershipID)

	return nil
}
