package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MembershipStatus tracks a buyer's access to a course or community.
type MembershipStatus string

const (
	MembershipStatusPending MembershipStatus = "pending"
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusExpired MembershipStatus = "expired"
)

// Membership grants one user access to one entity (course or community) under
// one payment plan. SessionID groups the recurring charges belonging to one
// subscription lifecycle: when a subscription is cancelled and later re-bought,
// the new purchase gets a fresh session so old invoices don't count against
// the new plan's installment cap.
type Membership struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	UserID     uuid.UUID
	EntityID   string
	EntityType ProductType
	PlanID     uuid.UUID

	// Plan is the joined payment plan. Stores populate it on reads that the
	// payment layer performs lifecycle decisions against.
	Plan *PaymentPlan

	// SubscriptionID is the provider's identifier for the recurring charge
	// backing this membership. Empty for one-time and free plans.
	SubscriptionID string

	// SessionID groups invoices belonging to this subscription lifecycle.
	SessionID string

	Status    MembershipStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InvoiceStatus tracks one charge attempt.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusFailed  InvoiceStatus = "failed"
)

// Invoice records one charge attempt tied to a membership session.
type Invoice struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	MembershipID        uuid.UUID
	MembershipSessionID string
	Amount              float64
	Currency            string
	Status              InvoiceStatus

	// ProviderPaymentID is the processor's identifier for the settled charge,
	// recorded at webhook time.
	ProviderPaymentID string

	// PaymentMethod names the processor that collected the charge.
	PaymentMethod string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MembershipStore is the persistence boundary the payment core reads
// memberships and invoices through. Implemented by postgres.MembershipStore.
type MembershipStore interface {
	// Membership loads a membership with its payment plan joined.
	Membership(ctx context.Context, id uuid.UUID) (*Membership, error)

	// MembershipBySubscription looks a membership up by the provider's
	// subscription identifier. Used by webhook reconciliation for recurring
	// events that carry no caller metadata.
	MembershipBySubscription(ctx context.Context, subscriptionID string) (*Membership, error)

	// UpdateMembershipStatus transitions a membership's status.
	UpdateMembershipStatus(ctx context.Context, id uuid.UUID, status MembershipStatus) error

	// SetMembershipSubscription records the provider subscription id for a
	// membership once the first recurring webhook arrives.
	SetMembershipSubscription(ctx context.Context, id uuid.UUID, subscriptionID string) error

	// CountPaidInvoices counts invoices with status paid for one membership
	// session. This is the EMI installment counter.
	CountPaidInvoices(ctx context.Context, sessionID string) (int, error)

	// CreateInvoice persists a new pending invoice.
	CreateInvoice(ctx context.Context, inv *Invoice) error

	// Invoice loads an invoice by id.
	Invoice(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// MarkInvoicePaid transitions an invoice to paid with the provider's
	// payment identifier. Returns ErrPaymentAlreadyProcessed if the invoice
	// is already paid (webhook retries are expected).
	MarkInvoicePaid(ctx context.Context, id uuid.UUID, providerPaymentID string) error
}
