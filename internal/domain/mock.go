package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockMembershipStore is an in-memory MembershipStore for testing.
type MockMembershipStore struct {
	// Memberships indexes memberships by id
	Memberships map[uuid.UUID]*Membership

	// Invoices indexes invoices by id
	Invoices map[uuid.UUID]*Invoice

	// PaidInvoiceCounts maps membership session id to paid invoice count
	PaidInvoiceCounts map[string]int

	// CountPaidInvoicesFunc allows customizing paid invoice counting
	CountPaidInvoicesFunc func(ctx context.Context, sessionID string) (int, error)

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockMembershipStore creates an empty in-memory store.
func NewMockMembershipStore() *MockMembershipStore {
	return &MockMembershipStore{
		Memberships:       make(map[uuid.UUID]*Membership),
		Invoices:          make(map[uuid.UUID]*Invoice),
		PaidInvoiceCounts: make(map[string]int),
		CallLog:           []string{},
	}
}

// Membership returns the stored membership or ENOTFOUND.
func (m *MockMembershipStore) Membership(ctx context.Context, id uuid.UUID) (*Membership, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Membership(%s)", id))

	membership, exists := m.Memberships[id]
	if !exists {
		return nil, NotFound("mock.membership", "membership", id.String())
	}
	return membership, nil
}

// MembershipBySubscription scans for a membership with the subscription id.
func (m *MockMembershipStore) MembershipBySubscription(ctx context.Context, subscriptionID string) (*Membership, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("MembershipBySubscription(%s)", subscriptionID))

	for _, membership := range m.Memberships {
		if membership.SubscriptionID == subscriptionID {
			return membership, nil
		}
	}
	return nil, NotFound("mock.membership_by_subscription", "membership", subscriptionID)
}

// UpdateMembershipStatus sets the status of a stored membership.
func (m *MockMembershipStore) UpdateMembershipStatus(ctx context.Context, id uuid.UUID, status MembershipStatus) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("UpdateMembershipStatus(%s, %s)", id, status))

	membership, exists := m.Memberships[id]
	if !exists {
		return NotFound("mock.update_membership_status", "membership", id.String())
	}
	membership.Status = status
	return nil
}

// SetMembershipSubscription attaches a subscription id to a membership.
func (m *MockMembershipStore) SetMembershipSubscription(ctx context.Context, id uuid.UUID, subscriptionID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("SetMembershipSubscription(%s, %s)", id, subscriptionID))

	membership, exists := m.Memberships[id]
	if !exists {
		return NotFound("mock.set_membership_subscription", "membership", id.String())
	}
	membership.SubscriptionID = subscriptionID
	return nil
}

// CountPaidInvoices returns the configured count for a session.
func (m *MockMembershipStore) CountPaidInvoices(ctx context.Context, sessionID string) (int, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CountPaidInvoices(%s)", sessionID))

	if m.CountPaidInvoicesFunc != nil {
		return m.CountPaidInvoicesFunc(ctx, sessionID)
	}
	return m.PaidInvoiceCounts[sessionID], nil
}

// CreateInvoice stores an invoice.
func (m *MockMembershipStore) CreateInvoice(ctx context.Context, inv *Invoice) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateInvoice(%s)", inv.ID))

	m.Invoices[inv.ID] = inv
	return nil
}

// Invoice returns a stored invoice or ENOTFOUND.
func (m *MockMembershipStore) Invoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Invoice(%s)", id))

	inv, exists := m.Invoices[id]
	if !exists {
		return nil, NotFound("mock.invoice", "invoice", id.String())
	}
	return inv, nil
}

// MarkInvoicePaid transitions a stored invoice to paid and bumps the paid
// count for its membership session.
func (m *MockMembershipStore) MarkInvoicePaid(ctx context.Context, id uuid.UUID, providerPaymentID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("MarkInvoicePaid(%s, %s)", id, providerPaymentID))

	inv, exists := m.Invoices[id]
	if !exists {
		return NotFound("mock.mark_invoice_paid", "invoice", id.String())
	}
	if inv.Status == InvoiceStatusPaid {
		return ErrPaymentAlreadyProcessed
	}
	inv.Status = InvoiceStatusPaid
	inv.ProviderPaymentID = providerPaymentID
	m.PaidInvoiceCounts[inv.MembershipSessionID]++
	return nil
}
