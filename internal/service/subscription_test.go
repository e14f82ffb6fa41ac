package service

import (
	"context"
	"errors"
	"testing"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/payment"
	"github.com/google/uuid"
)

func seedActiveSubscription(store *domain.MockMembershipStore, tenantID uuid.UUID) *domain.Membership {
	membership := &domain.Membership{
		ID:             uuid.New(),
		TenantID:       tenantID,
		SubscriptionID: "sub_1",
		Status:         domain.MembershipStatusActive,
	}
	store.Memberships[membership.ID] = membership
	return membership
}

func TestSubscriptionCancel(t *testing.T) {
	tenantID := uuid.New()
	store := domain.NewMockMembershipStore()
	membership := seedActiveSubscription(store, tenantID)

	gateway := payment.NewMockProvider()
	svc := NewSubscriptionService(store, discardLogger())

	if err := svc.Cancel(context.Background(), gateway, tenantID, membership.ID, "user_request"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if len(gateway.Canceled) != 1 || gateway.Canceled[0] != "sub_1" {
		t.Errorf("gateway cancellations = %v, want [sub_1]", gateway.Canceled)
	}
	if membership.Status != domain.MembershipStatusExpired {
		t.Errorf("membership status = %q, want expired", membership.Status)
	}
}

func TestSubscriptionCancel_TenantMismatch(t *testing.T) {
	store := domain.NewMockMembershipStore()
	membership := seedActiveSubscription(store, uuid.New())

	svc := NewSubscriptionService(store, discardLogger())
	err := svc.Cancel(context.Background(), payment.NewMockProvider(), uuid.New(), membership.ID, "user_request")
	if !errors.Is(err, domain.ErrTenantMismatch) {
		t.Errorf("Cancel() error = %v, want ErrTenantMismatch", err)
	}
}

func TestSubscriptionCancel_NoSubscription(t *testing.T) {
	tenantID := uuid.New()
	store := domain.NewMockMembershipStore()
	membership := seedActiveSubscription(store, tenantID)
	membership.SubscriptionID = ""

	svc := NewSubscriptionService(store, discardLogger())
	err := svc.Cancel(context.Background(), payment.NewMockProvider(), tenantID, membership.ID, "user_request")
	if !errors.Is(err, ErrNoSubscription) {
		t.Errorf("Cancel() error = %v, want ErrNoSubscription", err)
	}
}

func TestSubscriptionCancel_GatewayWithoutSupport(t *testing.T) {
	tenantID := uuid.New()
	store := domain.NewMockMembershipStore()
	membership := seedActiveSubscription(store, tenantID)

	gateway := payment.NewMockProvider()
	gateway.CancelFunc = func(ctx context.Context, subscriptionID string) error {
		return payment.ErrNotImplemented
	}

	svc := NewSubscriptionService(store, discardLogger())
	err := svc.Cancel(context.Background(), gateway, tenantID, membership.ID, "user_request")

	if !errors.Is(err, payment.ErrNotImplemented) {
		t.Errorf("Cancel() error = %v, should unwrap to ErrNotImplemented", err)
	}
	if domain.ErrorCode(err) != domain.ENOTIMPL {
		t.Errorf("error code = %q, want ENOTIMPL", domain.ErrorCode(err))
	}
	if membership.Status != domain.MembershipStatusActive {
		t.Errorf("membership status = %q, must stay active when gateway cancel fails", membership.Status)
	}
}

func TestSubscriptionReconcile_StillValid(t *testing.T) {
	tenantID := uuid.New()
	store := domain.NewMockMembershipStore()
	membership := seedActiveSubscription(store, tenantID)

	svc := NewSubscriptionService(store, discardLogger())
	if err := svc.Reconcile(context.Background(), payment.NewMockProvider(), tenantID, membership.ID); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if membership.Status != domain.MembershipStatusActive {
		t.Errorf("membership status = %q, want active", membership.Status)
	}
}

func TestSubscriptionReconcile_LapsedAtGateway(t *testing.T) {
	tenantID := uuid.New()
	store := domain.NewMockMembershipStore()
	membership := seedActiveSubscription(store, tenantID)

	gateway := payment.NewMockProvider()
	gateway.ValidateSubscriptionFunc = func(ctx context.Context, subscriptionID string) (bool, error) {
		return false, nil
	}

	svc := NewSubscriptionService(store, discardLogger())
	if err := svc.Reconcile(context.Background(), gateway, tenantID, membership.ID); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if membership.Status != domain.MembershipStatusExpired {
		t.Errorf("membership status = %q, want expired", membership.Status)
	}
}

func TestSubscriptionReconcile_GatewayWithoutSupport(t *testing.T) {
	tenantID := uuid.New()
	store := domain.NewMockMembershipStore()
	membership := seedActiveSubscription(store, tenantID)

	gateway := payment.NewMockProvider()
	gateway.ValidateSubscriptionFunc = func(ctx context.Context, subscriptionID string) (bool, error) {
		return false, payment.ErrNotImplemented
	}

	svc := NewSubscriptionService(store, discardLogger())
	err := svc.Reconcile(context.Background(), gateway, tenantID, membership.ID)

	if !errors.Is(err, payment.ErrNotImplemented) {
		t.Errorf("Reconcile() error = %v, should unwrap to ErrNotImplemented", err)
	}
	if membership.Status != domain.MembershipStatusActive {
		t.Errorf("membership status = %q, must stay active", membership.Status)
	}
}
