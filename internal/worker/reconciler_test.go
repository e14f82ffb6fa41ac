package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/payment"
	"github.com/courseloom/courseloom/internal/provider"
)

type stubLister struct {
	memberships []*domain.Membership
	err         error
}

func (s *stubLister) ActiveSubscriptionMemberships(ctx context.Context, limit int) ([]*domain.Membership, error) {
	return s.memberships, s.err
}

type stubConfigs struct {
	config *provider.TenantPaymentConfig
	err    error
}

func (s *stubConfigs) ActiveConfig(ctx context.Context, tenantID pgtype.UUID) (*provider.TenantPaymentConfig, error) {
	return s.config, s.err
}

type stubFactory struct {
	provider payment.Provider
	err      error
}

func (s *stubFactory) CreatePaymentProvider(config *provider.TenantPaymentConfig) (payment.Provider, error) {
	return s.provider, s.err
}

type recordingSubscriptions struct {
	mu         sync.Mutex
	reconciled []uuid.UUID
	err        error
}

func (r *recordingSubscriptions) Cancel(ctx context.Context, gateway payment.Provider, tenantID, membershipID uuid.UUID, reason string) error {
	return nil
}

func (r *recordingSubscriptions) Reconcile(ctx context.Context, gateway payment.Provider, tenantID, membershipID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciled = append(r.reconciled, membershipID)
	return r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeMembership(tenantID uuid.UUID) *domain.Membership {
	return &domain.Membership{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Status:         domain.MembershipStatusActive,
		SubscriptionID: "sub_" + uuid.New().String()[:8],
	}
}

func newTestReconciler(lister MembershipLister, configs *stubConfigs, subs *recordingSubscriptions) *Reconciler {
	return NewReconciler(
		lister,
		configs,
		&stubFactory{provider: &payment.MockProvider{ProviderName: "stripe"}},
		subs,
		Config{MaxConcurrency: 2, BatchSize: 10},
		discardLogger(),
	)
}

func TestSweep_ReconcilesEachMembership(t *testing.T) {
	tenantID := uuid.New()
	m1 := activeMembership(tenantID)
	m2 := activeMembership(tenantID)

	subs := &recordingSubscriptions{}
	r := newTestReconciler(
		&stubLister{memberships: []*domain.Membership{m1, m2}},
		&stubConfigs{config: &provider.TenantPaymentConfig{Method: provider.PaymentMethodStripe}},
		subs,
	)

	r.Sweep(context.Background())

	if len(subs.reconciled) != 2 {
		t.Fatalf("expected 2 reconcile calls, got %d", len(subs.reconciled))
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range subs.reconciled {
		seen[id] = true
	}
	if !seen[m1.ID] || !seen[m2.ID] {
		t.Errorf("expected both memberships reconciled, got %v", subs.reconciled)
	}
}

func TestSweep_SkipsTenantWithoutConfig(t *testing.T) {
	subs := &recordingSubscriptions{}
	r := newTestReconciler(
		&stubLister{memberships: []*domain.Membership{activeMembership(uuid.New())}},
		&stubConfigs{err: domain.NotFound("postgres.active_payment_config", "payment config", "t1")},
		subs,
	)

	r.Sweep(context.Background())

	if len(subs.reconciled) != 0 {
		t.Errorf("expected no reconcile calls without a gateway config, got %d", len(subs.reconciled))
	}
}

func TestSweep_ListErrorStopsSweep(t *testing.T) {
	subs := &recordingSubscriptions{}
	r := newTestReconciler(
		&stubLister{err: errors.New("connection refused")},
		&stubConfigs{config: &provider.TenantPaymentConfig{Method: provider.PaymentMethodStripe}},
		subs,
	)

	r.Sweep(context.Background())

	if len(subs.reconciled) != 0 {
		t.Errorf("expected no reconcile calls after list failure, got %d", len(subs.reconciled))
	}
}

func TestSweep_ReconcileErrorDoesNotStopSweep(t *testing.T) {
	tenantID := uuid.New()
	subs := &recordingSubscriptions{
		err: domain.Errorf(domain.EPAYMENT, "subscription.reconcile", "gateway validation failed"),
	}
	r := newTestReconciler(
		&stubLister{memberships: []*domain.Membership{
			activeMembership(tenantID),
			activeMembership(tenantID),
			activeMembership(tenantID),
		}},
		&stubConfigs{config: &provider.TenantPaymentConfig{Method: provider.PaymentMethodStripe}},
		subs,
	)

	r.Sweep(context.Background())

	if len(subs.reconciled) != 3 {
		t.Errorf("expected all 3 memberships attempted, got %d", len(subs.reconciled))
	}
}

func TestNewReconciler_Defaults(t *testing.T) {
	r := NewReconciler(&stubLister{}, &stubConfigs{}, &stubFactory{}, &recordingSubscriptions{}, Config{}, discardLogger())

	if r.config.WorkerID == "" {
		t.Error("expected a generated worker id")
	}
	if r.config.PollInterval == 0 {
		t.Error("expected a default poll interval")
	}
	if r.config.MaxConcurrency == 0 {
		t.Error("expected a default max concurrency")
	}
	if r.config.BatchSize == 0 {
		t.Error("expected a default batch size")
	}
}
