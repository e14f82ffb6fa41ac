package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/provider"
	"github.com/courseloom/courseloom/internal/service"
)

// MembershipLister lists memberships that carry a live gateway subscription.
type MembershipLister interface {
	ActiveSubscriptionMemberships(ctx context.Context, limit int) ([]*domain.Membership, error)
}

// Config holds reconciler configuration
type Config struct {
	// WorkerID uniquely identifies this reconciler instance
	WorkerID string

	// PollInterval is how often to run a reconciliation sweep
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of memberships reconciled at once
	MaxConcurrency int

	// BatchSize caps how many memberships one sweep picks up
	BatchSize int
}

// Reconciler periodically re-checks active subscription memberships against
// their gateway, expiring those the gateway no longer considers valid. It
// covers the gap left by missed or delayed webhooks.
type Reconciler struct {
	config        Config
	store         MembershipLister
	configs       service.PaymentConfigSource
	factory       provider.PaymentFactory
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewReconciler creates a subscription reconciliation worker
func NewReconciler(
	store MembershipLister,
	configs service.PaymentConfigSource,
	factory provider.PaymentFactory,
	subscriptions service.SubscriptionService,
	config Config,
	logger *slog.Logger,
) *Reconciler {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("reconciler-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 15 * time.Minute
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	return &Reconciler{
		config:        config,
		store:         store,
		configs:       configs,
		factory:       factory,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// Start runs reconciliation sweeps until the context is cancelled
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("reconciler starting",
		"worker_id", r.config.WorkerID,
		"poll_interval", r.config.PollInterval,
		"max_concurrency", r.config.MaxConcurrency,
	)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler shutting down", "worker_id", r.config.WorkerID)
			return ctx.Err()

		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass over active subscription memberships.
// Per-membership failures are logged and do not stop the sweep.
func (r *Reconciler) Sweep(ctx context.Context) {
	memberships, err := r.store.ActiveSubscriptionMemberships(ctx, r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to list memberships for reconciliation", "error", err)
		return
	}
	if len(memberships) == 0 {
		return
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, r.config.MaxConcurrency)
	var wg sync.WaitGroup

	for _, m := range memberships {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(m *domain.Membership) {
			defer wg.Done()
			defer func() { <-sem }()
			r.reconcileOne(ctx, m)
		}(m)
	}

	wg.Wait()
}

// reconcileOne resolves the membership tenant's gateway and delegates to the
// subscription service.
func (r *Reconciler) reconcileOne(ctx context.Context, m *domain.Membership) {
	cfg, err := r.configs.ActiveConfig(ctx, pgtype.UUID{Bytes: m.TenantID, Valid: true})
	if err != nil {
		// Tenants that removed their gateway configuration keep their
		// memberships until an operator intervenes.
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			r.logger.Warn("no active gateway config for membership tenant",
				"tenant_id", m.TenantID, "membership_id", m.ID)
			return
		}
		r.logger.Error("failed to load gateway config",
			"tenant_id", m.TenantID, "membership_id", m.ID, "error", err)
		return
	}

	gateway, err := r.factory.CreatePaymentProvider(cfg)
	if err != nil {
		r.logger.Error("failed to build gateway for reconciliation",
			"tenant_id", m.TenantID, "membership_id", m.ID, "error", err)
		return
	}

	if err := r.subscriptions.Reconcile(ctx, gateway, m.TenantID, m.ID); err != nil {
		// Gateways without remote validation support are expected here;
		// stay quiet about them.
		if domain.ErrorCode(err) == domain.ENOTIMPL {
			return
		}
		if errors.Is(err, service.ErrNoSubscription) {
			return
		}
		r.logger.Error("subscription reconciliation failed",
			"tenant_id", m.TenantID, "gateway", gateway.Name(),
			"membership_id", m.ID, "error", err)
	}
}
