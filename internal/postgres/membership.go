package postgres

import (
	"context"
	"errors"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipStore implements domain.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that MembershipStore implements domain.MembershipStore.
var _ domain.MembershipStore = (*MembershipStore)(nil)

// NewMembershipStore creates a new PostgreSQL-backed membership store.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{
		pool: pool,
	}
}

const membershipColumns = `
	m.id, m.tenant_id, m.user_id, m.entity_id, m.entity_type, m.plan_id,
	m.subscription_id, m.session_id, m.status, m.created_at, m.updated_at,
	p.id, p.name, p.type, p.one_time_amount, p.emi_amount,
	p.emi_total_installments, p.subscription_monthly_amount,
	p.subscription_yearly_amount`

// scanMembership maps one joined membership/plan row.
func scanMembership(row pgx.Row) (*domain.Membership, error) {
	var (
		m    domain.Membership
		plan domain.PaymentPlan

		subscriptionID       *string
		oneTimeAmount        *float64
		emiAmount            *float64
		emiTotalInstallments *int
		monthlyAmount        *float64
		yearlyAmount         *float64
	)

	err := row.Scan(
		&m.ID, &m.TenantID, &m.UserID, &m.EntityID, &m.EntityType, &m.PlanID,
		&subscriptionID, &m.SessionID, &m.Status, &m.CreatedAt, &m.UpdatedAt,
		&plan.ID, &plan.Name, &plan.Type, &oneTimeAmount, &emiAmount,
		&emiTotalInstallments, &monthlyAmount, &yearlyAmount,
	)
	if err != nil {
		return nil, err
	}

	if subscriptionID != nil {
		m.SubscriptionID = *subscriptionID
	}
	if oneTimeAmount != nil {
		plan.OneTimeAmount = *oneTimeAmount
	}
	if emiAmount != nil {
		plan.EMIAmount = *emiAmount
	}
	if emiTotalInstallments != nil {
		plan.EMITotalInstallments = *emiTotalInstallments
	}
	if monthlyAmount != nil {
		plan.SubscriptionMonthlyAmount = *monthlyAmount
	}
	if yearlyAmount != nil {
		plan.SubscriptionYearlyAmount = *yearlyAmount
	}

	m.Plan = &plan
	return &m, nil
}

// Membership retrieves a membership with its plan.
func (s *MembershipStore) Membership(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships m
		JOIN payment_plans p ON p.id = m.plan_id
		WHERE m.id = $1`, id)

	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.membership", "membership", id.String())
		}
		return nil, domain.Internal(err, "postgres.membership", "failed to load membership")
	}
	return m, nil
}

// MembershipBySubscription retrieves the membership holding a provider
// subscription id.
func (s *MembershipStore) MembershipBySubscription(ctx context.Context, subscriptionID string) (*domain.Membership, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships m
		JOIN payment_plans p ON p.id = m.plan_id
		WHERE m.subscription_id = $1`, subscriptionID)

	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.membership_by_subscription", "membership", subscriptionID)
		}
		return nil, domain.Internal(err, "postgres.membership_by_subscription", "failed to load membership")
	}
	return m, nil
}

// ActiveSubscriptionMemberships lists active memberships backed by a provider
// subscription. The reconciliation sweeper walks this set.
func (s *MembershipStore) ActiveSubscriptionMemberships(ctx context.Context, limit int) ([]*domain.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships m
		JOIN payment_plans p ON p.id = m.plan_id
		WHERE m.status = $1 AND m.subscription_id IS NOT NULL
		ORDER BY m.updated_at
		LIMIT $2`, domain.MembershipStatusActive, limit)
	if err != nil {
		return nil, domain.Internal(err, "postgres.active_subscription_memberships", "failed to list memberships")
	}
	defer rows.Close()

	var memberships []*domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, domain.Internal(err, "postgres.active_subscription_memberships", "failed to scan membership")
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "postgres.active_subscription_memberships", "failed to list memberships")
	}
	return memberships, nil
}

// UpdateMembershipStatus transitions a membership's status.
func (s *MembershipStore) UpdateMembershipStatus(ctx context.Context, id uuid.UUID, status domain.MembershipStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE memberships
		SET status = $2, updated_at = now()
		WHERE id = $1`, id, status)
	if err != nil {
		return domain.Internal(err, "postgres.update_membership_status", "failed to update membership status")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.update_membership_status", "membership", id.String())
	}
	return nil
}

// SetMembershipSubscription records the provider subscription id after the
// first successful recurring payment.
func (s *MembershipStore) SetMembershipSubscription(ctx context.Context, id uuid.UUID, subscriptionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE memberships
		SET subscription_id = $2, updated_at = now()
		WHERE id = $1`, id, subscriptionID)
	if err != nil {
		return domain.Internal(err, "postgres.set_membership_subscription", "failed to set subscription id")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.set_membership_subscription", "membership", id.String())
	}
	return nil
}

// CountPaidInvoices counts the paid invoices of one purchase session. The
// installment guard depends on this count, not on membership-wide totals.
func (s *MembershipStore) CountPaidInvoices(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM invoices
		WHERE membership_session_id = $1 AND status = $2`,
		sessionID, domain.InvoiceStatusPaid).Scan(&count)
	if err != nil {
		return 0, domain.Internal(err, "postgres.count_paid_invoices", "failed to count paid invoices")
	}
	return count, nil
}

// CreateInvoice inserts a pending invoice.
func (s *MembershipStore) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invoices (
			id, tenant_id, membership_id, membership_session_id,
			amount, currency, status, payment_method
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.ID, inv.TenantID, inv.MembershipID, inv.MembershipSessionID,
		inv.Amount, inv.Currency, inv.Status, inv.PaymentMethod)
	if err != nil {
		return domain.Internal(err, "postgres.create_invoice", "failed to create invoice")
	}
	return nil
}

// Invoice retrieves an invoice by id.
func (s *MembershipStore) Invoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var (
		inv               domain.Invoice
		providerPaymentID *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, membership_id, membership_session_id,
			amount, currency, status, provider_payment_id, payment_method,
			created_at, updated_at
		FROM invoices
		WHERE id = $1`, id).Scan(
		&inv.ID, &inv.TenantID, &inv.MembershipID, &inv.MembershipSessionID,
		&inv.Amount, &inv.Currency, &inv.Status, &providerPaymentID,
		&inv.PaymentMethod, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.invoice", "invoice", id.String())
		}
		return nil, domain.Internal(err, "postgres.invoice", "failed to load invoice")
	}
	if providerPaymentID != nil {
		inv.ProviderPaymentID = *providerPaymentID
	}
	return &inv, nil
}

// MarkInvoicePaid transitions a pending invoice to paid. Re-marking an
// already paid invoice returns ErrPaymentAlreadyProcessed so webhook retries
// stay idempotent.
func (s *MembershipStore) MarkInvoicePaid(ctx context.Context, id uuid.UUID, providerPaymentID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET status = $2, provider_payment_id = $3, updated_at = now()
		WHERE id = $1 AND status <> $2`,
		id, domain.InvoiceStatusPaid, providerPaymentID)
	if err != nil {
		return domain.Internal(err, "postgres.mark_invoice_paid", "failed to mark invoice paid")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, id).Scan(&exists); err != nil {
			return domain.Internal(err, "postgres.mark_invoice_paid", "failed to mark invoice paid")
		}
		if exists {
			return domain.ErrPaymentAlreadyProcessed
		}
		return domain.NotFound("postgres.mark_invoice_paid", "invoice", id.String())
	}
	return nil
}
