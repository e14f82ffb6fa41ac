package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/courseloom/courseloom/internal/crypto"
	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/provider"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentConfigStore loads tenant payment gateway configurations. Credential
// maps are encrypted at rest; only ciphertext touches the database.
type PaymentConfigStore struct {
	pool *pgxpool.Pool
	enc  crypto.Encryptor
}

// NewPaymentConfigStore creates a new PostgreSQL-backed payment config store.
func NewPaymentConfigStore(pool *pgxpool.Pool, enc crypto.Encryptor) *PaymentConfigStore {
	return &PaymentConfigStore{
		pool: pool,
		enc:  enc,
	}
}

// ActiveConfig returns the tenant's active payment configuration, or
// ENOTFOUND when the tenant has never configured a gateway. The schema
// enforces at most one active row per tenant.
func (s *PaymentConfigStore) ActiveConfig(ctx context.Context, tenantID pgtype.UUID) (*provider.TenantPaymentConfig, error) {
	var cfg provider.TenantPaymentConfig
	var ciphertext []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, method, currency, config_ciphertext, is_active,
			created_at, updated_at
		FROM tenant_payment_configs
		WHERE tenant_id = $1 AND is_active`, tenantID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Method, &cfg.Currency, &ciphertext,
		&cfg.IsActive, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.active_payment_config", "payment config", uuid.UUID(tenantID.Bytes).String())
		}
		return nil, domain.Internal(err, "postgres.active_payment_config", "failed to load payment configuration")
	}

	plaintext, err := s.enc.Decrypt(ciphertext)
	if err != nil {
		return nil, domain.Internal(err, "postgres.active_payment_config", "failed to decrypt payment credentials")
	}
	if err := json.Unmarshal(plaintext, &cfg.Config); err != nil {
		return nil, domain.Internal(err, "postgres.active_payment_config", "failed to decode payment credentials")
	}
	return &cfg, nil
}

// SaveConfig upserts a tenant's payment configuration, deactivating any
// previously active gateway in the same transaction.
func (s *PaymentConfigStore) SaveConfig(ctx context.Context, cfg *provider.TenantPaymentConfig) error {
	plaintext, err := json.Marshal(cfg.Config)
	if err != nil {
		return domain.Internal(err, "postgres.save_payment_config", "failed to encode payment credentials")
	}
	ciphertext, err := s.enc.Encrypt(plaintext)
	if err != nil {
		return domain.Internal(err, "postgres.save_payment_config", "failed to encrypt payment credentials")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "postgres.save_payment_config", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE tenant_payment_configs
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND is_active`, cfg.TenantID)
	if err != nil {
		return domain.Internal(err, "postgres.save_payment_config", "failed to deactivate previous configuration")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tenant_payment_configs (tenant_id, method, currency, config_ciphertext, is_active)
		VALUES ($1, $2, $3, $4, true)`,
		cfg.TenantID, cfg.Method, cfg.Currency, ciphertext)
	if err != nil {
		return domain.Internal(err, "postgres.save_payment_config", "failed to save payment configuration")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "postgres.save_payment_config", "failed to commit payment configuration")
	}
	return nil
}
