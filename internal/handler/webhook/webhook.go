// Package webhook terminates payment gateway callbacks. Each gateway gets its
// own handler because signature schemes differ, but they share tenant
// resolution and event dispatch.
package webhook

import (
	"context"
	"io"
	"net/http"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/provider"
	"github.com/courseloom/courseloom/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// maxBodyBytes caps webhook payload size. Gateways send small JSON events;
// anything larger is abuse.
const maxBodyBytes = 1 << 20

// Deps are the collaborators every gateway handler needs.
type Deps struct {
	Configs  service.PaymentConfigSource
	Factory  provider.PaymentFactory
	Payments service.PaymentService
}

// readBody drains the request body with the size cap applied.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return io.ReadAll(r.Body)
}

// tenantFromRequest extracts the tenant id path segment. Webhook endpoints
// are registered per tenant: /webhooks/{gateway}/{tenant_id}.
func tenantFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("tenant_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Invalid("webhook.tenant", "invalid tenant id")
	}
	return id, nil
}

// loadGatewayConfig loads the tenant's active config and checks it matches
// the endpoint's gateway. A mismatch means a stale webhook registration at
// the gateway, not an attack, but the event must not be processed.
func loadGatewayConfig(ctx context.Context, configs service.PaymentConfigSource, tenantID uuid.UUID, method provider.PaymentMethod) (*provider.TenantPaymentConfig, error) {
	cfg, err := configs.ActiveConfig(ctx, pgtype.UUID{Bytes: tenantID, Valid: true})
	if err != nil {
		return nil, err
	}
	if cfg.Method != method {
		return nil, domain.Errorf(domain.ECONFLICT, "webhook.config",
			"tenant's active gateway is %s, not %s", cfg.Method, method)
	}
	return cfg, nil
}

// configString reads an optional string key from the credential map.
func configString(config map[string]interface{}, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}
