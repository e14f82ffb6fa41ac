package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/google/uuid"
)

const (
	lemonSqueezyBaseURL    = "https://api.lemonsqueezy.com"
	lemonSqueezyAPIVersion = "20240315"

	// Checkout links expire after 30 minutes so stale storefront tabs
	// cannot complete against superseded plan pricing.
	lemonSqueezyCheckoutTTL = 30 * time.Minute
)

// LemonSqueezyConfig contains per-tenant configuration for the Lemon Squeezy
// adapter. Lemon Squeezy prices live on pre-created variants rather than
// being set per checkout, so the config names one variant per billing shape.
type LemonSqueezyConfig struct {
	APIKey  string
	StoreID string

	// OneTimeVariantID serves ONE_TIME plans.
	OneTimeVariantID string

	// SubscriptionMonthlyVariantID serves EMI plans and monthly
	// subscriptions.
	SubscriptionMonthlyVariantID string

	// SubscriptionYearlyVariantID serves yearly subscriptions.
	SubscriptionYearlyVariantID string

	Currency string
}

// Validate checks that required configuration is present.
func (c *LemonSqueezyConfig) Validate() error {
	if c.Currency == "" {
		return ErrMissingCurrency
	}
	if c.APIKey == "" {
		return errors.New("lemonsqueezy: api key is required")
	}
	if c.StoreID == "" {
		return errors.New("lemonsqueezy: store id is required")
	}
	if c.OneTimeVariantID == "" {
		return errors.New("lemonsqueezy: one-time variant id is required")
	}
	if c.SubscriptionMonthlyVariantID == "" {
		return errors.New("lemonsqueezy: monthly variant id is required")
	}
	if c.SubscriptionYearlyVariantID == "" {
		return errors.New("lemonsqueezy: yearly variant id is required")
	}
	return nil
}

// LemonSqueezyProvider implements Provider against the Lemon Squeezy JSON:API
// directly. The official surface is REST-only here; there is no maintained Go
// SDK worth pinning.
type LemonSqueezyProvider struct {
	cfg     LemonSqueezyConfig
	baseURL string
	http    *http.Client
	store   domain.MembershipStore
	logger  *slog.Logger
}

// NewLemonSqueezyProvider validates the configuration and constructs the
// adapter. The membership store backs the EMI completion guard on
// subscription_resumed events.
func NewLemonSqueezyProvider(cfg LemonSqueezyConfig, store domain.MembershipStore, logger *slog.Logger) (*LemonSqueezyProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LemonSqueezyProvider{
		cfg:     cfg,
		baseURL: lemonSqueezyBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
		logger:  logger,
	}, nil
}

// Name returns the provider name constant.
func (l *LemonSqueezyProvider) Name() string {
	return NameLemonSqueezy
}

// do executes one JSON:API request and decodes the response into out when the
// status is 2xx. Non-2xx responses surface the first API error detail.
func (l *LemonSqueezyProvider) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)
	req.Header.Set("X-Api-Version", lemonSqueezyAPIVersion)

	res, err := l.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr struct {
			Errors []struct {
				Title  string `json:"title"`
				Detail string `json:"detail"`
			} `json:"errors"`
		}
		if decodeErr := json.NewDecoder(res.Body).Decode(&apiErr); decodeErr == nil && len(apiErr.Errors) > 0 {
			return fmt.Errorf("lemonsqueezy: %s %s: %s (status %d)", method, path, apiErr.Errors[0].Detail, res.StatusCode)
		}
		return fmt.Errorf("lemonsqueezy: %s %s: status %d", method, path, res.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// variantFor picks the configured variant matching the plan's billing shape.
// EMI rides the monthly subscription variant; the installment count is
// enforced by the resume guard, not by the variant.
func (l *LemonSqueezyProvider) variantFor(plan domain.PaymentPlan) (string, error) {
	switch plan.Type {
	case domain.PlanTypeOneTime:
		return l.cfg.OneTimeVariantID, nil
	case domain.PlanTypeEMI:
		return l.cfg.SubscriptionMonthlyVariantID, nil
	case domain.PlanTypeSubscription:
		if plan.SubscriptionMonthlyAmount > 0 {
			return l.cfg.SubscriptionMonthlyVariantID, nil
		}
		return l.cfg.SubscriptionYearlyVariantID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlanType, plan.Type)
	}
}

// Initiate creates a checkout with a custom price override, the correlation
// metadata in checkout_data.custom, and a 30 minute expiry.
func (l *LemonSqueezyProvider) Initiate(ctx context.Context, params InitiateParams) (*Handle, error) {
	amount, err := ResolveUnitAmount(params.Plan)
	if err != nil {
		return nil, err
	}

	variantID, err := l.variantFor(params.Plan)
	if err != nil {
		return nil, err
	}

	custom := make(map[string]interface{}, len(params.Metadata))
	for k, v := range params.Metadata {
		custom[k] = v
	}

	body := map[string]interface{}{
		"data": map[string]interface{}{
			"type": "checkouts",
			"attributes": map[string]interface{}{
				"custom_price": int64(math.Round(amount * 100)),
				"checkout_data": map[string]interface{}{
					"custom": custom,
				},
				"product_options": map[string]interface{}{
					"name":         params.Product.Title,
					"redirect_url": params.SuccessURL,
				},
				"expires_at": time.Now().Add(lemonSqueezyCheckoutTTL).UTC().Format(time.RFC3339),
			},
			"relationships": map[string]interface{}{
				"store": map[string]interface{}{
					"data": map[string]interface{}{"type": "stores", "id": l.cfg.StoreID},
				},
				"variant": map[string]interface{}{
					"data": map[string]interface{}{"type": "variants", "id": variantID},
				},
			},
		},
	}

	var res struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := l.do(ctx, http.MethodPost, "/v1/checkouts", body, &res); err != nil {
		return nil, newProviderError(NameLemonSqueezy, "initiate", "", err)
	}

	return &Handle{ID: res.Data.ID, RedirectURL: res.Data.Attributes.URL}, nil
}

// lemonSqueezyEvent is the subset of a Lemon Squeezy webhook payload the
// adapter reads. Orders and subscriptions share the envelope; unused fields
// decode to zero values.
type lemonSqueezyEvent struct {
	Meta struct {
		EventName  string            `json:"event_name"`
		CustomData map[string]string `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			SubscriptionID json.Number `json:"subscription_id"`
			FirstOrderItem struct {
				PriceID json.Number `json:"price_id"`
			} `json:"first_order_item"`
		} `json:"attributes"`
	} `json:"data"`
}

// Verify confirms payments by event type. order_created confirms only when
// the purchased price is a one-time price, so that the initial charge of a
// subscription or EMI checkout is not double-counted against its first
// subscription_payment_success. subscription_resumed never confirms but runs
// the EMI completion guard as a side effect.
func (l *LemonSqueezyProvider) Verify(ctx context.Context, event []byte) (bool, error) {
	var ev lemonSqueezyEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return false, newProviderError(NameLemonSqueezy, "verify", "malformed event payload", err)
	}

	switch ev.Meta.EventName {
	case "order_created":
		priceID := ev.Data.Attributes.FirstOrderItem.PriceID.String()
		if priceID == "" {
			return false, nil
		}
		category, err := l.priceCategory(ctx, priceID)
		if err != nil {
			return false, newProviderError(NameLemonSqueezy, "verify", "price lookup failed", err)
		}
		return category == "one_time", nil
	case "subscription_payment_success":
		return true, nil
	case "subscription_resumed":
		l.guardEMICompletion(ctx, ev)
		return false, nil
	default:
		return false, nil
	}
}

// priceCategory fetches a price object and returns its category
// (one_time, subscription, lead_magnet, pwyw).
func (l *LemonSqueezyProvider) priceCategory(ctx context.Context, priceID string) (string, error) {
	var res struct {
		Data struct {
			Attributes struct {
				Category string `json:"category"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := l.do(ctx, http.MethodGet, "/v1/prices/"+priceID, nil, &res); err != nil {
		return "", err
	}
	return res.Data.Attributes.Category, nil
}

// guardEMICompletion cancels a resumed subscription whose EMI plan has already
// collected all installments. Lemon Squeezy models EMI as an ordinary
// subscription, so without this guard a resume after the final installment
// would keep charging. Failures are logged and swallowed: the resume event
// itself must still be acknowledged.
func (l *LemonSqueezyProvider) guardEMICompletion(ctx context.Context, ev lemonSqueezyEvent) {
	raw, ok := ev.Meta.CustomData[MetadataKeyMembershipID]
	if !ok || raw == "" {
		return
	}
	membershipID, err := uuid.Parse(raw)
	if err != nil {
		l.logger.Error("lemonsqueezy: malformed membership id on resume",
			"membership_id", raw, "error", err)
		return
	}

	membership, err := l.store.Membership(ctx, membershipID)
	if err != nil {
		l.logger.Error("lemonsqueezy: membership lookup failed on resume",
			"membership_id", membershipID, "error", err)
		return
	}
	if membership.Plan == nil || membership.Plan.Type != domain.PlanTypeEMI {
		return
	}

	paid, err := l.store.CountPaidInvoices(ctx, membership.SessionID)
	if err != nil {
		l.logger.Error("lemonsqueezy: paid invoice count failed on resume",
			"membership_id", membershipID, "error", err)
		return
	}
	if paid < membership.Plan.EMITotalInstallments {
		return
	}

	if err := l.Cancel(ctx, ev.Data.ID); err != nil {
		l.logger.Error("lemonsqueezy: cancel of completed installment plan failed",
			"membership_id", membershipID, "subscription_id", ev.Data.ID, "error", err)
		return
	}
	l.logger.Info("lemonsqueezy: canceled completed installment plan",
		"membership_id", membershipID, "subscription_id", ev.Data.ID, "paid_installments", paid)
}

// PaymentIdentifier returns the invoice correlation id from the checkout's
// custom data, falling back to the event object id.
func (l *LemonSqueezyProvider) PaymentIdentifier(event []byte) (string, error) {
	var ev lemonSqueezyEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return "", newProviderError(NameLemonSqueezy, "identifier", "malformed event payload", err)
	}
	if id, ok := ev.Meta.CustomData[MetadataKeyInvoiceID]; ok && id != "" {
		return id, nil
	}
	return ev.Data.ID, nil
}

// Metadata returns the checkout custom data echoed in the event meta.
func (l *LemonSqueezyProvider) Metadata(ctx context.Context, event []byte) (map[string]string, error) {
	var ev lemonSqueezyEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return nil, newProviderError(NameLemonSqueezy, "metadata", "malformed event payload", err)
	}
	return ev.Meta.CustomData, nil
}

// SubscriptionID returns the subscription id for payment events, or the
// object id itself for subscription lifecycle events.
func (l *LemonSqueezyProvider) SubscriptionID(event []byte) (string, error) {
	var ev lemonSqueezyEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return "", newProviderError(NameLemonSqueezy, "subscription_id", "malformed event payload", err)
	}
	if id := ev.Data.Attributes.SubscriptionID.String(); id != "" && id != "0" {
		return id, nil
	}
	return ev.Data.ID, nil
}

// Cancel ends a subscription. Lemon Squeezy treats DELETE as cancel at period
// end rather than hard deletion.
func (l *LemonSqueezyProvider) Cancel(ctx context.Context, subscriptionID string) error {
	if err := l.do(ctx, http.MethodDelete, "/v1/subscriptions/"+subscriptionID, nil, nil); err != nil {
		return newProviderError(NameLemonSqueezy, "cancel", "", err)
	}
	return nil
}

// ValidateSubscription reports whether the subscription is still entitled to
// access, which covers both active and trialing states.
func (l *LemonSqueezyProvider) ValidateSubscription(ctx context.Context, subscriptionID string) (bool, error) {
	var res struct {
		Data struct {
			Attributes struct {
				Status string `json:"status"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := l.do(ctx, http.MethodGet, "/v1/subscriptions/"+subscriptionID, nil, &res); err != nil {
		return false, newProviderError(NameLemonSqueezy, "validate_subscription", "", err)
	}
	status := res.Data.Attributes.Status
	return status == "active" || status == "on_trial", nil
}
