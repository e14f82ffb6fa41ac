package payment

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeConfig contains per-tenant configuration for the Stripe adapter.
type StripeConfig struct {
	// Key is the publishable key (pk_...), handed to the storefront.
	Key string

	// Secret is the secret key (sk_...) used for API calls.
	Secret string

	// Currency is the site's ISO 4217 currency code.
	Currency string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.Currency == "" {
		return ErrMissingCurrency
	}
	if c.Key == "" {
		return errors.New("stripe: publishable key is required")
	}
	if c.Secret == "" {
		return errors.New("stripe: secret key is required")
	}
	return nil
}

// StripeProvider implements Provider using Stripe Checkout Sessions.
//
// The authenticated client is instance state scoped to one construction, not
// a package-level key: tenants carry distinct credentials.
type StripeProvider struct {
	cfg    StripeConfig
	client *client.API
}

// NewStripeProvider validates the configuration and constructs an
// authenticated Stripe adapter.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sc := &client.API{}
	sc.Init(cfg.Secret, nil)

	return &StripeProvider{cfg: cfg, client: sc}, nil
}

// Name returns the provider name constant.
func (s *StripeProvider) Name() string {
	return NameStripe
}

// Initiate creates a Checkout Session. One-time plans use mode=payment;
// subscription and EMI plans use mode=subscription, with the recurring
// interval set to year when the plan carries a yearly amount, else month.
// Amounts are converted to minor units (×100).
func (s *StripeProvider) Initiate(ctx context.Context, params InitiateParams) (*Handle, error) {
	amount, err := ResolveUnitAmount(params.Plan)
	if err != nil {
		return nil, err
	}

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency: stripe.String(strings.ToLower(s.cfg.Currency)),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(params.Product.Title),
		},
		UnitAmount: stripe.Int64(int64(math.Round(amount * 100))),
	}

	mode := stripe.CheckoutSessionModePayment
	if params.Plan.IsRecurring() {
		mode = stripe.CheckoutSessionModeSubscription
		interval := "month"
		if params.Plan.SubscriptionYearlyAmount > 0 {
			interval = "year"
		}
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(interval),
		}
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(1),
			},
		},
	}
	sessionParams.Context = ctx
	for k, v := range params.Metadata {
		sessionParams.AddMetadata(k, v)
	}

	sess, err := s.client.CheckoutSessions.New(sessionParams)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, newProviderError(NameStripe, "initiate", stripeErr.Msg, err)
		}
		return nil, newProviderError(NameStripe, "initiate", "", err)
	}

	return &Handle{ID: sess.ID, RedirectURL: sess.URL}, nil
}

// stripeEvent is the subset of a Stripe webhook payload the adapter reads.
type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			PaymentStatus string            `json:"payment_status"`
			Metadata      map[string]string `json:"metadata"`
			Subscription  string            `json:"subscription"`
		} `json:"object"`
	} `json:"data"`
}

// Verify confirms a payment only for checkout.session.completed events whose
// payment_status is paid. Checking the event type alone is insufficient: an
// async payment method can complete the session with the payment still
// pending, and a weaker check double-credits when the payment later settles.
func (s *StripeProvider) Verify(ctx context.Context, event []byte) (bool, error) {
	var ev stripeEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return false, newProviderError(NameStripe, "verify", "malformed event payload", err)
	}
	return ev.Type == "checkout.session.completed" && ev.Data.Object.PaymentStatus == "paid", nil
}

// PaymentIdentifier returns the invoice correlation id embedded at Initiate
// time, falling back to the session id.
func (s *StripeProvider) PaymentIdentifier(event []byte) (string, error) {
	var ev stripeEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return "", newProviderError(NameStripe, "identifier", "malformed event payload", err)
	}
	if id, ok := ev.Data.Object.Metadata[MetadataKeyInvoiceID]; ok && id != "" {
		return id, nil
	}
	return ev.Data.Object.ID, nil
}

// Metadata returns the session metadata echoed back in the event.
func (s *StripeProvider) Metadata(ctx context.Context, event []byte) (map[string]string, error) {
	var ev stripeEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return nil, newProviderError(NameStripe, "metadata", "malformed event payload", err)
	}
	return ev.Data.Object.Metadata, nil
}

// SubscriptionID returns the session's subscription id, empty for one-time
// checkouts.
func (s *StripeProvider) SubscriptionID(event []byte) (string, error) {
	var ev stripeEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return "", newProviderError(NameStripe, "subscription_id", "malformed event payload", err)
	}
	return ev.Data.Object.Subscription, nil
}

// Cancel is not implemented for Stripe in this codebase.
func (s *StripeProvider) Cancel(ctx context.Context, subscriptionID string) error {
	return ErrNotImplemented
}

// ValidateSubscription is not implemented for Stripe in this codebase.
func (s *StripeProvider) ValidateSubscription(ctx context.Context, subscriptionID string) (bool, error) {
	return false, ErrNotImplemented
}
