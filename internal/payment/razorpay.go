package payment

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayConfig contains per-tenant configuration for the Razorpay adapter.
type RazorpayConfig struct {
	// Key is the key id (rzp_...), also used by the storefront widget.
	Key string

	// Secret is the key secret used for API calls.
	Secret string

	// WebhookSecret signs incoming webhook payloads.
	WebhookSecret string

	// Currency is the site's ISO 4217 currency code.
	Currency string
}

// Validate checks that required configuration is present.
func (c *RazorpayConfig) Validate() error {
	if c.Currency == "" {
		return ErrMissingCurrency
	}
	if c.Key == "" {
		return errors.New("razorpay: key id is required")
	}
	if c.Secret == "" {
		return errors.New("razorpay: key secret is required")
	}
	return nil
}

// razorpayOrders is the slice of the SDK the adapter calls. Narrowing it to
// an interface lets tests substitute the order endpoint.
type razorpayOrders interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayProvider implements Provider using Razorpay Orders. The storefront
// opens the order in the Razorpay checkout widget, so Initiate returns no
// redirect URL.
type RazorpayProvider struct {
	cfg    RazorpayConfig
	orders razorpayOrders
}

// NewRazorpayProvider validates the configuration and constructs an
// authenticated Razorpay adapter.
func NewRazorpayProvider(cfg RazorpayConfig) (*RazorpayProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := razorpay.NewClient(cfg.Key, cfg.Secret)
	return &RazorpayProvider{cfg: cfg, orders: client.Order}, nil
}

// Name returns the provider name constant.
func (r *RazorpayProvider) Name() string {
	return NameRazorpay
}

// Initiate creates an order with the amount in minor units (×100) and the
// correlation metadata attached as order notes. The returned handle carries
// only the order id; the widget completes the flow client-side.
func (r *RazorpayProvider) Initiate(ctx context.Context, params InitiateParams) (*Handle, error) {
	amount, err := ResolveUnitAmount(params.Plan)
	if err != nil {
		return nil, err
	}

	notes := make(map[string]interface{}, len(params.Metadata))
	for k, v := range params.Metadata {
		notes[k] = v
	}

	data := map[string]interface{}{
		"amount":   int64(math.Round(amount * 100)),
		"currency": strings.ToUpper(r.cfg.Currency),
		"notes":    notes,
	}

	body, err := r.orders.Create(data, nil)
	if err != nil {
		return nil, newProviderError(NameRazorpay, "initiate", "", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, newProviderError(NameRazorpay, "initiate", "order response missing id", nil)
	}

	return &Handle{ID: id}, nil
}

// razorpayEvent is the subset of a Razorpay webhook payload the adapter reads.
type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string            `json:"id"`
				OrderID string            `json:"order_id"`
				Notes   map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// Verify confirms a payment only for payment.authorized events.
func (r *RazorpayProvider) Verify(ctx context.Context, event []byte) (bool, error) {
	var ev razorpayEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return false, newProviderError(NameRazorpay, "verify", "malformed event payload", err)
	}
	return ev.Event == "payment.authorized", nil
}

// PaymentIdentifier returns the invoice correlation id carried in the payment
// notes, falling back to the payment id.
func (r *RazorpayProvider) PaymentIdentifier(event []byte) (string, error) {
	var ev razorpayEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return "", newProviderError(NameRazorpay, "identifier", "malformed event payload", err)
	}
	if id, ok := ev.Payload.Payment.Entity.Notes[MetadataKeyInvoiceID]; ok && id != "" {
		return id, nil
	}
	return ev.Payload.Payment.Entity.ID, nil
}

// Metadata returns the order notes echoed back on the payment entity.
func (r *RazorpayProvider) Metadata(ctx context.Context, event []byte) (map[string]string, error) {
	var ev razorpayEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return nil, newProviderError(NameRazorpay, "metadata", "malformed event payload", err)
	}
	return ev.Payload.Payment.Entity.Notes, nil
}

// SubscriptionID returns the subscription entity id when the event carries
// one, empty otherwise.
func (r *RazorpayProvider) SubscriptionID(event []byte) (string, error) {
	var ev razorpayEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return "", newProviderError(NameRazorpay, "subscription_id", "malformed event payload", err)
	}
	return ev.Payload.Subscription.Entity.ID, nil
}

// Cancel is not implemented for Razorpay in this codebase.
func (r *RazorpayProvider) Cancel(ctx context.Context, subscriptionID string) error {
	return ErrNotImplemented
}

// ValidateSubscription is not implemented for Razorpay in this codebase.
func (r *RazorpayProvider) ValidateSubscription(ctx context.Context, subscriptionID string) (bool, error) {
	return false, ErrNotImplemented
}
