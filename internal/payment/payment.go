package payment

import (
	"context"

	"github.com/courseloom/courseloom/internal/domain"
)

// Provider name constants returned by Provider.Name.
const (
	NameStripe       = "stripe"
	NameRazorpay     = "razorpay"
	NameLemonSqueezy = "lemonsqueezy"
	NameMercadoPago  = "mercadopago"
)

// Well-known metadata keys. The invoice id is the correlation identifier the
// checkout layer embeds at initiate time and reads back at webhook time; the
// whole reconciliation path hangs on providers echoing it faithfully.
const (
	MetadataKeyInvoiceID    = "invoice_id"
	MetadataKeyMembershipID = "membership_id"
)

// Provider is the capability contract every payment processor adapter
// satisfies. It is deliberately the union of every provider's operations
// rather than the intersection: provider-specific capabilities (cancellation,
// subscription validation) stay reachable for callers that know which
// provider is active, while unsupported operations fail with
// ErrNotImplemented instead of silently no-opping.
//
// Adapters are constructed per (tenant, request) through the provider
// factory; a constructor that returns an error is the only way to obtain one,
// so there is no reachable half-configured state. Instances hold per-tenant
// credentials and must not be promoted to process-wide singletons.
type Provider interface {
	// Name returns the provider name constant.
	Name() string

	// Initiate creates the remote checkout/order/session/preference the buyer
	// completes payment against and returns the handle the caller redirects
	// with. One remote write per call; the adapter never retries internally —
	// idempotency, if any, is the caller's job via distinct invoice ids in
	// the metadata.
	Initiate(ctx context.Context, params InitiateParams) (*Handle, error)

	// Verify reports whether a raw webhook payload represents a confirmed,
	// completed payment under this provider's semantics. false with a nil
	// error is the normal "not a confirmed payment" outcome (pending events,
	// unrelated event types, MercadoPago's re-fetch failing); errors are
	// reserved for payloads the caller should never have routed here.
	Verify(ctx context.Context, event []byte) (bool, error)

	// PaymentIdentifier extracts the caller-supplied correlation id from a
	// webhook event, falling back to the provider's own identifier when no
	// correlation id is present in the payload.
	PaymentIdentifier(event []byte) (string, error)

	// Metadata recovers the metadata attached at Initiate time from a webhook
	// event. Takes a context because MercadoPago resolves metadata through a
	// remote payment fetch rather than a payload read.
	Metadata(ctx context.Context, event []byte) (map[string]string, error)

	// SubscriptionID extracts the provider's subscription identifier from a
	// webhook event, used to correlate recurring-charge events back to a
	// membership. Empty when the event carries none.
	SubscriptionID(event []byte) (string, error)

	// Cancel terminates a recurring charge at the provider. Providers without
	// the capability fail with ErrNotImplemented.
	Cancel(ctx context.Context, subscriptionID string) error

	// ValidateSubscription is an out-of-band liveness check: is this
	// subscription still active at the provider. Providers without the
	// capability fail with ErrNotImplemented.
	ValidateSubscription(ctx context.Context, subscriptionID string) (bool, error)
}

// InitiateParams is the request-scoped input to Initiate. Constructed by the
// checkout caller per attempt; never persisted by the payment core.
type InitiateParams struct {
	// Metadata is the correlation map the provider must echo back in webhook
	// events (Stripe metadata, Razorpay notes, LemonSqueezy custom_data,
	// MercadoPago metadata). Always includes MetadataKeyInvoiceID.
	Metadata map[string]string

	// Plan determines the charge amount and recurrence.
	Plan domain.PaymentPlan

	// Product is the minimal descriptor shown on the provider-hosted page.
	Product domain.Product

	// Origin is the site's base URL (scheme + host) for constructing
	// redirect targets.
	Origin string

	// SuccessURL and CancelURL are where the provider sends the buyer after
	// checkout.
	SuccessURL string
	CancelURL  string
}

// Handle is the normalized result of Initiate across all providers. Providers
// whose client-side flow needs only an order/session id leave RedirectURL
// empty (Razorpay); the rest return a hosted-checkout URL.
type Handle struct {
	// ID is the provider's identifier for the created checkout object
	// (session, order, checkout, preference).
	ID string

	// RedirectURL is the hosted page to send the buyer to, when the provider
	// has one.
	RedirectURL string
}
