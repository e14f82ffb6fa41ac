package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preapproval"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

// MercadoPagoConfig contains per-tenant configuration for the Mercado Pago
// adapter.
type MercadoPagoConfig struct {
	// AccessToken is the private access token used for API calls.
	AccessToken string

	// Currency is the site's ISO 4217 currency code.
	Currency string
}

// Validate checks that required configuration is present.
func (c *MercadoPagoConfig) Validate() error {
	if c.Currency == "" {
		return ErrMissingCurrency
	}
	if c.AccessToken == "" {
		return errors.New("mercadopago: access token is required")
	}
	return nil
}

// The SDK clients the adapter touches, narrowed so tests can stub the
// remote calls.
type preferenceCreator interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

type paymentGetter interface {
	Get(ctx context.Context, id int) (*mppayment.Response, error)
}

type preapprovalClient interface {
	Get(ctx context.Context, id string) (*preapproval.Response, error)
	Update(ctx context.Context, id string, request preapproval.UpdateRequest) (*preapproval.Response, error)
}

// MercadoPagoProvider implements Provider using Checkout Pro preferences.
// Confirmation and metadata are remote reads: Mercado Pago webhooks carry
// only a payment id, so the adapter re-fetches the payment rather than
// trusting payload fields.
type MercadoPagoProvider struct {
	cfg          MercadoPagoConfig
	preferences  preferenceCreator
	payments     paymentGetter
	preapprovals preapprovalClient
}

// NewMercadoPagoProvider validates the configuration and constructs an
// authenticated Mercado Pago adapter.
func NewMercadoPagoProvider(cfg MercadoPagoConfig) (*MercadoPagoProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sdkCfg, err := config.New(cfg.AccessToken)
	if err != nil {
		return nil, newProviderError(NameMercadoPago, "setup", "", err)
	}

	return &MercadoPagoProvider{
		cfg:          cfg,
		preferences:  preference.NewClient(sdkCfg),
		payments:     mppayment.NewClient(sdkCfg),
		preapprovals: preapproval.NewClient(sdkCfg),
	}, nil
}

// Name returns the provider name constant.
func (m *MercadoPagoProvider) Name() string {
	return NameMercadoPago
}

// Initiate creates a checkout preference and returns both its id and the
// hosted init point URL. Recurring plans attach an installments hint so the
// hosted checkout offers the matching payment methods.
func (m *MercadoPagoProvider) Initiate(ctx context.Context, params InitiateParams) (*Handle, error) {
	amount, err := ResolveUnitAmount(params.Plan)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]any, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	req := preference.Request{
		Items: []preference.ItemRequest{
			{
				Title:      params.Product.Title,
				Quantity:   1,
				UnitPrice:  amount,
				CurrencyID: strings.ToUpper(m.cfg.Currency),
			},
		},
		Metadata:          metadata,
		ExternalReference: params.Metadata[MetadataKeyInvoiceID],
		BackURLs: &preference.BackURLsRequest{
			Success: params.SuccessURL,
			Failure: params.CancelURL,
		},
	}
	if params.Plan.Type == domain.PlanTypeEMI {
		req.PaymentMethods = &preference.PaymentMethodsRequest{
			Installments: params.Plan.EMITotalInstallments,
		}
	}

	res, err := m.preferences.Create(ctx, req)
	if err != nil {
		return nil, newProviderError(NameMercadoPago, "initiate", "", err)
	}

	return &Handle{ID: res.ID, RedirectURL: res.InitPoint}, nil
}

// mercadoPagoEvent is the webhook notification envelope: a type and an object
// id, nothing else trustworthy.
type mercadoPagoEvent struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Verify re-fetches the referenced payment and confirms only on an approved
// status. A fetch failure reports unverified rather than erroring: Mercado
// Pago retries notifications, and a transient read must not poison the
// delivery.
func (m *MercadoPagoProvider) Verify(ctx context.Context, event []byte) (bool, error) {
	var ev mercadoPagoEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return false, newProviderError(NameMercadoPago, "verify", "malformed event payload", err)
	}
	if ev.Type != "payment" {
		return false, nil
	}

	id, err := strconv.Atoi(ev.Data.ID)
	if err != nil {
		return false, nil
	}

	payment, err := m.payments.Get(ctx, id)
	if err != nil {
		return false, nil
	}
	return payment.Status == "approved", nil
}

// PaymentIdentifier returns the notification's payment id.
func (m *MercadoPagoProvider) PaymentIdentifier(event []byte) (string, error) {
	var ev mercadoPagoEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return "", newProviderError(NameMercadoPago, "identifier", "malformed event payload", err)
	}
	return ev.Data.ID, nil
}

// Metadata fetches the referenced payment and projects its metadata to
// strings. Unlike the other providers this is a remote, fallible read; the
// notification itself carries no metadata.
func (m *MercadoPagoProvider) Metadata(ctx context.Context, event []byte) (map[string]string, error) {
	var ev mercadoPagoEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return nil, newProviderError(NameMercadoPago, "metadata", "malformed event payload", err)
	}

	id, err := strconv.Atoi(ev.Data.ID)
	if err != nil {
		return nil, newProviderError(NameMercadoPago, "metadata", "notification id is not numeric", err)
	}

	payment, err := m.payments.Get(ctx, id)
	if err != nil {
		return nil, newProviderError(NameMercadoPago, "metadata", "payment fetch failed", err)
	}

	out := make(map[string]string, len(payment.Metadata))
	for k, v := range payment.Metadata {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

// SubscriptionID returns the object id for preapproval notifications, empty
// for everything else.
func (m *MercadoPagoProvider) SubscriptionID(event []byte) (string, error) {
	var ev mercadoPagoEvent
	if err := json.Unmarshal(event, &ev); err != nil {
		return "", newProviderError(NameMercadoPago, "subscription_id", "malformed event payload", err)
	}
	if ev.Type != "subscription_preapproval" {
		return "", nil
	}
	return ev.Data.ID, nil
}

// Cancel sets the preapproval status to cancelled.
func (m *MercadoPagoProvider) Cancel(ctx context.Context, subscriptionID string) error {
	_, err := m.preapprovals.Update(ctx, subscriptionID, preapproval.UpdateRequest{
		Status: "cancelled",
	})
	if err != nil {
		return newProviderError(NameMercadoPago, "cancel", "", err)
	}
	return nil
}

// ValidateSubscription reports whether the preapproval is authorized.
func (m *MercadoPagoProvider) ValidateSubscription(ctx context.Context, subscriptionID string) (bool, error) {
	res, err := m.preapprovals.Get(ctx, subscriptionID)
	if err != nil {
		return false, newProviderError(NameMercadoPago, "validate_subscription", "", err)
	}
	return res.Status == "authorized", nil
}
