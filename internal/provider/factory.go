package provider

import (
	"fmt"
	"log/slog"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/courseloom/courseloom/internal/payment"
)

// PaymentFactory creates payment provider instances from tenant configuration.
// The factory pattern lets callers resolve a gateway per request without
// knowing about the concrete adapter implementations.
type PaymentFactory interface {
	// CreatePaymentProvider creates a payment provider from configuration.
	// Returns ErrNoProviderConfigured for a nil config, never a nil provider
	// with a nil error.
	CreatePaymentProvider(config *TenantPaymentConfig) (payment.Provider, error)
}

// DefaultFactory implements PaymentFactory using constructor functions for
// each gateway.
type DefaultFactory struct {
	validator PaymentValidator
	store     domain.MembershipStore
	logger    *slog.Logger
}

// NewDefaultFactory creates a payment factory with configuration validation.
// The store and logger feed adapters with webhook side effects (the Lemon
// Squeezy installment guard). Returns an error if validator is nil.
func NewDefaultFactory(validator PaymentValidator, store domain.MembershipStore, logger *slog.Logger) (*DefaultFactory, error) {
	if validator == nil {
		return nil, ErrNilValidator
	}
	return &DefaultFactory{
		validator: validator,
		store:     store,
		logger:    logger,
	}, nil
}

// MustNewDefaultFactory creates a payment factory with configuration
// validation. Panics if validator is nil. Use only during application
// initialization.
func MustNewDefaultFactory(validator PaymentValidator, store domain.MembershipStore, logger *slog.Logger) *DefaultFactory {
	factory, err := NewDefaultFactory(validator, store, logger)
	if err != nil {
		panic(err)
	}
	return factory
}

// CreatePaymentProvider creates a payment provider based on the method in
// config.
func (f *DefaultFactory) CreatePaymentProvider(config *TenantPaymentConfig) (payment.Provider, error) {
	if config == nil {
		return nil, ErrNoProviderConfigured
	}

	switch config.Method {
	case PaymentMethodPayPal, PaymentMethodPaytm:
		return nil, ErrMethodNotImplemented(config.Method)
	}

	result := f.validator.ValidatePaymentConfig(config)
	if !result.Valid {
		return nil, ErrValidationFailed(config.Method, result.Errors)
	}

	switch config.Method {
	case PaymentMethodStripe:
		key, err := extractString(config.Config, "stripe_key")
		if err != nil {
			return nil, fmt.Errorf("failed to extract stripe_key: %w", err)
		}

		secret, err := extractString(config.Config, "stripe_secret")
		if err != nil {
			return nil, fmt.Errorf("failed to extract stripe_secret: %w", err)
		}

		return payment.NewStripeProvider(payment.StripeConfig{
			Key:      key,
			Secret:   secret,
			Currency: config.Currency,
		})

	case PaymentMethodRazorpay:
		key, err := extractString(config.Config, "razorpay_key")
		if err != nil {
			return nil, fmt.Errorf("failed to extract razorpay_key: %w", err)
		}

		secret, err := extractString(config.Config, "razorpay_secret")
		if err != nil {
			return nil, fmt.Errorf("failed to extract razorpay_secret: %w", err)
		}

		webhookSecret, err := extractString(config.Config, "razorpay_webhook_secret")
		if err != nil {
			return nil, fmt.Errorf("failed to extract razorpay_webhook_secret: %w", err)
		}

		return payment.NewRazorpayProvider(payment.RazorpayConfig{
			Key:           key,
			Secret:        secret,
			WebhookSecret: webhookSecret,
			Currency:      config.Currency,
		})

	case PaymentMethodLemonSqueezy:
		apiKey, err := extractString(config.Config, "lemonsqueezy_key")
		if err != nil {
			return nil, fmt.Errorf("failed to extract lemonsqueezy_key: %w", err)
		}

		storeID, err := extractString(config.Config, "lemonsqueezy_store_id")
		if err != nil {
			return nil, fmt.Errorf("failed to extract lemonsqueezy_store_id: %w", err)
		}

		oneTimeVariant, err := extractString(config.Config, "lemonsqueezy_one_time_variant_id")
		if err != nil {
			return nil, fmt.Errorf("failed to extract lemonsqueezy_one_time_variant_id: %w", err)
		}

		monthlyVariant, err := extractString(config.Config, "lemonsqueezy_subscription_monthly_variant_id")
		if err != nil {
			return nil, fmt.Errorf("failed to extract lemonsqueezy_subscription_monthly_variant_id: %w", err)
		}

		yearlyVariant, err := extractString(config.Config, "lemonsqueezy_subscription_yearly_variant_id")
		if err != nil {
			return nil, fmt.Errorf("failed to extract lemonsqueezy_subscription_yearly_variant_id: %w", err)
		}

		return payment.NewLemonSqueezyProvider(payment.LemonSqueezyConfig{
			APIKey:                       apiKey,
			StoreID:                      storeID,
			OneTimeVariantID:             oneTimeVariant,
			SubscriptionMonthlyVariantID: monthlyVariant,
			SubscriptionYearlyVariantID:  yearlyVariant,
			Currency:                     config.Currency,
		}, f.store, f.logger)

	case PaymentMethodMercadoPago:
		accessToken, err := extractString(config.Config, "mercadopago_access_token")
		if err != nil {
			return nil, fmt.Errorf("failed to extract mercadopago_access_token: %w", err)
		}

		return payment.NewMercadoPagoProvider(payment.MercadoPagoConfig{
			AccessToken: accessToken,
			Currency:    config.Currency,
		})

	default:
		return nil, ErrUnknownPaymentMethod(config.Method)
	}
}

// extractString safely extracts a string value from config map.
func extractString(config map[string]interface{}, key string) (string, error) {
	value, exists := config[key]
	if !exists {
		return "", ErrConfigKeyNotFound(key)
	}

	strValue, ok := value.(string)
	if !ok {
		return "", ErrConfigKeyWrongType(key, "string", value)
	}

	return strValue, nil
}
