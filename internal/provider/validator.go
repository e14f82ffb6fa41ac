package provider

// PaymentValidator validates payment configurations before creating adapter
// instances. Validation happens at two points:
// 1. When a tenant saves/updates payment credentials (via admin UI)
// 2. Before creating an adapter instance (in factory)
type PaymentValidator interface {
	// ValidatePaymentConfig validates a tenant's payment configuration.
	// Returns ValidationResult with any configuration errors.
	ValidatePaymentConfig(config *TenantPaymentConfig) *ValidationResult
}

// DefaultValidator implements PaymentValidator with method-specific rules.
type DefaultValidator struct {
	// No dependencies needed for basic validation
	// Could add external API validation in the future (e.g., test a Stripe key)
}

// NewDefaultValidator creates a payment configuration validator.
func NewDefaultValidator() *DefaultValidator {
	return &DefaultValidator{}
}

// ValidatePaymentConfig validates a tenant's payment configuration.
func (v *DefaultValidator) ValidatePaymentConfig(config *TenantPaymentConfig) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if config == nil {
		result.AddError("config cannot be nil")
		return result
	}

	if config.Currency == "" {
		result.AddError("currency is required")
	}

	if config.Config == nil {
		result.AddError("config map cannot be nil")
		return result
	}

	switch config.Method {
	case PaymentMethodStripe:
		requireStringPrefix(config.Config, "stripe_key", "pk_", result)
		requireStringPrefix(config.Config, "stripe_secret", "sk_", result)
	case PaymentMethodRazorpay:
		requireStringPrefix(config.Config, "razorpay_key", "rzp_", result)
		requireString(config.Config, "razorpay_secret", result)
		requireString(config.Config, "razorpay_webhook_secret", result)
	case PaymentMethodLemonSqueezy:
		requireString(config.Config, "lemonsqueezy_key", result)
		requireString(config.Config, "lemonsqueezy_store_id", result)
		requireString(config.Config, "lemonsqueezy_webhook_secret", result)
		requireString(config.Config, "lemonsqueezy_one_time_variant_id", result)
		requireString(config.Config, "lemonsqueezy_subscription_monthly_variant_id", result)
		requireString(config.Config, "lemonsqueezy_subscription_yearly_variant_id", result)
	case PaymentMethodMercadoPago:
		requireString(config.Config, "mercadopago_access_token", result)
	case PaymentMethodPayPal, PaymentMethodPaytm:
		// Credentials can be stored ahead of adapter rollout; the factory
		// rejects instantiation separately.
	default:
		result.AddError("unknown payment method: " + string(config.Method))
	}

	return result
}

// requireString validates that a config field exists and is a non-empty string.
func requireString(config map[string]interface{}, key string, result *ValidationResult) string {
	value, exists := config[key]
	if !exists {
		result.AddError("missing required field: " + key)
		return ""
	}

	strValue, ok := value.(string)
	if !ok {
		result.AddError("field " + key + " must be a string")
		return ""
	}

	if strValue == "" {
		result.AddError("field " + key + " cannot be empty")
		return ""
	}

	return strValue
}

// requireStringPrefix validates that a config field is a string starting with prefix.
func requireStringPrefix(config map[string]interface{}, key string, prefix string, result *ValidationResult) string {
	value := requireString(config, key, result)
	if value == "" {
		return ""
	}

	if len(value) < len(prefix) || value[:len(prefix)] != prefix {
		result.AddError("field " + key + " must start with " + prefix)
		return ""
	}

	return value
}
