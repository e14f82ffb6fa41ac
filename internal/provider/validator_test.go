package provider

import (
	"strings"
	"testing"
)

func validStripeConfig() *TenantPaymentConfig {
	return &TenantPaymentConfig{
		Method:   PaymentMethodStripe,
		Currency: "USD",
		Config: map[string]interface{}{
			"stripe_key":    "pk_test_abc",
			"stripe_secret": "sk_test_abc",
		},
	}
}

func validLemonSqueezyConfig() *TenantPaymentConfig {
	return &TenantPaymentConfig{
		Method:   PaymentMethodLemonSqueezy,
		Currency: "USD",
		Config: map[string]interface{}{
			"lemonsqueezy_key":                             "lsq-key",
			"lemonsqueezy_store_id":                        "101",
			"lemonsqueezy_webhook_secret":                  "whsec",
			"lemonsqueezy_one_time_variant_id":             "201",
			"lemonsqueezy_subscription_monthly_variant_id": "202",
			"lemonsqueezy_subscription_yearly_variant_id":  "203",
		},
	}
}

func TestDefaultValidator_ValidConfigs(t *testing.T) {
	v := NewDefaultValidator()

	tests := []struct {
		name   string
		config *TenantPaymentConfig
	}{
		{"stripe", validStripeConfig()},
		{
			"razorpay",
			&TenantPaymentConfig{
				Method:   PaymentMethodRazorpay,
				Currency: "INR",
				Config: map[string]interface{}{
					"razorpay_key":            "rzp_test_abc",
					"razorpay_secret":         "secret",
					"razorpay_webhook_secret": "whsec",
				},
			},
		},
		{"lemonsqueezy", validLemonSqueezyConfig()},
		{
			"mercadopago",
			&TenantPaymentConfig{
				Method:   PaymentMethodMercadoPago,
				Currency: "BRL",
				Config: map[string]interface{}{
					"mercadopago_access_token": "APP_USR-token",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidatePaymentConfig(tt.config)
			if !result.Valid {
				t.Errorf("expected valid config, got errors: %v", result.Errors)
			}
		})
	}
}

func TestDefaultValidator_InvalidConfigs(t *testing.T) {
	v := NewDefaultValidator()

	tests := []struct {
		name      string
		config    *TenantPaymentConfig
		wantError string
	}{
		{
			name:      "nil config",
			config:    nil,
			wantError: "config cannot be nil",
		},
		{
			name: "missing currency",
			config: &TenantPaymentConfig{
				Method: PaymentMethodStripe,
				Config: map[string]interface{}{
					"stripe_key":    "pk_test_abc",
					"stripe_secret": "sk_test_abc",
				},
			},
			wantError: "currency is required",
		},
		{
			name: "nil config map",
			config: &TenantPaymentConfig{
				Method:   PaymentMethodStripe,
				Currency: "USD",
			},
			wantError: "config map cannot be nil",
		},
		{
			name: "stripe key without pk_ prefix",
			config: &TenantPaymentConfig{
				Method:   PaymentMethodStripe,
				Currency: "USD",
				Config: map[string]interface{}{
					"stripe_key":    "sk_test_abc",
					"stripe_secret": "sk_test_abc",
				},
			},
			wantError: "must start with pk_",
		},
		{
			name: "razorpay key without rzp_ prefix",
			config: &TenantPaymentConfig{
				Method:   PaymentMethodRazorpay,
				Currency: "INR",
				Config: map[string]interface{}{
					"razorpay_key":            "key_abc",
					"razorpay_secret":         "secret",
					"razorpay_webhook_secret": "whsec",
				},
			},
			wantError: "must start with rzp_",
		},
		{
			name: "razorpay missing webhook secret",
			config: &TenantPaymentConfig{
				Method:   PaymentMethodRazorpay,
				Currency: "INR",
				Config: map[string]interface{}{
					"razorpay_key":    "rzp_test_abc",
					"razorpay_secret": "secret",
				},
			},
			wantError: "missing required field: razorpay_webhook_secret",
		},
		{
			name: "config value of wrong type",
			config: &TenantPaymentConfig{
				Method:   PaymentMethodMercadoPago,
				Currency: "BRL",
				Config: map[string]interface{}{
					"mercadopago_access_token": 12345,
				},
			},
			wantError: "must be a string",
		},
		{
			name: "empty credential",
			config: &TenantPaymentConfig{
				Method:   PaymentMethodMercadoPago,
				Currency: "BRL",
				Config: map[string]interface{}{
					"mercadopago_access_token": "",
				},
			},
			wantError: "cannot be empty",
		},
		{
			name: "unknown method",
			config: &TenantPaymentConfig{
				Method:   "bitcoin",
				Currency: "USD",
				Config:   map[string]interface{}{},
			},
			wantError: "unknown payment method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidatePaymentConfig(tt.config)
			if result.Valid {
				t.Fatal("expected invalid config")
			}
			found := false
			for _, e := range result.Errors {
				if strings.Contains(e, tt.wantError) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %q", result.Errors, tt.wantError)
			}
		})
	}
}

func TestDefaultValidator_LemonSqueezyRequiresEveryVariant(t *testing.T) {
	v := NewDefaultValidator()

	for _, key := range []string{
		"lemonsqueezy_one_time_variant_id",
		"lemonsqueezy_subscription_monthly_variant_id",
		"lemonsqueezy_subscription_yearly_variant_id",
		"lemonsqueezy_webhook_secret",
	} {
		t.Run(key, func(t *testing.T) {
			config := validLemonSqueezyConfig()
			delete(config.Config, key)
			if result := v.ValidatePaymentConfig(config); result.Valid {
				t.Errorf("config without %s should not validate", key)
			}
		})
	}
}

func TestDefaultValidator_RecognizedButUnimplemented(t *testing.T) {
	v := NewDefaultValidator()

	// Credentials for upcoming gateways may be stored ahead of rollout.
	for _, method := range []PaymentMethod{PaymentMethodPayPal, PaymentMethodPaytm} {
		t.Run(string(method), func(t *testing.T) {
			result := v.ValidatePaymentConfig(&TenantPaymentConfig{
				Method:   method,
				Currency: "USD",
				Config:   map[string]interface{}{},
			})
			if !result.Valid {
				t.Errorf("expected valid, got errors: %v", result.Errors)
			}
		})
	}
}

func TestIsKnownPaymentMethod(t *testing.T) {
	for _, method := range []PaymentMethod{
		PaymentMethodStripe, PaymentMethodRazorpay, PaymentMethodLemonSqueezy,
		PaymentMethodMercadoPago, PaymentMethodPayPal, PaymentMethodPaytm,
	} {
		if !IsKnownPaymentMethod(method) {
			t.Errorf("IsKnownPaymentMethod(%s) = false, want true", method)
		}
	}
	if IsKnownPaymentMethod("bitcoin") {
		t.Error("IsKnownPaymentMethod(bitcoin) = true, want false")
	}
}
