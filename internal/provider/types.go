package provider

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// PaymentMethod represents a payment gateway a tenant can configure.
type PaymentMethod string

const (
	// Implemented gateways
	PaymentMethodStripe       PaymentMethod = "stripe"
	PaymentMethodRazorpay     PaymentMethod = "razorpay"
	PaymentMethodLemonSqueezy PaymentMethod = "lemonsqueezy"
	PaymentMethodMercadoPago  PaymentMethod = "mercadopago"

	// Recognized but not yet implemented; configs for these validate as
	// known methods so the admin UI can store them ahead of rollout.
	PaymentMethodPayPal PaymentMethod = "paypal"
	PaymentMethodPaytm  PaymentMethod = "paytm"
)

// IsKnownPaymentMethod reports whether the method names any gateway the
// platform recognizes, implemented or not.
func IsKnownPaymentMethod(method PaymentMethod) bool {
	switch method {
	case PaymentMethodStripe, PaymentMethodRazorpay, PaymentMethodLemonSqueezy,
		PaymentMethodMercadoPago, PaymentMethodPayPal, PaymentMethodPaytm:
		return true
	}
	return false
}

// TenantPaymentConfig represents a tenant's payment gateway configuration.
// This is the domain model corresponding to the tenant_payment_configs
// database table.
type TenantPaymentConfig struct {
	ID       pgtype.UUID
	TenantID pgtype.UUID
	Method   PaymentMethod

	// Currency is the site-level ISO 4217 currency every checkout uses.
	Currency string

	// Config holds the decrypted credential map for the method.
	Config map[string]interface{}

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidationResult represents the outcome of validating a payment config.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// AddError adds an error message to the validation result.
func (v *ValidationResult) AddError(err string) {
	v.Valid = false
	v.Errors = append(v.Errors, err)
}
