package payment

import (
	"context"
	"errors"
	"testing"
)

func TestStripeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StripeConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg:  StripeConfig{Key: "pk_test_123", Secret: "sk_test_123", Currency: "USD"},
		},
		{
			name:    "missing currency",
			cfg:     StripeConfig{Key: "pk_test_123", Secret: "sk_test_123"},
			wantErr: true,
		},
		{
			name:    "missing publishable key",
			cfg:     StripeConfig{Secret: "sk_test_123", Currency: "USD"},
			wantErr: true,
		},
		{
			name:    "missing secret",
			cfg:     StripeConfig{Key: "pk_test_123", Currency: "USD"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStripeConfig_MissingCurrencySentinel(t *testing.T) {
	cfg := StripeConfig{Key: "pk_test_123", Secret: "sk_test_123"}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCurrency) {
		t.Errorf("Validate() error = %v, want ErrMissingCurrency", err)
	}
}

func TestStripeProvider_Verify(t *testing.T) {
	p := &StripeProvider{cfg: StripeConfig{Currency: "USD"}}

	tests := []struct {
		name    string
		event   string
		want    bool
		wantErr bool
	}{
		{
			name:  "completed and paid",
			event: `{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_status":"paid"}}}`,
			want:  true,
		},
		{
			name:  "completed but unpaid",
			event: `{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_status":"unpaid"}}}`,
			want:  false,
		},
		{
			name:  "unrelated event type",
			event: `{"type":"invoice.paid","data":{"object":{"id":"in_1","payment_status":"paid"}}}`,
			want:  false,
		},
		{
			name:    "malformed payload",
			event:   `{"type":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Verify(context.Background(), []byte(tt.event))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStripeProvider_PaymentIdentifier(t *testing.T) {
	p := &StripeProvider{}

	t.Run("prefers invoice id from metadata", func(t *testing.T) {
		event := `{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"invoice_id":"inv-42"}}}}`
		got, err := p.PaymentIdentifier([]byte(event))
		if err != nil {
			t.Fatalf("PaymentIdentifier() error = %v", err)
		}
		if got != "inv-42" {
			t.Errorf("PaymentIdentifier() = %q, want %q", got, "inv-42")
		}
	})

	t.Run("falls back to session id", func(t *testing.T) {
		event := `{"type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`
		got, err := p.PaymentIdentifier([]byte(event))
		if err != nil {
			t.Fatalf("PaymentIdentifier() error = %v", err)
		}
		if got != "cs_1" {
			t.Errorf("PaymentIdentifier() = %q, want %q", got, "cs_1")
		}
	})
}

func TestStripeProvider_Metadata(t *testing.T) {
	p := &StripeProvider{}
	event := `{"data":{"object":{"metadata":{"invoice_id":"inv-1","membership_id":"mem-1"}}}}`

	got, err := p.Metadata(context.Background(), []byte(event))
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if got["invoice_id"] != "inv-1" || got["membership_id"] != "mem-1" {
		t.Errorf("Metadata() = %v", got)
	}
}

func TestStripeProvider_SubscriptionID(t *testing.T) {
	p := &StripeProvider{}

	got, err := p.SubscriptionID([]byte(`{"data":{"object":{"subscription":"sub_99"}}}`))
	if err != nil {
		t.Fatalf("SubscriptionID() error = %v", err)
	}
	if got != "sub_99" {
		t.Errorf("SubscriptionID() = %q, want %q", got, "sub_99")
	}

	got, err = p.SubscriptionID([]byte(`{"data":{"object":{"id":"cs_1"}}}`))
	if err != nil {
		t.Fatalf("SubscriptionID() error = %v", err)
	}
	if got != "" {
		t.Errorf("SubscriptionID() = %q, want empty for one-time checkout", got)
	}
}

func TestStripeProvider_UnsupportedCapabilities(t *testing.T) {
	p := &StripeProvider{}
	ctx := context.Background()

	if err := p.Cancel(ctx, "sub_1"); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Cancel() error = %v, want ErrNotImplemented", err)
	}
	if _, err := p.ValidateSubscription(ctx, "sub_1"); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("ValidateSubscription() error = %v, want ErrNotImplemented", err)
	}
}
