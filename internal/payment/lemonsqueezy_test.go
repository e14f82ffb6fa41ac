package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/courseloom/courseloom/internal/domain"
	"github.com/google/uuid"
)

func testLemonSqueezyConfig() LemonSqueezyConfig {
	return LemonSqueezyConfig{
		APIKey:                       "lsq-key",
		StoreID:                      "101",
		OneTimeVariantID:             "201",
		SubscriptionMonthlyVariantID: "202",
		SubscriptionYearlyVariantID:  "203",
		Currency:                     "USD",
	}
}

// newTestLemonSqueezy builds an adapter pointed at a local test server.
func newTestLemonSqueezy(t *testing.T, store domain.MembershipStore, handler http.Handler) (*LemonSqueezyProvider, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewLemonSqueezyProvider(testLemonSqueezyConfig(), store, logger)
	if err != nil {
		t.Fatalf("NewLemonSqueezyProvider() error = %v", err)
	}
	p.baseURL = srv.URL
	return p, srv
}

func TestLemonSqueezyConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LemonSqueezyConfig)
	}{
		{"missing api key", func(c *LemonSqueezyConfig) { c.APIKey = "" }},
		{"missing store id", func(c *LemonSqueezyConfig) { c.StoreID = "" }},
		{"missing one-time variant", func(c *LemonSqueezyConfig) { c.OneTimeVariantID = "" }},
		{"missing monthly variant", func(c *LemonSqueezyConfig) { c.SubscriptionMonthlyVariantID = "" }},
		{"missing yearly variant", func(c *LemonSqueezyConfig) { c.SubscriptionYearlyVariantID = "" }},
		{"missing currency", func(c *LemonSqueezyConfig) { c.Currency = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testLemonSqueezyConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}

	cfg := testLemonSqueezyConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on complete config: %v", err)
	}
}

func TestLemonSqueezyProvider_Initiate(t *testing.T) {
	var captured map[string]interface{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkouts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer lsq-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Api-Version"); got != "20240315" {
			t.Errorf("X-Api-Version = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"chk_1","attributes":{"url":"https://store.lemonsqueezy.com/checkout/custom/abc"}}}`)
	})

	p, _ := newTestLemonSqueezy(t, domain.NewMockMembershipStore(), handler)

	handle, err := p.Initiate(context.Background(), InitiateParams{
		Metadata: map[string]string{MetadataKeyInvoiceID: "inv-1"},
		Plan: domain.PaymentPlan{
			Type:                 domain.PlanTypeEMI,
			EMIAmount:            50,
			EMITotalInstallments: 4,
		},
		Product:    domain.Product{Title: "Go Course"},
		SuccessURL: "https://academy.test/thanks",
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if handle.ID != "chk_1" {
		t.Errorf("handle.ID = %q, want chk_1", handle.ID)
	}
	if handle.RedirectURL == "" {
		t.Error("handle.RedirectURL should carry the hosted checkout URL")
	}

	data := captured["data"].(map[string]interface{})
	attrs := data["attributes"].(map[string]interface{})

	// EMI prices per installment, in cents.
	if got := attrs["custom_price"].(float64); got != 5000 {
		t.Errorf("custom_price = %v, want 5000", got)
	}

	custom := attrs["checkout_data"].(map[string]interface{})["custom"].(map[string]interface{})
	if custom[MetadataKeyInvoiceID] != "inv-1" {
		t.Errorf("checkout_data.custom = %v", custom)
	}

	expires, err := time.Parse(time.RFC3339, attrs["expires_at"].(string))
	if err != nil {
		t.Fatalf("expires_at not RFC3339: %v", err)
	}
	ttl := time.Until(expires)
	if ttl < 29*time.Minute || ttl > 31*time.Minute {
		t.Errorf("checkout TTL = %v, want about 30m", ttl)
	}

	rels := data["relationships"].(map[string]interface{})
	variant := rels["variant"].(map[string]interface{})["data"].(map[string]interface{})
	if variant["id"] != "202" {
		t.Errorf("EMI should use the monthly variant, got %v", variant["id"])
	}
}

func TestLemonSqueezyProvider_VariantFor(t *testing.T) {
	p := &LemonSqueezyProvider{cfg: testLemonSqueezyConfig()}

	tests := []struct {
		name string
		plan domain.PaymentPlan
		want string
	}{
		{"one-time", domain.PaymentPlan{Type: domain.PlanTypeOneTime}, "201"},
		{"emi", domain.PaymentPlan{Type: domain.PlanTypeEMI}, "202"},
		{"monthly subscription", domain.PaymentPlan{Type: domain.PlanTypeSubscription, SubscriptionMonthlyAmount: 29}, "202"},
		{"yearly subscription", domain.PaymentPlan{Type: domain.PlanTypeSubscription, SubscriptionYearlyAmount: 290}, "203"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.variantFor(tt.plan)
			if err != nil {
				t.Fatalf("variantFor() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("variantFor() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := p.variantFor(domain.PaymentPlan{Type: domain.PlanTypeFree}); !errors.Is(err, ErrInvalidPlanType) {
		t.Errorf("variantFor(free) error = %v, want ErrInvalidPlanType", err)
	}
}

func TestLemonSqueezyProvider_Verify_OrderCreated(t *testing.T) {
	tests := []struct {
		name     string
		category string
		want     bool
	}{
		{"one-time order confirms", "one_time", true},
		{"subscription initial order does not confirm", "subscription", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/prices/777" {
					t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				fmt.Fprintf(w, `{"data":{"attributes":{"category":%q}}}`, tt.category)
			})
			p, _ := newTestLemonSqueezy(t, domain.NewMockMembershipStore(), handler)

			event := `{"meta":{"event_name":"order_created"},"data":{"id":"1","attributes":{"first_order_item":{"price_id":777}}}}`
			got, err := p.Verify(context.Background(), []byte(event))
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLemonSqueezyProvider_Verify_SubscriptionPayment(t *testing.T) {
	p, _ := newTestLemonSqueezy(t, domain.NewMockMembershipStore(), http.NotFoundHandler())

	event := `{"meta":{"event_name":"subscription_payment_success","custom_data":{"invoice_id":"inv-1"}},"data":{"id":"9","attributes":{"subscription_id":55}}}`
	got, err := p.Verify(context.Background(), []byte(event))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !got {
		t.Error("Verify() = false, want true for subscription_payment_success")
	}
}

func TestLemonSqueezyProvider_Verify_SubscriptionResumed_EMIGuard(t *testing.T) {
	membershipID := uuid.New()

	tests := []struct {
		name       string
		paid       int
		wantCancel bool
	}{
		{"below installment cap leaves subscription alone", 2, false},
		{"at installment cap cancels", 3, true},
		{"beyond installment cap cancels", 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := domain.NewMockMembershipStore()
			store.Memberships[membershipID] = &domain.Membership{
				ID:        membershipID,
				SessionID: "sess-1",
				Status:    domain.MembershipStatusActive,
				Plan: &domain.PaymentPlan{
					Type:                 domain.PlanTypeEMI,
					EMIAmount:            50,
					EMITotalInstallments: 3,
				},
			}
			store.PaidInvoiceCounts["sess-1"] = tt.paid

			canceled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodDelete && r.URL.Path == "/v1/subscriptions/88" {
					canceled = true
					fmt.Fprint(w, `{"data":{"id":"88"}}`)
					return
				}
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			})
			p, _ := newTestLemonSqueezy(t, store, handler)

			event := fmt.Sprintf(
				`{"meta":{"event_name":"subscription_resumed","custom_data":{"membership_id":%q}},"data":{"id":"88"}}`,
				membershipID,
			)
			got, err := p.Verify(context.Background(), []byte(event))
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got {
				t.Error("subscription_resumed must never confirm a payment")
			}
			if canceled != tt.wantCancel {
				t.Errorf("canceled = %v, want %v", canceled, tt.wantCancel)
			}
		})
	}
}

func TestLemonSqueezyProvider_Verify_SubscriptionResumed_NonEMI(t *testing.T) {
	membershipID := uuid.New()
	store := domain.NewMockMembershipStore()
	store.Memberships[membershipID] = &domain.Membership{
		ID:        membershipID,
		SessionID: "sess-1",
		Plan:      &domain.PaymentPlan{Type: domain.PlanTypeSubscription, SubscriptionMonthlyAmount: 29},
	}

	// Any API call would be a wrongful cancel.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
	})
	p, _ := newTestLemonSqueezy(t, store, handler)

	event := fmt.Sprintf(
		`{"meta":{"event_name":"subscription_resumed","custom_data":{"membership_id":%q}},"data":{"id":"88"}}`,
		membershipID,
	)
	got, err := p.Verify(context.Background(), []byte(event))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got {
		t.Error("Verify() = true, want false")
	}
}

func TestLemonSqueezyProvider_SubscriptionID(t *testing.T) {
	p := &LemonSqueezyProvider{}

	// Payment events carry subscription_id as a number.
	event := `{"meta":{"event_name":"subscription_payment_success"},"data":{"id":"9","attributes":{"subscription_id":55}}}`
	got, err := p.SubscriptionID([]byte(event))
	if err != nil {
		t.Fatalf("SubscriptionID() error = %v", err)
	}
	if got != "55" {
		t.Errorf("SubscriptionID() = %q, want %q", got, "55")
	}

	// Lifecycle events are the subscription object itself.
	event = `{"meta":{"event_name":"subscription_resumed"},"data":{"id":"88"}}`
	got, err = p.SubscriptionID([]byte(event))
	if err != nil {
		t.Fatalf("SubscriptionID() error = %v", err)
	}
	if got != "88" {
		t.Errorf("SubscriptionID() = %q, want %q", got, "88")
	}
}

func TestLemonSqueezyProvider_Cancel(t *testing.T) {
	var method, path string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		fmt.Fprint(w, `{"data":{"id":"42"}}`)
	})
	p, _ := newTestLemonSqueezy(t, domain.NewMockMembershipStore(), handler)

	if err := p.Cancel(context.Background(), "42"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if method != http.MethodDelete || path != "/v1/subscriptions/42" {
		t.Errorf("Cancel() issued %s %s", method, path)
	}
}

func TestLemonSqueezyProvider_ValidateSubscription(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"active", true},
		{"on_trial", true},
		{"cancelled", false},
		{"expired", false},
		{"past_due", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"data":{"attributes":{"status":%q}}}`, tt.status)
			})
			p, _ := newTestLemonSqueezy(t, domain.NewMockMembershipStore(), handler)

			got, err := p.ValidateSubscription(context.Background(), "42")
			if err != nil {
				t.Fatalf("ValidateSubscription() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateSubscription(%s) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestLemonSqueezyProvider_APIErrorSurfaced(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errors":[{"title":"Unauthorized","detail":"Invalid API key"}]}`)
	})
	p, _ := newTestLemonSqueezy(t, domain.NewMockMembershipStore(), handler)

	err := p.Cancel(context.Background(), "42")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("Cancel() error = %T, want *ProviderError", err)
	}
	if pe.Provider != NameLemonSqueezy {
		t.Errorf("ProviderError.Provider = %q", pe.Provider)
	}
}
