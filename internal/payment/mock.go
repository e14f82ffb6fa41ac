package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockProvider is a mock payment provider for testing.
// Simulates successful checkout flows without calling any provider API.
type MockProvider struct {
	// ProviderName overrides the reported name; defaults to "mock".
	ProviderName string

	// InitiateFunc allows customizing checkout creation behavior
	InitiateFunc func(ctx context.Context, params InitiateParams) (*Handle, error)

	// VerifyFunc allows customizing payment verification behavior
	VerifyFunc func(ctx context.Context, event []byte) (bool, error)

	// PaymentIdentifierFunc allows customizing identifier extraction behavior
	PaymentIdentifierFunc func(event []byte) (string, error)

	// SubscriptionIDFunc allows customizing subscription id extraction behavior
	SubscriptionIDFunc func(event []byte) (string, error)

	// CancelFunc allows customizing subscription cancellation behavior
	CancelFunc func(ctx context.Context, subscriptionID string) error

	// ValidateSubscriptionFunc allows customizing subscription validation behavior
	ValidateSubscriptionFunc func(ctx context.Context, subscriptionID string) (bool, error)

	// Handles stores created checkout handles for retrieval
	Handles map[string]*Handle

	// Canceled records subscription ids passed to Cancel
	Canceled []string

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockProvider creates a new mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Handles: make(map[string]*Handle),
		CallLog: []string{},
	}
}

// Name returns the mock provider name.
func (m *MockProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

// Initiate creates a mock checkout handle.
func (m *MockProvider) Initiate(ctx context.Context, params InitiateParams) (*Handle, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Initiate(%s, %s)", params.Plan.Type, params.Product.Title))

	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, params)
	}

	// Default mock behavior: successful checkout creation
	h := &Handle{
		ID:          "mock_" + uuid.New().String(),
		RedirectURL: "https://checkout.example.com/" + uuid.New().String(),
	}
	m.Handles[h.ID] = h
	return h, nil
}

// Verify reports a mock verification result.
func (m *MockProvider) Verify(ctx context.Context, event []byte) (bool, error) {
	m.CallLog = append(m.CallLog, "Verify")

	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, event)
	}

	// Default mock behavior: every event verifies
	return true, nil
}

// PaymentIdentifier extracts a mock payment identifier.
func (m *MockProvider) PaymentIdentifier(event []byte) (string, error) {
	m.CallLog = append(m.CallLog, "PaymentIdentifier")

	if m.PaymentIdentifierFunc != nil {
		return m.PaymentIdentifierFunc(event)
	}

	return "mock_payment_" + uuid.New().String()[:8], nil
}

// Metadata returns empty mock metadata.
func (m *MockProvider) Metadata(ctx context.Context, event []byte) (map[string]string, error) {
	m.CallLog = append(m.CallLog, "Metadata")
	return map[string]string{}, nil
}

// SubscriptionID returns an empty mock subscription id.
func (m *MockProvider) SubscriptionID(event []byte) (string, error) {
	m.CallLog = append(m.CallLog, "SubscriptionID")

	if m.SubscriptionIDFunc != nil {
		return m.SubscriptionIDFunc(event)
	}

	return "", nil
}

// Cancel records a mock cancellation.
func (m *MockProvider) Cancel(ctx context.Context, subscriptionID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Cancel(%s)", subscriptionID))

	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, subscriptionID)
	}

	m.Canceled = append(m.Canceled, subscriptionID)
	return nil
}

// ValidateSubscription reports a mock subscription as valid.
func (m *MockProvider) ValidateSubscription(ctx context.Context, subscriptionID string) (bool, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("ValidateSubscription(%s)", subscriptionID))

	if m.ValidateSubscriptionFunc != nil {
		return m.ValidateSubscriptionFunc(ctx, subscriptionID)
	}

	return true, nil
}
