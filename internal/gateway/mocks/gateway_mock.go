package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/coursepay/internal/gateway"
)

// MockGateway is an in-memory gateway.Client for tests. Signatures are valid
// when they equal "sig(<orderID>|<paymentID>)".
type MockGateway struct {
	mu sync.Mutex

	Payments map[string]*gateway.PaymentState

	// For tracking calls in tests
	CreateIntentCalls []gateway.IntentRequest
	CreateIntentErr   error
	FetchPaymentErr   error

	nextIntent int
}

// NewMockGateway creates an empty mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Payments: make(map[string]*gateway.PaymentState),
	}
}

// CreateIntent records the request and returns a deterministic intent id.
func (m *MockGateway) CreateIntent(ctx context.Context, req gateway.IntentRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateIntentCalls = append(m.CreateIntentCalls, req)
	if m.CreateIntentErr != nil {
		return "", m.CreateIntentErr
	}
	m.nextIntent++
	return fmt.Sprintf("intent_%04d", m.nextIntent), nil
}

// FetchPayment returns a registered payment state, or ErrPaymentFetch.
func (m *MockGateway) FetchPayment(ctx context.Context, paymentID string) (*gateway.PaymentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchPaymentErr != nil {
		return nil, m.FetchPaymentErr
	}
	p, ok := m.Payments[paymentID]
	if !ok {
		return nil, gateway.ErrPaymentFetch
	}
	cp := *p
	return &cp, nil
}

// VerifySignature accepts signatures of the form "sig(<orderID>|<paymentID>)".
func (m *MockGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return signature == Signature(gatewayOrderID, gatewayPaymentID)
}

// Signature returns the signature the mock considers valid for the pair.
func Signature(gatewayOrderID, gatewayPaymentID string) string {
	return fmt.Sprintf("sig(%s|%s)", gatewayOrderID, gatewayPaymentID)
}

// AddCapturedPayment registers a captured payment so FetchPayment succeeds.
func (m *MockGateway) AddCapturedPayment(paymentID, orderID string, amount int64, currency string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Payments[paymentID] = &gateway.PaymentState{
		ID:       paymentID,
		OrderID:  orderID,
		Status:   gateway.StateCaptured,
		Method:   "card",
		Amount:   amount,
		Currency: currency,
	}
}
