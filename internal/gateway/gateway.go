package gateway

import (
	"context"
	"errors"
)

var (
	ErrIntentCreation     = errors.New("gateway intent creation failed")
	ErrPaymentFetch       = errors.New("gateway payment fetch failed")
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrPaymentNotCaptured = errors.New("payment not captured by gateway")
)

// Gateway-side payment states we care about.
const (
	StateCreated    = "created"
	StateAuthorized = "authorized"
	StateCaptured   = "captured"
	StateFailed     = "failed"
	StateRefunded   = "refunded"
)

// IntentRequest describes a gateway-side payment intent to be created before
// the user completes checkout. Receipt carries the local order number so the
// intent can be reconciled manually if the local write fails afterwards.
type IntentRequest struct {
	Amount   int64             // minor units (paise)
	Currency string
	Receipt  string
	Notes    map[string]string
}

// PaymentState is the gateway's authoritative view of a payment.
type PaymentState struct {
	ID       string
	OrderID  string
	Status   string
	Method   string
	Amount   int64
	Currency string
}

// Captured reports whether the gateway has actually collected the money.
func (p *PaymentState) Captured() bool {
	return p.Status == StateCaptured || p.Status == StateAuthorized
}

// Client is the payment gateway surface the order and settlement services
// depend on. It is injected so tests can substitute a fake.
type Client interface {
	// CreateIntent registers a pending charge with the gateway and returns
	// the gateway-side intent id.
	CreateIntent(ctx context.Context, req IntentRequest) (string, error)

	// FetchPayment loads the authoritative payment state from the gateway.
	FetchPayment(ctx context.Context, paymentID string) (*PaymentState, error)

	// VerifySignature checks a checkout callback signature. It must use a
	// constant-time comparison.
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}
