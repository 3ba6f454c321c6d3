package order

import (
	"errors"
	"fmt"
	"time"
)

// PaymentStatus is the lifecycle state of a Payment.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentAuthorized        PaymentStatus = "authorized"
	PaymentCaptured          PaymentStatus = "captured"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentFailed            PaymentStatus = "failed"
	PaymentCancelled         PaymentStatus = "cancelled"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

var (
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrInvalidPaymentTransition = errors.New("invalid payment status transition")
	ErrAmountMismatch           = errors.New("payment amount does not match order total")
)

// validPaymentTransitions mirrors the order table. Only pending -> succeeded is
// exercised by settlement; the refund-side transitions are extension points.
var validPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentProcessing, PaymentAuthorized, PaymentSucceeded, PaymentFailed, PaymentCancelled},
	PaymentProcessing:        {PaymentAuthorized, PaymentCaptured, PaymentSucceeded, PaymentFailed},
	PaymentAuthorized:        {PaymentCaptured, PaymentSucceeded, PaymentFailed},
	PaymentCaptured:          {PaymentSucceeded, PaymentRefunded, PaymentPartiallyRefunded},
	PaymentSucceeded:         {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentPartiallyRefunded: {PaymentRefunded},
	PaymentFailed:            {},
	PaymentCancelled:         {},
	PaymentRefunded:          {},
}

// Payment is one attempt to collect money for one Order via one gateway.
// PaymentID is the gateway-assigned intent id and is unique across payments.
type Payment struct {
	ID            string        `json:"id"`
	PaymentID     string        `json:"payment_id"`
	OrderID       string        `json:"order_id"`
	Provider      string        `json:"provider"`
	Amount        int64         `json:"amount"` // minor units; equals the order's TotalAmount
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	CapturedAt    *time.Time    `json:"captured_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CanTransitionTo checks if the payment can move to the target status.
func (p *Payment) CanTransitionTo(target PaymentStatus) bool {
	allowed, exists := validPaymentTransitions[p.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionError returns an error describing an invalid payment transition.
func (p *Payment) TransitionError(target PaymentStatus) error {
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidPaymentTransition, p.Status, target)
}
