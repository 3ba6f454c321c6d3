package order

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/example/coursepay/internal/domain/user"
)

// Status is the lifecycle state of an Order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must contain at least one course")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrOrderAlreadyPaid  = errors.New("order is already paid")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrOrderExpired      = errors.New("order has expired")
)

// validTransitions defines allowed order state transitions. Refund transitions
// are documented in the table but no operation in this service drives them.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusPaid, StatusFailed, StatusCancelled},
	StatusPaid:       {StatusRefunded},
	StatusFailed:     {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// Item is an immutable snapshot of one purchased course, priced at order time.
type Item struct {
	CourseID      string `json:"course_id"`
	Title         string `json:"title"`
	InstructorID  string `json:"instructor_id"`
	OriginalPrice int64  `json:"original_price"` // minor units (paise)
	Discount      int64  `json:"discount"`
	FinalPrice    int64  `json:"final_price"`
}

// Order is one purchase attempt for one or more courses by one user.
// Once paid, the amounts and item snapshots are immutable.
type Order struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"order_number"`
	UserID          string        `json:"user_id"`
	UserSnapshot    user.Snapshot `json:"user_snapshot"`
	Items           []Item        `json:"items"`
	Subtotal        int64         `json:"subtotal"`
	TotalDiscount   int64         `json:"total_discount"`
	TotalAmount     int64         `json:"total_amount"`
	Currency        string        `json:"currency"`
	Status          Status        `json:"status"`
	PaymentIntentID string        `json:"payment_intent_id"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	ExpiresAt       time.Time     `json:"expires_at"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// CanTransitionTo checks if the order can move to the target status.
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
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

// TransitionError returns an appropriate error for an invalid transition.
func (o *Order) TransitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusPaid && target == StatusPaid:
		return ErrOrderAlreadyPaid
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.Status, target)
	}
}

// Expired reports whether the order's settlement window has passed.
// Paid orders never expire.
func (o *Order) Expired(now time.Time) bool {
	if o.Status == StatusPaid {
		return false
	}
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// CourseIDs returns the course ids of all line items, in order.
func (o *Order) CourseIDs() []string {
	ids := make([]string, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.CourseID
	}
	return ids
}

const orderNumberAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

// NewOrderNumber generates a globally-unique, human-readable order number:
// a UTC timestamp prefix plus a random suffix. The number doubles as the
// gateway-side receipt key.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(fmt.Sprintf("order number entropy: %v", err))
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("CM-%s-%s", now.UTC().Format("20060102150405"), string(buf))
}
