package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by the payment core.
const (
	TypeOrderCreated      = "checkout.order_created"
	TypeOrderPaid         = "payment.order_paid"
	TypeEnrollmentCreated = "enrollment.created"
)

// Envelope wraps a domain event for transport.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope wraps an event payload. Marshal failures are reported by the
// publisher, so data is marshalled eagerly here.
func NewEnvelope(eventType string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// LineItem is a settled/ordered course as carried in events.
type LineItem struct {
	CourseID   string `json:"course_id"`
	Title      string `json:"title"`
	FinalPrice int64  `json:"final_price"`
}

// OrderCreated is published after an order and its payment sibling are persisted.
type OrderCreated struct {
	OrderID     string     `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	UserID      string     `json:"user_id"`
	TotalAmount int64      `json:"total_amount"`
	Currency    string     `json:"currency"`
	Items       []LineItem `json:"items"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OrderPaid is published after a settlement transaction commits.
type OrderPaid struct {
	OrderID     string     `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	UserID      string     `json:"user_id"`
	UserEmail   string     `json:"user_email"`
	UserName    string     `json:"user_name"`
	TotalAmount int64      `json:"total_amount"`
	Currency    string     `json:"currency"`
	Items       []LineItem `json:"items"`
	PaidAt      time.Time  `json:"paid_at"`
}

// EnrollmentCreated is published once per enrollment newly created by settlement.
type EnrollmentCreated struct {
	EnrollmentID string    `json:"enrollment_id"`
	UserID       string    `json:"user_id"`
	UserEmail    string    `json:"user_email"`
	CourseID     string    `json:"course_id"`
	CourseTitle  string    `json:"course_title"`
	OrderID      string    `json:"order_id"`
	EnrolledAt   time.Time `json:"enrolled_at"`
}
