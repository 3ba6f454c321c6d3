package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/coursepay/internal/domain/course"
	"github.com/example/coursepay/internal/domain/order"
	"github.com/example/coursepay/internal/events"
	"github.com/example/coursepay/internal/gateway"
	"github.com/example/coursepay/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const provider = "razorpay"

var (
	ErrNoCourses          = errors.New("at least one course is required")
	ErrCoursesUnavailable = errors.New("some courses are unavailable")
	ErrUserNotFound       = errors.New("user not found")
)

// FreeCourseError rejects orders containing free courses; free courses are
// enrolled directly elsewhere and never pass through payment.
type FreeCourseError struct {
	Titles []string
}

func (e *FreeCourseError) Error() string {
	return "free courses cannot be ordered: " + strings.Join(e.Titles, ", ")
}

// AlreadyEnrolledError names courses the user already holds access to.
type AlreadyEnrolledError struct {
	Titles []string
}

func (e *AlreadyEnrolledError) Error() string {
	return "already enrolled in: " + strings.Join(e.Titles, ", ")
}

// DuplicateOrderError names courses already referenced by an in-flight or paid
// order of the same user.
type DuplicateOrderError struct {
	Titles []string
}

func (e *DuplicateOrderError) Error() string {
	return "an open order already exists for: " + strings.Join(e.Titles, ", ")
}

// ItemBreakdown is the per-course pricing returned to the client.
type ItemBreakdown struct {
	CourseID      string `json:"courseId"`
	Title         string `json:"title"`
	OriginalPrice int64  `json:"originalPrice"`
	Discount      int64  `json:"discount"`
	FinalPrice    int64  `json:"finalPrice"`
}

// Result is everything the client needs to hand off to the gateway checkout.
type Result struct {
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	IntentID      string          `json:"gatewayIntentId"`
	Currency      string          `json:"currency"`
	Subtotal      int64           `json:"subtotal"`
	TotalDiscount int64           `json:"totalDiscount"`
	TotalAmount   int64           `json:"totalAmount"`
	Items         []ItemBreakdown `json:"items"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

// Service assembles orders: it validates a purchase request, prices it,
// creates the gateway intent and persists the paired Order and Payment.
type Service struct {
	ledger   store.Ledger
	gateway  gateway.Client
	events   events.Publisher
	currency string
	orderTTL time.Duration
	log      *logrus.Entry
	now      func() time.Time
}

// NewService creates a checkout service. events may be nil when no broker is
// configured.
func NewService(ledger store.Ledger, gw gateway.Client, pub events.Publisher, currency string, orderTTL time.Duration, log *logrus.Entry) *Service {
	return &Service{
		ledger:   ledger,
		gateway:  gw,
		events:   pub,
		currency: currency,
		orderTTL: orderTTL,
		log:      log,
		now:      time.Now,
	}
}

// CreateOrder validates the request and produces a pending Order/Payment pair
// plus a gateway intent. Validation fails fast: the first violated rule wins.
func (s *Service) CreateOrder(ctx context.Context, userID string, courseIDs []string) (*Result, error) {
	if len(courseIDs) == 0 {
		return nil, ErrNoCourses
	}

	buyer, err := s.ledger.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load buyer: %w", err)
	}
	if buyer == nil {
		return nil, ErrUserNotFound
	}

	courses, err := s.ledger.PublishedCoursesByIDs(ctx, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	if len(courses) != len(uniqueIDs(courseIDs)) {
		return nil, ErrCoursesUnavailable
	}

	if titles := freeTitles(courses); len(titles) > 0 {
		return nil, &FreeCourseError{Titles: titles}
	}

	byID := make(map[string]course.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	enrolled, err := s.ledger.EnrolledCourseIDs(ctx, userID, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("check enrollments: %w", err)
	}
	if len(enrolled) > 0 {
		return nil, &AlreadyEnrolledError{Titles: titlesOf(byID, enrolled)}
	}

	inFlight, err := s.ledger.ActiveOrderCourseIDs(ctx, userID, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("check open orders: %w", err)
	}
	if len(inFlight) > 0 {
		return nil, &DuplicateOrderError{Titles: titlesOf(byID, inFlight)}
	}

	items := make([]order.Item, 0, len(courses))
	for _, c := range courses {
		items = append(items, order.NewItem(c))
	}
	subtotal, totalDiscount, totalAmount := order.ComputeTotals(items)

	now := s.now().UTC()
	orderNumber := order.NewOrderNumber(now)

	// Gateway first: if the intent cannot be created nothing is written
	// locally. The notes make a later orphaned intent reconcilable by hand.
	intentID, err := s.gateway.CreateIntent(ctx, gateway.IntentRequest{
		Amount:   totalAmount,
		Currency: s.currency,
		Receipt:  orderNumber,
		Notes: map[string]string{
			"user_id":    userID,
			"course_ids": strings.Join(courseIDs, ","),
		},
	})
	if err != nil {
		s.log.WithError(err).WithField("order_number", orderNumber).Error("gateway intent creation failed")
		return nil, err
	}

	o := &order.Order{
		ID:              uuid.New().String(),
		OrderNumber:     orderNumber,
		UserID:          userID,
		UserSnapshot:    buyer.Snapshot(),
		Items:           items,
		Subtotal:        subtotal,
		TotalDiscount:   totalDiscount,
		TotalAmount:     totalAmount,
		Currency:        s.currency,
		Status:          order.StatusProcessing,
		PaymentIntentID: intentID,
		ExpiresAt:       now.Add(s.orderTTL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	p := &order.Payment{
		ID:        uuid.New().String(),
		PaymentID: intentID,
		OrderID:   o.ID,
		Provider:  provider,
		Amount:    totalAmount,
		Currency:  s.currency,
		Status:    order.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.ledger.CreateOrderWithPayment(ctx, o, p); err != nil {
		// The gateway intent is now orphaned; its receipt/notes are the only
		// handle for manual reconciliation.
		s.log.WithError(err).WithFields(logrus.Fields{
			"order_number": orderNumber,
			"intent_id":    intentID,
		}).Error("order persistence failed after intent creation")
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"user_id":      userID,
		"total_amount": totalAmount,
	}).Info("order created")

	s.publishCreated(ctx, o)

	return &Result{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		IntentID:      intentID,
		Currency:      o.Currency,
		Subtotal:      subtotal,
		TotalDiscount: totalDiscount,
		TotalAmount:   totalAmount,
		Items:         breakdown(items),
		ExpiresAt:     o.ExpiresAt,
	}, nil
}

func (s *Service) publishCreated(ctx context.Context, o *order.Order) {
	if s.events == nil {
		return
	}
	env, err := events.NewEnvelope(events.TypeOrderCreated, events.OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		Items:       lineItems(o.Items),
		CreatedAt:   o.CreatedAt,
	})
	if err == nil {
		err = s.events.Publish(ctx, o.ID, env)
	}
	if err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warn("failed to publish order created event")
	}
}

func lineItems(items []order.Item) []events.LineItem {
	out := make([]events.LineItem, len(items))
	for i, it := range items {
		out[i] = events.LineItem{CourseID: it.CourseID, Title: it.Title, FinalPrice: it.FinalPrice}
	}
	return out
}

func breakdown(items []order.Item) []ItemBreakdown {
	out := make([]ItemBreakdown, len(items))
	for i, it := range items {
		out[i] = ItemBreakdown{
			CourseID:      it.CourseID,
			Title:         it.Title,
			OriginalPrice: it.OriginalPrice,
			Discount:      it.Discount,
			FinalPrice:    it.FinalPrice,
		}
	}
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func freeTitles(courses []course.Course) []string {
	var titles []string
	for _, c := range courses {
		if c.IsFree || order.FinalPrice(c) == 0 {
			titles = append(titles, c.Title)
		}
	}
	return titles
}

func titlesOf(byID map[string]course.Course, ids []string) []string {
	titles := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			titles = append(titles, c.Title)
		}
	}
	return titles
}
