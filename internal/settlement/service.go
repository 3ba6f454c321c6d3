package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/example/coursepay/internal/domain/enrollment"
	"github.com/example/coursepay/internal/domain/order"
	"github.com/example/coursepay/internal/events"
	"github.com/example/coursepay/internal/gateway"
	"github.com/example/coursepay/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// VerifyRequest is a gateway checkout confirmation forwarded by the client.
type VerifyRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	OrderID          string
}

// Result reports the settled order and which enrollments this call created.
// Replaying a settled confirmation yields an empty EnrollmentIDs list.
type Result struct {
	OrderID       string   `json:"orderId"`
	EnrollmentIDs []string `json:"enrollmentIds"`
}

// Service converts a verified successful payment into durable access grants.
// All state transitions happen in one ledger transaction; the (user, course)
// unique constraint makes retries safe.
type Service struct {
	ledger  store.Ledger
	gateway gateway.Client
	events  events.Publisher
	log     *logrus.Entry
	now     func() time.Time
}

// NewService creates a settlement service. events may be nil.
func NewService(ledger store.Ledger, gw gateway.Client, pub events.Publisher, log *logrus.Entry) *Service {
	return &Service{
		ledger:  ledger,
		gateway: gw,
		events:  pub,
		log:     log,
		now:     time.Now,
	}
}

// VerifyAndSettle verifies the confirmation signature and the gateway-side
// payment state, then atomically marks the order paid and grants enrollments.
// Any failure aborts the transaction with no partial effects; the caller may
// retry the whole call.
func (s *Service) VerifyAndSettle(ctx context.Context, userID string, req VerifyRequest) (*Result, error) {
	// The signature is the only proof the confirmation came from the gateway.
	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		s.log.WithFields(logrus.Fields{
			"order_id": req.OrderID,
			"user_id":  userID,
		}).Warn("payment signature verification failed")
		return nil, gateway.ErrInvalidSignature
	}

	// The gateway is the source of truth for whether money was captured; a
	// replayed confirmation can pass the signature check while the gateway
	// payment is in a different state.
	state, err := s.gateway.FetchPayment(ctx, req.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if !state.Captured() {
		return nil, gateway.ErrPaymentNotCaptured
	}

	now := s.now().UTC()
	res := &Result{OrderID: req.OrderID, EnrollmentIDs: []string{}}
	var paid *events.OrderPaid
	var created []events.EnrollmentCreated

	err = s.ledger.Transact(ctx, func(tx store.SettlementTx) error {
		o, err := tx.OrderForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		// An order belonging to someone else is reported as missing rather
		// than revealing its existence.
		if o == nil || o.UserID != userID {
			return order.ErrOrderNotFound
		}

		p, err := tx.PaymentByIntent(ctx, o.ID, req.GatewayOrderID)
		if err != nil {
			return err
		}
		if p == nil {
			return order.ErrPaymentNotFound
		}

		if state.Amount != o.TotalAmount || state.Currency != o.Currency {
			return order.ErrAmountMismatch
		}

		// Idempotent replay: the order was already settled, so the previous
		// transaction committed everything. Nothing new to grant.
		if o.Status == order.StatusPaid {
			return nil
		}

		if o.Expired(now) {
			return order.ErrOrderExpired
		}
		if !o.CanTransitionTo(order.StatusPaid) {
			return o.TransitionError(order.StatusPaid)
		}
		if !p.CanTransitionTo(order.PaymentSucceeded) {
			return p.TransitionError(order.PaymentSucceeded)
		}

		if err := tx.MarkPaymentSucceeded(ctx, p.ID, req.GatewayPaymentID, now); err != nil {
			return err
		}
		if err := tx.MarkOrderPaid(ctx, o.ID, now); err != nil {
			return err
		}

		for _, item := range o.Items {
			e := &enrollment.Enrollment{
				ID:         uuid.New().String(),
				UserID:     o.UserID,
				CourseID:   item.CourseID,
				OrderID:    o.ID,
				EnrolledAt: now,
			}
			ok, err := tx.CreateEnrollment(ctx, e)
			if err != nil {
				return err
			}
			if !ok {
				// Already enrolled, e.g. a concurrent settlement of the same
				// confirmation won the race. Skip all dependent writes.
				continue
			}

			if err := tx.CreateProgress(ctx, &enrollment.Progress{
				ID:             uuid.New().String(),
				EnrollmentID:   e.ID,
				UserID:         o.UserID,
				CourseID:       item.CourseID,
				LastActivityAt: now,
				CreatedAt:      now,
				UpdatedAt:      now,
			}); err != nil {
				return err
			}
			if err := tx.IncrementCourseStudents(ctx, item.CourseID); err != nil {
				return err
			}
			if err := tx.IncrementInstructorTotals(ctx, item.InstructorID, item.FinalPrice); err != nil {
				return err
			}

			res.EnrollmentIDs = append(res.EnrollmentIDs, e.ID)
			created = append(created, events.EnrollmentCreated{
				EnrollmentID: e.ID,
				UserID:       o.UserID,
				UserEmail:    o.UserSnapshot.Email,
				CourseID:     item.CourseID,
				CourseTitle:  item.Title,
				OrderID:      o.ID,
				EnrolledAt:   now,
			})
		}

		if n := len(res.EnrollmentIDs); n > 0 {
			if err := tx.IncrementUserEnrollments(ctx, o.UserID, n); err != nil {
				return err
			}
		}

		paid = &events.OrderPaid{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			UserID:      o.UserID,
			UserEmail:   o.UserSnapshot.Email,
			UserName:    fmt.Sprintf("%s %s", o.UserSnapshot.FirstName, o.UserSnapshot.LastName),
			TotalAmount: o.TotalAmount,
			Currency:    o.Currency,
			Items:       lineItems(o),
			PaidAt:      now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":        res.OrderID,
		"new_enrollments": len(res.EnrollmentIDs),
	}).Info("settlement committed")

	// Publication happens after commit and never affects the settlement
	// outcome.
	s.publish(ctx, res.OrderID, paid, created)

	return res, nil
}

func lineItems(o *order.Order) []events.LineItem {
	out := make([]events.LineItem, len(o.Items))
	for i, it := range o.Items {
		out[i] = events.LineItem{CourseID: it.CourseID, Title: it.Title, FinalPrice: it.FinalPrice}
	}
	return out
}

func (s *Service) publish(ctx context.Context, orderID string, paid *events.OrderPaid, created []events.EnrollmentCreated) {
	if s.events == nil || paid == nil {
		return
	}

	if env, err := events.NewEnvelope(events.TypeOrderPaid, paid); err == nil {
		if err := s.events.Publish(ctx, orderID, env); err != nil {
			s.log.WithError(err).WithField("order_id", orderID).Warn("failed to publish order paid event")
		}
	}
	for _, e := range created {
		if env, err := events.NewEnvelope(events.TypeEnrollmentCreated, e); err == nil {
			if err := s.events.Publish(ctx, orderID, env); err != nil {
				s.log.WithError(err).WithField("enrollment_id", e.EnrollmentID).Warn("failed to publish enrollment event")
			}
		}
	}
}
