package notification

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/example/coursepay/internal/email"
	"github.com/example/coursepay/internal/events"
)

// Mailer is the slice of the email service the notifier needs.
type Mailer interface {
	SendPaymentReceipt(to, name, orderNumber, currency string, total int64, items []email.ReceiptItem) error
	SendEnrollmentConfirmation(to, courseTitle string) error
}

// Handler turns payment-core events into outbound mail. Events carry the
// recipient's address, so no store access is needed here.
type Handler struct {
	mailer Mailer
	log    *logrus.Entry
}

func NewHandler(mailer Mailer, log *logrus.Entry) *Handler {
	return &Handler{
		mailer: mailer,
		log:    log,
	}
}

// HandleEvent processes one Kafka message. Unknown event types are ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		h.log.WithError(err).Warn("malformed event envelope")
		return err
	}

	switch envelope.Type {
	case events.TypeOrderPaid:
		return h.handleOrderPaid(envelope)
	case events.TypeEnrollmentCreated:
		return h.handleEnrollmentCreated(envelope)
	default:
		return nil
	}
}

func (h *Handler) handleOrderPaid(envelope events.Envelope) error {
	var e events.OrderPaid
	if err := json.Unmarshal(envelope.Data, &e); err != nil {
		h.log.WithError(err).WithField("event_id", envelope.ID).Warn("malformed order_paid payload")
		return err
	}
	if e.UserEmail == "" {
		h.log.WithField("order_id", e.OrderID).Warn("order_paid event without recipient email")
		return nil
	}

	items := make([]email.ReceiptItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.ReceiptItem{
			Title: item.Title,
			Price: item.FinalPrice,
		}
	}

	if err := h.mailer.SendPaymentReceipt(e.UserEmail, e.UserName, e.OrderNumber, e.Currency, e.TotalAmount, items); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"order_id": e.OrderID,
			"to":       e.UserEmail,
		}).Error("payment receipt send failed")
		return err
	}

	h.log.WithFields(logrus.Fields{
		"order_id": e.OrderID,
		"to":       e.UserEmail,
	}).Info("payment receipt sent")
	return nil
}

func (h *Handler) handleEnrollmentCreated(envelope events.Envelope) error {
	var e events.EnrollmentCreated
	if err := json.Unmarshal(envelope.Data, &e); err != nil {
		h.log.WithError(err).WithField("event_id", envelope.ID).Warn("malformed enrollment payload")
		return err
	}
	if e.UserEmail == "" {
		h.log.WithField("enrollment_id", e.EnrollmentID).Warn("enrollment event without recipient email")
		return nil
	}

	if err := h.mailer.SendEnrollmentConfirmation(e.UserEmail, e.CourseTitle); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"enrollment_id": e.EnrollmentID,
			"to":            e.UserEmail,
		}).Error("enrollment confirmation send failed")
		return err
	}

	h.log.WithFields(logrus.Fields{
		"enrollment_id": e.EnrollmentID,
		"to":            e.UserEmail,
	}).Info("enrollment confirmation sent")
	return nil
}
