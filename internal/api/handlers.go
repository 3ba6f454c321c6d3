package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/example/coursepay/internal/api/middleware"
	"github.com/example/coursepay/internal/checkout"
	"github.com/example/coursepay/internal/domain/order"
	"github.com/example/coursepay/internal/domain/user"
	"github.com/example/coursepay/internal/gateway"
	"github.com/example/coursepay/internal/infrastructure/store"
	"github.com/example/coursepay/internal/settlement"
	"github.com/example/coursepay/internal/validation"
)

// Handlers holds the HTTP handlers for the payment core.
type Handlers struct {
	checkout   *checkout.Service
	settlement *settlement.Service
	ledger     store.Ledger
	validate   *validatorv10.Validate
	log        *logrus.Entry
}

func NewHandlers(checkoutSvc *checkout.Service, settlementSvc *settlement.Service, ledger store.Ledger, log *logrus.Entry) *Handlers {
	return &Handlers{
		checkout:   checkoutSvc,
		settlement: settlementSvc,
		ledger:     ledger,
		validate:   validation.New(),
		log:        log,
	}
}

// Catalog handlers

func (h *Handlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.ledger.PublishedCourses(r.Context())
	if err != nil {
		h.log.WithError(err).Error("list courses failed")
		respondError(w, http.StatusInternalServerError, "failed to load courses")
		return
	}
	respondJSON(w, http.StatusOK, courses)
}

func (h *Handlers) GetCourse(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/api/courses/")
	c, err := h.ledger.PublishedCourseByID(r.Context(), id)
	if err != nil {
		h.log.WithError(err).Error("load course failed")
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Payment handlers

type createOrderRequest struct {
	CourseIDs []string `json:"courseIds" validate:"required,min=1,dive,required"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req createOrderRequest
	if err := validation.DecodeAndValidate(r, h.validate, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.checkout.CreateOrder(r.Context(), userID, req.CourseIDs)
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	OrderID           string `json:"orderId" validate:"required"`
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req verifyPaymentRequest
	if err := validation.DecodeAndValidate(r, h.validate, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.settlement.VerifyAndSettle(r.Context(), userID, settlement.VerifyRequest{
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
		OrderID:          req.OrderID,
	})
	if err != nil {
		h.respondSettlementError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/api/payments/orders/")

	o, err := h.ledger.OrderByID(r.Context(), id)
	if err != nil {
		h.log.WithError(err).Error("load order failed")
		respondError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if o == nil {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}

	claims, _ := middleware.UserFromContext(r.Context())
	if o.UserID != claims.UserID && claims.Role != user.RoleAdmin {
		respondError(w, http.StatusForbidden, "access denied")
		return
	}

	respondJSON(w, http.StatusOK, o)
}

// Enrollment handlers

func (h *Handlers) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	enrollments, err := h.ledger.EnrollmentsByUser(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("list enrollments failed")
		respondError(w, http.StatusInternalServerError, "failed to load enrollments")
		return
	}
	respondJSON(w, http.StatusOK, enrollments)
}

// Error mapping

func (h *Handlers) respondCheckoutError(w http.ResponseWriter, err error) {
	var freeErr *checkout.FreeCourseError
	var enrolledErr *checkout.AlreadyEnrolledError
	var dupErr *checkout.DuplicateOrderError

	switch {
	case errors.Is(err, checkout.ErrNoCourses):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrCoursesUnavailable):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, checkout.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &freeErr), errors.As(err, &enrolledErr), errors.As(err, &dupErr):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).Error("order creation failed")
		respondError(w, http.StatusInternalServerError, "failed to create order")
	}
}

func (h *Handlers) respondSettlementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		// Generic on purpose. Nothing about why is leaked.
		respondError(w, http.StatusBadRequest, "invalid payment signature")
	case errors.Is(err, gateway.ErrPaymentNotCaptured),
		errors.Is(err, order.ErrAmountMismatch),
		errors.Is(err, order.ErrOrderExpired),
		errors.Is(err, order.ErrOrderCancelled),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrInvalidPaymentTransition):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrPaymentNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		h.log.WithError(err).Error("settlement failed")
		respondError(w, http.StatusInternalServerError, "payment verification failed")
	}
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
