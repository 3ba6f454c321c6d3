package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/coursepay/internal/domain/course"
	"github.com/example/coursepay/internal/domain/enrollment"
	"github.com/example/coursepay/internal/domain/order"
	"github.com/example/coursepay/internal/domain/user"
	"github.com/example/coursepay/internal/gateway"
	gwmocks "github.com/example/coursepay/internal/gateway/mocks"
	storemocks "github.com/example/coursepay/internal/infrastructure/store/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64ptr(v int64) *int64 { return &v }

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

// fixture creates a settlement service plus a processing order for user-1
// covering course-1 (final price 8000) and course-2 (5000), with a pending
// payment for gateway intent "order_gw1" and a captured gateway payment
// "pay_gw1".
func fixture(t *testing.T) (*Service, *storemocks.MockLedger, *gwmocks.MockGateway, VerifyRequest) {
	t.Helper()

	ledger := storemocks.NewMockLedger()
	gw := gwmocks.NewMockGateway()
	svc := NewService(ledger, gw, nil, testLogger())

	ledger.AddUser(user.User{ID: "user-1", Email: "alice@example.com", FirstName: "Alice", LastName: "Iyer"})
	ledger.AddCourse(course.Course{
		ID: "course-1", Title: "Distributed Systems", InstructorID: "inst-1",
		Price: 10000, DiscountPrice: int64ptr(8000), Status: course.StatusPublished,
	})
	ledger.AddCourse(course.Course{
		ID: "course-2", Title: "Intro to Go", InstructorID: "inst-2",
		Price: 5000, Status: course.StatusPublished,
	})

	now := time.Now().UTC()
	o := &order.Order{
		ID:          "ord-1",
		OrderNumber: "CM-20260301120000-ABCDEF",
		UserID:      "user-1",
		UserSnapshot: user.Snapshot{
			Email:     "alice@example.com",
			FirstName: "Alice",
			LastName:  "Iyer",
		},
		Items: []order.Item{
			{CourseID: "course-1", Title: "Distributed Systems", InstructorID: "inst-1", OriginalPrice: 10000, Discount: 2000, FinalPrice: 8000},
			{CourseID: "course-2", Title: "Intro to Go", InstructorID: "inst-2", OriginalPrice: 5000, Discount: 0, FinalPrice: 5000},
		},
		Subtotal:        13000,
		TotalDiscount:   2000,
		TotalAmount:     13000,
		Currency:        "INR",
		Status:          order.StatusProcessing,
		PaymentIntentID: "order_gw1",
		ExpiresAt:       now.Add(30 * time.Minute),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	p := &order.Payment{
		ID:        "payrow-1",
		PaymentID: "order_gw1",
		OrderID:   "ord-1",
		Provider:  "razorpay",
		Amount:    13000,
		Currency:  "INR",
		Status:    order.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, ledger.CreateOrderWithPayment(context.Background(), o, p))

	gw.AddCapturedPayment("pay_gw1", "order_gw1", 13000, "INR")

	req := VerifyRequest{
		GatewayOrderID:   "order_gw1",
		GatewayPaymentID: "pay_gw1",
		Signature:        gwmocks.Signature("order_gw1", "pay_gw1"),
		OrderID:          "ord-1",
	}
	return svc, ledger, gw, req
}

func TestService_VerifyAndSettle_Success(t *testing.T) {
	svc, ledger, _, req := fixture(t)
	ctx := context.Background()

	res, err := svc.VerifyAndSettle(ctx, "user-1", req)

	require.NoError(t, err)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Len(t, res.EnrollmentIDs, 2)

	// order paid, payment succeeded
	o, _ := ledger.OrderByID(ctx, "ord-1")
	assert.Equal(t, order.StatusPaid, o.Status)
	require.NotNil(t, o.PaidAt)

	p := ledger.Payments["payrow-1"]
	assert.Equal(t, order.PaymentSucceeded, p.Status)
	assert.Equal(t, "pay_gw1", p.TransactionID)
	require.NotNil(t, p.CapturedAt)

	// enrollments and progress exist for both courses
	assert.Len(t, ledger.Enrollments, 2)
	assert.Len(t, ledger.Progress, 2)
	for _, pr := range ledger.Progress {
		assert.Zero(t, pr.CompletedPct)
	}

	// counters incremented
	assert.Equal(t, 1, ledger.Courses["course-1"].Students)
	assert.Equal(t, 1, ledger.Courses["course-2"].Students)
	assert.Equal(t, int64(8000), ledger.Instructors["inst-1"].TotalEarnings)
	assert.Equal(t, 1, ledger.Instructors["inst-1"].TotalStudents)
	assert.Equal(t, int64(5000), ledger.Instructors["inst-2"].TotalEarnings)
	assert.Equal(t, 2, ledger.Users["user-1"].TotalCoursesEnrolled)
}

func TestService_VerifyAndSettle_Idempotent(t *testing.T) {
	svc, ledger, _, req := fixture(t)
	ctx := context.Background()

	first, err := svc.VerifyAndSettle(ctx, "user-1", req)
	require.NoError(t, err)
	require.Len(t, first.EnrollmentIDs, 2)

	second, err := svc.VerifyAndSettle(ctx, "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", second.OrderID)
	assert.Empty(t, second.EnrollmentIDs)

	// end state identical to a single settlement
	assert.Len(t, ledger.Enrollments, 2)
	assert.Len(t, ledger.Progress, 2)
	assert.Equal(t, 1, ledger.Courses["course-1"].Students)
	assert.Equal(t, 1, ledger.Instructors["inst-1"].TotalStudents)
	assert.Equal(t, 2, ledger.Users["user-1"].TotalCoursesEnrolled)
}

func TestService_VerifyAndSettle_TamperedSignature(t *testing.T) {
	svc, ledger, _, req := fixture(t)
	req.Signature = "forged"

	res, err := svc.VerifyAndSettle(context.Background(), "user-1", req)

	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
	assert.Nil(t, res)

	// no state changed
	o, _ := ledger.OrderByID(context.Background(), "ord-1")
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Empty(t, ledger.Enrollments)
}

func TestService_VerifyAndSettle_PaymentNotCaptured(t *testing.T) {
	svc, _, gw, req := fixture(t)
	gw.Payments["pay_gw1"].Status = gateway.StateFailed

	_, err := svc.VerifyAndSettle(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, gateway.ErrPaymentNotCaptured)
}

func TestService_VerifyAndSettle_GatewayFetchError(t *testing.T) {
	svc, ledger, gw, req := fixture(t)
	gw.FetchPaymentErr = errors.New("gateway timeout")

	_, err := svc.VerifyAndSettle(context.Background(), "user-1", req)

	require.Error(t, err)
	o, _ := ledger.OrderByID(context.Background(), "ord-1")
	assert.Equal(t, order.StatusProcessing, o.Status)
}

func TestService_VerifyAndSettle_OrderNotFound(t *testing.T) {
	svc, _, gw, req := fixture(t)
	req.OrderID = "ord-missing"

	// signature and gateway state stay valid for this payload
	gw.AddCapturedPayment("pay_gw1", "order_gw1", 13000, "INR")

	_, err := svc.VerifyAndSettle(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_VerifyAndSettle_ForeignOrderReportedMissing(t *testing.T) {
	svc, _, _, req := fixture(t)

	_, err := svc.VerifyAndSettle(context.Background(), "user-2", req)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_VerifyAndSettle_PaymentNotFound(t *testing.T) {
	svc, _, gw, req := fixture(t)
	req.GatewayOrderID = "order_other"
	req.Signature = gwmocks.Signature("order_other", "pay_gw1")
	gw.AddCapturedPayment("pay_gw1", "order_other", 13000, "INR")

	_, err := svc.VerifyAndSettle(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, order.ErrPaymentNotFound)
}

func TestService_VerifyAndSettle_AmountMismatch(t *testing.T) {
	svc, _, gw, req := fixture(t)
	gw.Payments["pay_gw1"].Amount = 1

	_, err := svc.VerifyAndSettle(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, order.ErrAmountMismatch)
}

func TestService_VerifyAndSettle_ExpiredOrder(t *testing.T) {
	svc, ledger, _, req := fixture(t)
	ledger.Orders["ord-1"].ExpiresAt = time.Now().Add(-time.Minute)

	_, err := svc.VerifyAndSettle(context.Background(), "user-1", req)

	assert.ErrorIs(t, err, order.ErrOrderExpired)
	o, _ := ledger.OrderByID(context.Background(), "ord-1")
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Empty(t, ledger.Enrollments)
}

func TestService_VerifyAndSettle_CancelledOrder(t *testing.T) {
	svc, ledger, _, req := fixture(t)
	ledger.Orders["ord-1"].Status = order.StatusCancelled

	_, err := svc.VerifyAndSettle(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, order.ErrOrderCancelled)
}

// Atomicity: a failure mid-settlement leaves no partial state behind.
func TestService_VerifyAndSettle_RollbackOnPartialFailure(t *testing.T) {
	svc, ledger, _, req := fixture(t)
	ledger.CreateProgressErr = errors.New("write conflict")

	_, err := svc.VerifyAndSettle(context.Background(), "user-1", req)
	require.Error(t, err)

	// payment/order remain pre-settlement, no enrollment or counter leaked
	o, _ := ledger.OrderByID(context.Background(), "ord-1")
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Nil(t, o.PaidAt)
	assert.Equal(t, order.PaymentPending, ledger.Payments["payrow-1"].Status)
	assert.Empty(t, ledger.Enrollments)
	assert.Empty(t, ledger.Progress)
	assert.Equal(t, 0, ledger.Courses["course-1"].Students)
	assert.Equal(t, 0, ledger.Users["user-1"].TotalCoursesEnrolled)

	// retrying after the fault clears succeeds and grants everything
	ledger.CreateProgressErr = nil
	res, err := svc.VerifyAndSettle(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Len(t, res.EnrollmentIDs, 2)
	assert.Len(t, ledger.Enrollments, 2)
}

// A pre-existing enrollment for one course is skipped silently; the other
// courses still settle and only new enrollments count toward the user total.
func TestService_VerifyAndSettle_PartialPreexistingEnrollment(t *testing.T) {
	svc, ledger, _, req := fixture(t)
	ctx := context.Background()

	created, err := ledger.CreateEnrollment(ctx, &enrollment.Enrollment{
		ID:       "enr-old",
		UserID:   "user-1",
		CourseID: "course-1",
		OrderID:  "ord-old",
	})
	require.NoError(t, err)
	require.True(t, created)

	res, err := svc.VerifyAndSettle(ctx, "user-1", req)
	require.NoError(t, err)

	// only course-2 gains a new enrollment
	require.Len(t, res.EnrollmentIDs, 1)
	assert.Len(t, ledger.Enrollments, 2)
	assert.Len(t, ledger.Progress, 1)

	// counters touched only for the newly enrolled course
	assert.Equal(t, 0, ledger.Courses["course-1"].Students)
	assert.Equal(t, 1, ledger.Courses["course-2"].Students)
	assert.Equal(t, 0, ledger.Instructors["inst-1"].TotalStudents)
	assert.Equal(t, int64(0), ledger.Instructors["inst-1"].TotalEarnings)
	assert.Equal(t, 1, ledger.Instructors["inst-2"].TotalStudents)
	assert.Equal(t, 1, ledger.Users["user-1"].TotalCoursesEnrolled)
}
