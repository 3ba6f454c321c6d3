package store

import (
	"context"
	"time"

	"github.com/example/coursepay/internal/domain/course"
	"github.com/example/coursepay/internal/domain/enrollment"
	"github.com/example/coursepay/internal/domain/order"
	"github.com/example/coursepay/internal/domain/user"
)

// Ledger is the durable store for the payment core: catalog reads, account
// reads/writes, order/payment creation, and the settlement transaction scope.
type Ledger interface {
	// Catalog (read-only outside settlement)
	PublishedCourses(ctx context.Context) ([]course.Course, error)
	PublishedCourseByID(ctx context.Context, id string) (*course.Course, error)
	PublishedCoursesByIDs(ctx context.Context, ids []string) ([]course.Course, error)

	// Accounts
	CreateUser(ctx context.Context, u *user.User) error
	UserByEmail(ctx context.Context, email string) (*user.User, error)
	UserByID(ctx context.Context, id string) (*user.User, error)

	// Orders and payments
	CreateOrderWithPayment(ctx context.Context, o *order.Order, p *order.Payment) error
	OrderByID(ctx context.Context, id string) (*order.Order, error)
	// ActiveOrderCourseIDs returns which of courseIDs appear in a pending,
	// processing or paid order belonging to the user.
	ActiveOrderCourseIDs(ctx context.Context, userID string, courseIDs []string) ([]string, error)

	// Enrollments
	// EnrolledCourseIDs returns which of courseIDs the user already holds an
	// enrollment for.
	EnrolledCourseIDs(ctx context.Context, userID string, courseIDs []string) ([]string, error)
	EnrollmentsByUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error)

	// Transact runs fn inside a single database transaction. Any error from fn
	// aborts the transaction with no partial effects visible.
	Transact(ctx context.Context, fn func(tx SettlementTx) error) error
}

// SettlementTx is the unit-of-work handle settlement threads through every
// read and write of its transaction.
type SettlementTx interface {
	// OrderForUpdate loads an order and its items with a row lock, so two
	// concurrent settlements of the same order serialize.
	OrderForUpdate(ctx context.Context, orderID string) (*order.Order, error)
	PaymentByIntent(ctx context.Context, orderID, intentID string) (*order.Payment, error)

	MarkPaymentSucceeded(ctx context.Context, paymentRowID, transactionID string, at time.Time) error
	MarkOrderPaid(ctx context.Context, orderID string, at time.Time) error

	// CreateEnrollment inserts the enrollment unless one already exists for
	// the (user, course) pair. The unique index is the enforcement mechanism;
	// created=false means the pair was already enrolled.
	CreateEnrollment(ctx context.Context, e *enrollment.Enrollment) (created bool, err error)
	CreateProgress(ctx context.Context, p *enrollment.Progress) error

	IncrementCourseStudents(ctx context.Context, courseID string) error
	IncrementInstructorTotals(ctx context.Context, instructorID string, earnings int64) error
	IncrementUserEnrollments(ctx context.Context, userID string, n int) error
}
