package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/coursepay/internal/domain/course"
	"github.com/example/coursepay/internal/domain/enrollment"
	"github.com/example/coursepay/internal/domain/order"
	"github.com/example/coursepay/internal/domain/user"
	"github.com/example/coursepay/internal/infrastructure/store"
)

// InstructorTotals mirrors the instructor counter row.
type InstructorTotals struct {
	TotalStudents int
	TotalEarnings int64
}

// MockLedger is an in-memory store.Ledger for testing. Transact snapshots all
// state before running the closure and restores it when the closure fails, so
// tests can assert transactional rollback.
type MockLedger struct {
	mu sync.Mutex

	Courses     map[string]course.Course
	Users       map[string]user.User
	Orders      map[string]*order.Order
	Payments    map[string]*order.Payment          // by payment row id
	Enrollments map[string]*enrollment.Enrollment  // by "userID|courseID"
	Progress    map[string]*enrollment.Progress    // by enrollment id
	Instructors map[string]*InstructorTotals

	// Error injection
	CreateOrderErr    error
	CreateProgressErr error
	TransactBeginErr  error
}

// NewMockLedger creates an empty MockLedger.
func NewMockLedger() *MockLedger {
	return &MockLedger{
		Courses:     make(map[string]course.Course),
		Users:       make(map[string]user.User),
		Orders:      make(map[string]*order.Order),
		Payments:    make(map[string]*order.Payment),
		Enrollments: make(map[string]*enrollment.Enrollment),
		Progress:    make(map[string]*enrollment.Progress),
		Instructors: make(map[string]*InstructorTotals),
	}
}

func enrollKey(userID, courseID string) string { return userID + "|" + courseID }

// AddCourse registers a course and an instructor counter row for it.
func (m *MockLedger) AddCourse(c course.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Courses[c.ID] = c
	if _, ok := m.Instructors[c.InstructorID]; !ok {
		m.Instructors[c.InstructorID] = &InstructorTotals{}
	}
}

// AddUser registers a user.
func (m *MockLedger) AddUser(u user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[u.ID] = u
}

// Catalog

func (m *MockLedger) PublishedCourses(ctx context.Context) ([]course.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []course.Course
	for _, c := range m.Courses {
		if c.Published() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockLedger) PublishedCourseByID(ctx context.Context, id string) (*course.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Courses[id]
	if !ok || !c.Published() {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (m *MockLedger) PublishedCoursesByIDs(ctx context.Context, ids []string) ([]course.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []course.Course
	for _, id := range ids {
		if c, ok := m.Courses[id]; ok && c.Published() {
			out = append(out, c)
		}
	}
	return out, nil
}

// Accounts

func (m *MockLedger) CreateUser(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[u.ID] = *u
	return nil
}

func (m *MockLedger) UserByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockLedger) UserByID(ctx context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

// Orders and payments

func (m *MockLedger) CreateOrderWithPayment(ctx context.Context, o *order.Order, p *order.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateOrderErr != nil {
		return m.CreateOrderErr
	}
	oc := *o
	oc.Items = append([]order.Item(nil), o.Items...)
	pc := *p
	m.Orders[o.ID] = &oc
	m.Payments[p.ID] = &pc
	return nil
}

func (m *MockLedger) OrderByID(ctx context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderCopy(id), nil
}

func (m *MockLedger) orderCopy(id string) *order.Order {
	o, ok := m.Orders[id]
	if !ok {
		return nil
	}
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	return &cp
}

func (m *MockLedger) ActiveOrderCourseIDs(ctx context.Context, userID string, courseIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		want[id] = true
	}

	now := time.Now()
	seen := map[string]bool{}
	var out []string
	for _, o := range m.Orders {
		if o.UserID != userID {
			continue
		}
		active := o.Status == order.StatusPaid ||
			((o.Status == order.StatusPending || o.Status == order.StatusProcessing) && !o.Expired(now))
		if !active {
			continue
		}
		for _, it := range o.Items {
			if want[it.CourseID] && !seen[it.CourseID] {
				seen[it.CourseID] = true
				out = append(out, it.CourseID)
			}
		}
	}
	return out, nil
}

// Enrollments

func (m *MockLedger) EnrolledCourseIDs(ctx context.Context, userID string, courseIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range courseIDs {
		if _, ok := m.Enrollments[enrollKey(userID, id)]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *MockLedger) EnrollmentsByUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []enrollment.Enrollment
	for _, e := range m.Enrollments {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// Transact runs fn against the mock itself, restoring a snapshot on error.
func (m *MockLedger) Transact(ctx context.Context, fn func(tx store.SettlementTx) error) error {
	if m.TransactBeginErr != nil {
		return m.TransactBeginErr
	}

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type ledgerSnapshot struct {
	orders      map[string]*order.Order
	payments    map[string]*order.Payment
	enrollments map[string]*enrollment.Enrollment
	progress    map[string]*enrollment.Progress
	instructors map[string]*InstructorTotals
	courses     map[string]course.Course
	users       map[string]user.User
}

func (m *MockLedger) snapshot() ledgerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := ledgerSnapshot{
		orders:      make(map[string]*order.Order, len(m.Orders)),
		payments:    make(map[string]*order.Payment, len(m.Payments)),
		enrollments: make(map[string]*enrollment.Enrollment, len(m.Enrollments)),
		progress:    make(map[string]*enrollment.Progress, len(m.Progress)),
		instructors: make(map[string]*InstructorTotals, len(m.Instructors)),
		courses:     make(map[string]course.Course, len(m.Courses)),
		users:       make(map[string]user.User, len(m.Users)),
	}
	for k, v := range m.Orders {
		cp := *v
		cp.Items = append([]order.Item(nil), v.Items...)
		snap.orders[k] = &cp
	}
	for k, v := range m.Payments {
		cp := *v
		snap.payments[k] = &cp
	}
	for k, v := range m.Enrollments {
		cp := *v
		snap.enrollments[k] = &cp
	}
	for k, v := range m.Progress {
		cp := *v
		snap.progress[k] = &cp
	}
	for k, v := range m.Instructors {
		cp := *v
		snap.instructors[k] = &cp
	}
	for k, v := range m.Courses {
		snap.courses[k] = v
	}
	for k, v := range m.Users {
		snap.users[k] = v
	}
	return snap
}

func (m *MockLedger) restore(snap ledgerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = snap.orders
	m.Payments = snap.payments
	m.Enrollments = snap.enrollments
	m.Progress = snap.progress
	m.Instructors = snap.instructors
	m.Courses = snap.courses
	m.Users = snap.users
}

// SettlementTx implementation

func (m *MockLedger) OrderForUpdate(ctx context.Context, orderID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderCopy(orderID), nil
}

func (m *MockLedger) PaymentByIntent(ctx context.Context, orderID, intentID string) (*order.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Payments {
		if p.OrderID == orderID && p.PaymentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockLedger) MarkPaymentSucceeded(ctx context.Context, paymentRowID, transactionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Payments[paymentRowID]
	if !ok {
		return order.ErrPaymentNotFound
	}
	p.Status = order.PaymentSucceeded
	p.TransactionID = transactionID
	p.CapturedAt = &at
	p.UpdatedAt = at
	return nil
}

func (m *MockLedger) MarkOrderPaid(ctx context.Context, orderID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = order.StatusPaid
	o.PaidAt = &at
	o.UpdatedAt = at
	return nil
}

func (m *MockLedger) CreateEnrollment(ctx context.Context, e *enrollment.Enrollment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := enrollKey(e.UserID, e.CourseID)
	if _, exists := m.Enrollments[key]; exists {
		return false, nil
	}
	cp := *e
	m.Enrollments[key] = &cp
	return true, nil
}

func (m *MockLedger) CreateProgress(ctx context.Context, p *enrollment.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateProgressErr != nil {
		return m.CreateProgressErr
	}
	cp := *p
	m.Progress[p.EnrollmentID] = &cp
	return nil
}

func (m *MockLedger) IncrementCourseStudents(ctx context.Context, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Courses[courseID]
	if !ok {
		return nil
	}
	c.Students++
	m.Courses[courseID] = c
	return nil
}

func (m *MockLedger) IncrementInstructorTotals(ctx context.Context, instructorID string, earnings int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Instructors[instructorID]
	if !ok {
		t = &InstructorTotals{}
		m.Instructors[instructorID] = t
	}
	t.TotalStudents++
	t.TotalEarnings += earnings
	return nil
}

func (m *MockLedger) IncrementUserEnrollments(ctx context.Context, userID string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[userID]
	if !ok {
		return nil
	}
	u.TotalCoursesEnrolled += n
	m.Users[userID] = u
	return nil
}
