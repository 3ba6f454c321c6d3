package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/coursepay/internal/domain/course"
	"github.com/example/coursepay/internal/domain/enrollment"
	"github.com/example/coursepay/internal/domain/order"
	"github.com/example/coursepay/internal/domain/user"
	"github.com/lib/pq"
)

// PostgresLedger implements Ledger on PostgreSQL. Settlement runs inside a
// single transaction obtained via Transact; the enrollment uniqueness backstop
// is the (user_id, course_id) unique index, exercised through
// INSERT ... ON CONFLICT DO NOTHING.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Catalog

const courseColumns = `id, title, instructor_id, price, discount_price, is_free, status, students, created_at, updated_at`

func scanCourse(row interface{ Scan(...any) error }) (*course.Course, error) {
	var c course.Course
	var discount sql.NullInt64
	if err := row.Scan(&c.ID, &c.Title, &c.InstructorID, &c.Price, &discount,
		&c.IsFree, &c.Status, &c.Students, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if discount.Valid {
		c.DiscountPrice = &discount.Int64
	}
	return &c, nil
}

func (l *PostgresLedger) PublishedCourses(ctx context.Context) ([]course.Course, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE status = $1 ORDER BY created_at DESC`,
		course.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var out []course.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (l *PostgresLedger) PublishedCourseByID(ctx context.Context, id string) (*course.Course, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1 AND status = $2`,
		id, course.StatusPublished)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

func (l *PostgresLedger) PublishedCoursesByIDs(ctx context.Context, ids []string) ([]course.Course, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ANY($1) AND status = $2`,
		pq.Array(ids), course.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("list courses by ids: %w", err)
	}
	defer rows.Close()

	var out []course.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Accounts

const userColumns = `id, email, password_hash, first_name, last_name, country, role, total_courses_enrolled, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Country, &u.Role, &u.TotalCoursesEnrolled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (l *PostgresLedger) CreateUser(ctx context.Context, u *user.User) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, country, role, total_courses_enrolled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Country, u.Role,
		u.TotalCoursesEnrolled, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (l *PostgresLedger) UserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (l *PostgresLedger) UserByID(ctx context.Context, id string) (*user.User, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Orders and payments

func (l *PostgresLedger) CreateOrderWithPayment(ctx context.Context, o *order.Order, p *order.Payment) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, order_number, user_id, user_email, user_first_name, user_last_name, user_country,
		                     subtotal, total_discount, total_amount, currency, status, payment_intent_id, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.OrderNumber, o.UserID, o.UserSnapshot.Email, o.UserSnapshot.FirstName, o.UserSnapshot.LastName, o.UserSnapshot.Country,
		o.Subtotal, o.TotalDiscount, o.TotalAmount, o.Currency, o.Status, o.PaymentIntentID, o.ExpiresAt, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, course_id, title, instructor_id, original_price, discount, final_price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, i, it.CourseID, it.Title, it.InstructorID, it.OriginalPrice, it.Discount, it.FinalPrice)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (id, payment_id, order_id, provider, amount, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.PaymentID, p.OrderID, p.Provider, p.Amount, p.Currency, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order creation: %w", err)
	}
	return nil
}

const orderColumns = `id, order_number, user_id, user_email, user_first_name, user_last_name, user_country,
       subtotal, total_discount, total_amount, currency, status, payment_intent_id, paid_at, expires_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*order.Order, error) {
	var o order.Order
	var paidAt sql.NullTime
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID,
		&o.UserSnapshot.Email, &o.UserSnapshot.FirstName, &o.UserSnapshot.LastName, &o.UserSnapshot.Country,
		&o.Subtotal, &o.TotalDiscount, &o.TotalAmount, &o.Currency, &o.Status,
		&o.PaymentIntentID, &paidAt, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	return &o, nil
}

func loadOrderItems(ctx context.Context, q querier, o *order.Order) error {
	rows, err := q.QueryContext(ctx,
		`SELECT course_id, title, instructor_id, original_price, discount, final_price
		 FROM order_items WHERE order_id = $1 ORDER BY position`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.CourseID, &it.Title, &it.InstructorID,
			&it.OriginalPrice, &it.Discount, &it.FinalPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q querier, id string, forUpdate bool) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := loadOrderItems(ctx, q, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (l *PostgresLedger) OrderByID(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, l.db, id, false)
}

// ActiveOrderCourseIDs treats a pending/processing order past its expiry as no
// longer in flight: per the state machine it is already terminal, there is
// just no reaper flipping the row.
func (l *PostgresLedger) ActiveOrderCourseIDs(ctx context.Context, userID string, courseIDs []string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT DISTINCT oi.course_id
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.user_id = $1
		   AND oi.course_id = ANY($2)
		   AND o.status = ANY($3)
		   AND (o.status = 'paid' OR o.expires_at > NOW())`,
		userID, pq.Array(courseIDs),
		pq.Array([]string{string(order.StatusPending), string(order.StatusProcessing), string(order.StatusPaid)}))
	if err != nil {
		return nil, fmt.Errorf("active order courses: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// Enrollments

func (l *PostgresLedger) EnrolledCourseIDs(ctx context.Context, userID string, courseIDs []string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT course_id FROM enrollments WHERE user_id = $1 AND course_id = ANY($2)`,
		userID, pq.Array(courseIDs))
	if err != nil {
		return nil, fmt.Errorf("enrolled courses: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (l *PostgresLedger) EnrollmentsByUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, course_id, order_id, enrolled_at, is_completed
		 FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []enrollment.Enrollment
	for rows.Next() {
		var e enrollment.Enrollment
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.OrderID, &e.EnrolledAt, &e.IsCompleted); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Settlement transaction

func (l *PostgresLedger) Transact(ctx context.Context, fn func(tx SettlementTx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement tx: %w", err)
	}

	if err := fn(&pgSettlementTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement tx: %w", err)
	}
	return nil
}

type pgSettlementTx struct {
	tx *sql.Tx
}

func (s *pgSettlementTx) OrderForUpdate(ctx context.Context, orderID string) (*order.Order, error) {
	return getOrder(ctx, s.tx, orderID, true)
}

func (s *pgSettlementTx) PaymentByIntent(ctx context.Context, orderID, intentID string) (*order.Payment, error) {
	var p order.Payment
	var txID sql.NullString
	var capturedAt sql.NullTime
	err := s.tx.QueryRowContext(ctx,
		`SELECT id, payment_id, order_id, provider, amount, currency, status, transaction_id, captured_at, created_at, updated_at
		 FROM payments WHERE order_id = $1 AND payment_id = $2`,
		orderID, intentID).
		Scan(&p.ID, &p.PaymentID, &p.OrderID, &p.Provider, &p.Amount, &p.Currency,
			&p.Status, &txID, &capturedAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if txID.Valid {
		p.TransactionID = txID.String
	}
	if capturedAt.Valid {
		p.CapturedAt = &capturedAt.Time
	}
	return &p, nil
}

func (s *pgSettlementTx) MarkPaymentSucceeded(ctx context.Context, paymentRowID, transactionID string, at time.Time) error {
	_, err := s.tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, transaction_id = $2, captured_at = $3, updated_at = $3 WHERE id = $4`,
		order.PaymentSucceeded, transactionID, at, paymentRowID)
	if err != nil {
		return fmt.Errorf("mark payment succeeded: %w", err)
	}
	return nil
}

func (s *pgSettlementTx) MarkOrderPaid(ctx context.Context, orderID string, at time.Time) error {
	_, err := s.tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, paid_at = $2, updated_at = $2 WHERE id = $3`,
		order.StatusPaid, at, orderID)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return nil
}

func (s *pgSettlementTx) CreateEnrollment(ctx context.Context, e *enrollment.Enrollment) (bool, error) {
	res, err := s.tx.ExecContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, order_id, enrolled_at, is_completed)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, course_id) DO NOTHING`,
		e.ID, e.UserID, e.CourseID, e.OrderID, e.EnrolledAt, e.IsCompleted)
	if err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}
	return n == 1, nil
}

func (s *pgSettlementTx) CreateProgress(ctx context.Context, p *enrollment.Progress) error {
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO progress (id, enrollment_id, user_id, course_id, completed_pct, completed_items, last_activity_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.EnrollmentID, p.UserID, p.CourseID, p.CompletedPct, p.CompletedItems,
		p.LastActivityAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

func (s *pgSettlementTx) IncrementCourseStudents(ctx context.Context, courseID string) error {
	_, err := s.tx.ExecContext(ctx,
		`UPDATE courses SET students = students + 1, updated_at = NOW() WHERE id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("increment course students: %w", err)
	}
	return nil
}

func (s *pgSettlementTx) IncrementInstructorTotals(ctx context.Context, instructorID string, earnings int64) error {
	_, err := s.tx.ExecContext(ctx,
		`UPDATE instructors SET total_students = total_students + 1, total_earnings = total_earnings + $1, updated_at = NOW() WHERE id = $2`,
		earnings, instructorID)
	if err != nil {
		return fmt.Errorf("increment instructor totals: %w", err)
	}
	return nil
}

func (s *pgSettlementTx) IncrementUserEnrollments(ctx context.Context, userID string, n int) error {
	_, err := s.tx.ExecContext(ctx,
		`UPDATE users SET total_courses_enrolled = total_courses_enrolled + $1, updated_at = NOW() WHERE id = $2`,
		n, userID)
	if err != nil {
		return fmt.Errorf("increment user enrollments: %w", err)
	}
	return nil
}
