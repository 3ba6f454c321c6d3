package enrollment

import "time"

// Enrollment grants one user access to one course. At most one enrollment
// exists per (user, course) pair, enforced by a unique index in the store.
type Enrollment struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CourseID    string    `json:"course_id"`
	OrderID     string    `json:"order_id"`
	EnrolledAt  time.Time `json:"enrolled_at"`
	IsCompleted bool      `json:"is_completed"`
}

// Progress tracks per-(user, course) completion. Created alongside each new
// enrollment at zero percent.
type Progress struct {
	ID              string    `json:"id"`
	EnrollmentID    string    `json:"enrollment_id"`
	UserID          string    `json:"user_id"`
	CourseID        string    `json:"course_id"`
	CompletedPct    float64   `json:"completed_pct"`
	CompletedItems  int       `json:"completed_items"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
