package user

import "time"

// Roles a marketplace account can hold.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User is a marketplace account. TotalCoursesEnrolled is an aggregate counter
// maintained by settlement, never recomputed from enrollments at read time.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	PasswordHash         string    `json:"-"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	Country              string    `json:"country,omitempty"`
	Role                 string    `json:"role"`
	TotalCoursesEnrolled int       `json:"total_courses_enrolled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Snapshot is the subset of user fields frozen onto an order at creation time.
type Snapshot struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Country   string `json:"country,omitempty"`
}

// Snapshot returns the order-time snapshot of the user.
func (u *User) Snapshot() Snapshot {
	return Snapshot{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Country:   u.Country,
	}
}
