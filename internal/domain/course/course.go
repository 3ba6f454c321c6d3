package course

import "time"

// Publish status values for a course.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Course is a catalog record. The payment core treats the catalog as read-only
// except for the student counter, which settlement increments.
type Course struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	InstructorID  string    `json:"instructor_id"`
	Price         int64     `json:"price"`                    // minor units (paise)
	DiscountPrice *int64    `json:"discount_price,omitempty"` // minor units; nil when no discount
	IsFree        bool      `json:"is_free"`
	Status        string    `json:"status"`
	Students      int       `json:"students"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Published reports whether the course can be purchased or browsed.
func (c *Course) Published() bool {
	return c.Status == StatusPublished
}
