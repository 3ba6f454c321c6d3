package order

import (
	"testing"

	"github.com/example/coursepay/internal/domain/course"
	"github.com/stretchr/testify/assert"
)

func int64ptr(v int64) *int64 { return &v }

func TestFinalPrice(t *testing.T) {
	c := course.Course{Price: 10000}
	assert.Equal(t, int64(10000), FinalPrice(c))

	c.DiscountPrice = int64ptr(8000)
	assert.Equal(t, int64(8000), FinalPrice(c))

	// a "discount" above the list price is ignored
	c.DiscountPrice = int64ptr(12000)
	assert.Equal(t, int64(10000), FinalPrice(c))
}

func TestNewItem(t *testing.T) {
	c := course.Course{
		ID:            "course-1",
		Title:         "Distributed Systems",
		InstructorID:  "inst-1",
		Price:         10000,
		DiscountPrice: int64ptr(8000),
	}

	it := NewItem(c)
	assert.Equal(t, "course-1", it.CourseID)
	assert.Equal(t, "Distributed Systems", it.Title)
	assert.Equal(t, "inst-1", it.InstructorID)
	assert.Equal(t, int64(10000), it.OriginalPrice)
	assert.Equal(t, int64(2000), it.Discount)
	assert.Equal(t, int64(8000), it.FinalPrice)
	assert.LessOrEqual(t, it.FinalPrice, it.OriginalPrice)
}

func TestComputeTotals(t *testing.T) {
	items := []Item{
		{OriginalPrice: 10000, Discount: 2000, FinalPrice: 8000},
		{OriginalPrice: 5000, Discount: 0, FinalPrice: 5000},
	}

	subtotal, discount, total := ComputeTotals(items)
	assert.Equal(t, int64(13000), subtotal)
	assert.Equal(t, int64(2000), discount)
	// conservation: total equals the sum of final prices
	assert.Equal(t, subtotal, total)
}

func TestComputeTotals_Empty(t *testing.T) {
	subtotal, discount, total := ComputeTotals(nil)
	assert.Zero(t, subtotal)
	assert.Zero(t, discount)
	assert.Zero(t, total)
}
