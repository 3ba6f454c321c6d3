package order

import "github.com/example/coursepay/internal/domain/course"

// FinalPrice returns the effective price of a course in minor units:
// the discount price when one is set, the list price otherwise.
func FinalPrice(c course.Course) int64 {
	if c.DiscountPrice != nil && *c.DiscountPrice < c.Price {
		return *c.DiscountPrice
	}
	return c.Price
}

// NewItem snapshots a course into an order line item at its current pricing.
func NewItem(c course.Course) Item {
	final := FinalPrice(c)
	return Item{
		CourseID:      c.ID,
		Title:         c.Title,
		InstructorID:  c.InstructorID,
		OriginalPrice: c.Price,
		Discount:      c.Price - final,
		FinalPrice:    final,
	}
}

// ComputeTotals derives order-level amounts from line items. Amounts are
// integer minor units, so no rounding is involved and the totals are exactly
// reproducible from the stored snapshot.
func ComputeTotals(items []Item) (subtotal, totalDiscount, totalAmount int64) {
	for _, it := range items {
		subtotal += it.FinalPrice
		totalDiscount += it.Discount
	}
	return subtotal, totalDiscount, subtotal
}
