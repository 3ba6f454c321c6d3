package order

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"processing to paid", StatusProcessing, StatusPaid, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"processing to cancelled", StatusProcessing, StatusCancelled, true},
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"pending to paid skips processing", StatusPending, StatusPaid, false},
		{"paid to refunded", StatusPaid, StatusRefunded, true},
		{"paid to paid", StatusPaid, StatusPaid, false},
		{"cancelled is terminal", StatusCancelled, StatusPaid, false},
		{"failed is terminal", StatusFailed, StatusPaid, false},
		{"refunded is terminal", StatusRefunded, StatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.from}
			assert.Equal(t, tt.allowed, o.CanTransitionTo(tt.to))
		})
	}
}

func TestOrder_TransitionError(t *testing.T) {
	o := &Order{Status: StatusPaid}
	assert.ErrorIs(t, o.TransitionError(StatusPaid), ErrOrderAlreadyPaid)

	o = &Order{Status: StatusCancelled}
	assert.ErrorIs(t, o.TransitionError(StatusPaid), ErrOrderCancelled)

	o = &Order{Status: StatusFailed}
	assert.ErrorIs(t, o.TransitionError(StatusPaid), ErrInvalidTransition)
}

func TestOrder_Expired(t *testing.T) {
	now := time.Now()

	o := &Order{Status: StatusProcessing, ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, o.Expired(now))

	o = &Order{Status: StatusProcessing, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, o.Expired(now))

	// paid orders never expire
	o = &Order{Status: StatusPaid, ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, o.Expired(now))

	// zero expiry means no TTL
	o = &Order{Status: StatusProcessing}
	assert.False(t, o.Expired(now))
}

func TestPayment_CanTransitionTo(t *testing.T) {
	p := &Payment{Status: PaymentPending}
	assert.True(t, p.CanTransitionTo(PaymentSucceeded))
	assert.True(t, p.CanTransitionTo(PaymentFailed))
	assert.False(t, p.CanTransitionTo(PaymentRefunded))

	p = &Payment{Status: PaymentSucceeded}
	assert.True(t, p.CanTransitionTo(PaymentRefunded))
	assert.False(t, p.CanTransitionTo(PaymentSucceeded))

	p = &Payment{Status: PaymentRefunded}
	assert.False(t, p.CanTransitionTo(PaymentSucceeded))
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	n := NewOrderNumber(now)
	require.True(t, strings.HasPrefix(n, "CM-20260314092653-"))
	assert.Len(t, n, len("CM-20260314092653-")+6)

	// suffixes are random, collisions over a small sample should not happen
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		num := NewOrderNumber(now)
		require.False(t, seen[num], "duplicate order number %s", num)
		seen[num] = true
	}
}

func TestOrder_CourseIDs(t *testing.T) {
	o := &Order{Items: []Item{{CourseID: "c1"}, {CourseID: "c2"}}}
	assert.Equal(t, []string{"c1", "c2"}, o.CourseIDs())
}
