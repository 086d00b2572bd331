package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentStatus_IsValid(t *testing.T) {
	for _, s := range []EnrollmentStatus{
		EnrollmentPending, EnrollmentPaymentPending, EnrollmentEnrolled,
		EnrollmentActivating, EnrollmentActive, EnrollmentCancelled,
	} {
		assert.True(t, s.IsValid(), string(s))
	}
	assert.False(t, EnrollmentStatus("refunded").IsValid())
	assert.False(t, EnrollmentStatus("").IsValid())
}

func TestEnrollmentStatus_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		name    string
		from    EnrollmentStatus
		to      EnrollmentStatus
		allowed bool
	}{
		{"pending_to_payment_pending", EnrollmentPending, EnrollmentPaymentPending, true},
		{"pending_to_enrolled_free_course", EnrollmentPending, EnrollmentEnrolled, true},
		{"pending_to_cancelled", EnrollmentPending, EnrollmentCancelled, true},
		{"pending_to_active", EnrollmentPending, EnrollmentActive, false},
		{"payment_pending_to_enrolled", EnrollmentPaymentPending, EnrollmentEnrolled, true},
		{"payment_pending_retry", EnrollmentPaymentPending, EnrollmentPaymentPending, true},
		{"payment_pending_to_cancelled", EnrollmentPaymentPending, EnrollmentCancelled, true},
		{"payment_pending_to_activating", EnrollmentPaymentPending, EnrollmentActivating, false},
		{"enrolled_to_activating", EnrollmentEnrolled, EnrollmentActivating, true},
		{"enrolled_to_cancelled", EnrollmentEnrolled, EnrollmentCancelled, true},
		{"enrolled_to_active_direct", EnrollmentEnrolled, EnrollmentActive, false},
		{"activating_to_active", EnrollmentActivating, EnrollmentActive, true},
		{"activating_retry", EnrollmentActivating, EnrollmentActivating, true},
		{"activating_to_cancelled", EnrollmentActivating, EnrollmentCancelled, true},
		{"activating_back_to_enrolled", EnrollmentActivating, EnrollmentEnrolled, false},
		{"active_is_terminal", EnrollmentActive, EnrollmentCancelled, false},
		{"cancelled_is_terminal", EnrollmentCancelled, EnrollmentPending, false},
		{"cancelled_to_cancelled", EnrollmentCancelled, EnrollmentCancelled, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestEnrollmentStatus_IsTerminal(t *testing.T) {
	assert.True(t, EnrollmentActive.IsTerminal())
	assert.True(t, EnrollmentCancelled.IsTerminal())
	assert.False(t, EnrollmentPending.IsTerminal())
	assert.False(t, EnrollmentPaymentPending.IsTerminal())
	assert.False(t, EnrollmentEnrolled.IsTerminal())
	assert.False(t, EnrollmentActivating.IsTerminal())
}

func TestEnrollment_FinalAmount(t *testing.T) {
	e := &Enrollment{PaymentAmount: 500000, DiscountApplied: 100000}
	assert.Equal(t, int64(400000), e.FinalAmount())

	// Discount can never push the amount negative
	e = &Enrollment{PaymentAmount: 1000, DiscountApplied: 5000}
	assert.Equal(t, int64(0), e.FinalAmount())

	e = &Enrollment{PaymentAmount: 0, DiscountApplied: 0}
	assert.Equal(t, int64(0), e.FinalAmount())
}

func TestEnrollment_PaymentRequired(t *testing.T) {
	e := &Enrollment{PaymentAmount: 100000, PaymentStatus: PaymentPending}
	assert.True(t, e.PaymentRequired())

	e = &Enrollment{PaymentAmount: 100000, PaymentStatus: PaymentCompleted}
	assert.False(t, e.PaymentRequired())

	// Free after full discount
	e = &Enrollment{PaymentAmount: 100000, DiscountApplied: 100000, PaymentStatus: PaymentPending}
	assert.False(t, e.PaymentRequired())
}

func TestEnrollment_ApplyStatus_GrantsAndRevokesAccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := &Enrollment{Status: EnrollmentPaymentPending}

	e.ApplyStatus(EnrollmentEnrolled, now)
	assert.True(t, e.AccessGranted)
	require.NotNil(t, e.ActivatedAt)
	assert.Equal(t, now, *e.ActivatedAt)

	// The activation timestamp is stamped once and never overwritten
	later := now.Add(time.Hour)
	e.ApplyStatus(EnrollmentActivating, later)
	assert.True(t, e.AccessGranted, "moving to activating must not revoke access")
	e.ApplyStatus(EnrollmentActive, later)
	assert.True(t, e.AccessGranted)
	assert.Equal(t, now, *e.ActivatedAt)
}

func TestEnrollment_ApplyStatus_CancelRevokesAccess(t *testing.T) {
	now := time.Now()
	e := &Enrollment{Status: EnrollmentEnrolled, AccessGranted: true}

	e.ApplyStatus(EnrollmentCancelled, now)
	assert.Equal(t, EnrollmentCancelled, e.Status)
	assert.False(t, e.AccessGranted)
}

func TestEnrollment_CanRetryActivation(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	testCases := []struct {
		name       string
		enrollment Enrollment
		want       bool
	}{
		{
			name:       "due_with_budget",
			enrollment: Enrollment{Status: EnrollmentActivating, ActivationAttempts: 1, MaxRetries: 3, NextRetryAt: &past},
			want:       true,
		},
		{
			name:       "no_schedule_yet",
			enrollment: Enrollment{Status: EnrollmentActivating, ActivationAttempts: 1, MaxRetries: 3},
			want:       true,
		},
		{
			name:       "backoff_window_not_elapsed",
			enrollment: Enrollment{Status: EnrollmentActivating, ActivationAttempts: 1, MaxRetries: 3, NextRetryAt: &future},
			want:       false,
		},
		{
			name:       "budget_exhausted",
			enrollment: Enrollment{Status: EnrollmentActivating, ActivationAttempts: 3, MaxRetries: 3, NextRetryAt: &past},
			want:       false,
		},
		{
			name:       "wrong_status",
			enrollment: Enrollment{Status: EnrollmentEnrolled, ActivationAttempts: 0, MaxRetries: 3},
			want:       false,
		},
		{
			name:       "cancelled",
			enrollment: Enrollment{Status: EnrollmentCancelled, ActivationAttempts: 1, MaxRetries: 3, NextRetryAt: &past},
			want:       false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.enrollment.CanRetryActivation(now))
		})
	}
}
