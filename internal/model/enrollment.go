package model

import "time"

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentPending        EnrollmentStatus = "pending"
	EnrollmentPaymentPending EnrollmentStatus = "payment_pending"
	EnrollmentEnrolled       EnrollmentStatus = "enrolled"
	EnrollmentActivating     EnrollmentStatus = "activating"
	EnrollmentActive         EnrollmentStatus = "active"
	EnrollmentCancelled      EnrollmentStatus = "cancelled"
)

// allowedTransitions is the state machine edge table. A status missing
// from the map is terminal.
var allowedTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPending: {
		EnrollmentPaymentPending,
		EnrollmentEnrolled, // free courses skip payment
		EnrollmentCancelled,
	},
	EnrollmentPaymentPending: {
		EnrollmentEnrolled,
		EnrollmentPaymentPending, // payment retry, new payment attempt
		EnrollmentCancelled,
	},
	EnrollmentEnrolled: {
		EnrollmentActivating,
		EnrollmentCancelled,
	},
	EnrollmentActivating: {
		EnrollmentActive,
		EnrollmentActivating, // activation retry
		EnrollmentCancelled,
	},
}

// IsValid reports whether s is a known enrollment status.
func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case EnrollmentPending, EnrollmentPaymentPending, EnrollmentEnrolled,
		EnrollmentActivating, EnrollmentActive, EnrollmentCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s EnrollmentStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// CanTransitionTo reports whether the edge s -> target is allowed.
func (s EnrollmentStatus) CanTransitionTo(target EnrollmentStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Enrollment binds a user to a course purchase. The user/course/amount
// fields are immutable after creation; the record is never deleted,
// cancellation is a status.
type Enrollment struct {
	ID                 string           `json:"id"`
	UserID             int64            `json:"user_id"`
	CourseID           int64            `json:"course_id"`
	FullName           string           `json:"full_name"`
	Email              string           `json:"email"`
	PaymentAmount      int64            `json:"payment_amount"`
	DiscountCode       *string          `json:"discount_code,omitempty"`
	DiscountApplied    int64            `json:"discount_applied"`
	Status             EnrollmentStatus `json:"status"`
	PaymentStatus      PaymentStatus    `json:"payment_status"`
	AccessGranted      bool             `json:"access_granted"`
	EnrolledAt         time.Time        `json:"enrolled_at"`
	ActivatedAt        *time.Time       `json:"activated_at,omitempty"`
	ActivationAttempts int              `json:"activation_attempts"`
	MaxRetries         int              `json:"max_retries"`
	NextRetryAt        *time.Time       `json:"next_retry_at,omitempty"`
}

// FinalAmount is the payable amount after discount, never negative.
func (e *Enrollment) FinalAmount() int64 {
	final := e.PaymentAmount - e.DiscountApplied
	if final < 0 {
		return 0
	}
	return final
}

// PaymentRequired reports whether the enrollment still needs a payment.
func (e *Enrollment) PaymentRequired() bool {
	return e.FinalAmount() > 0 && e.PaymentStatus != PaymentCompleted
}

// ApplyStatus moves the enrollment to target and maintains the derived
// fields. Access is granted on entering enrolled/active and revoked only
// on cancellation; the activation timestamp is stamped on the first
// entry to enrolled/active and never overwritten. Callers must check
// CanTransitionTo first.
func (e *Enrollment) ApplyStatus(target EnrollmentStatus, now time.Time) {
	e.Status = target
	switch target {
	case EnrollmentEnrolled, EnrollmentActive:
		e.AccessGranted = true
		if e.ActivatedAt == nil {
			ts := now
			e.ActivatedAt = &ts
		}
	case EnrollmentCancelled:
		e.AccessGranted = false
	}
}

// CanRetryActivation reports whether a manual activation retry is
// currently allowed.
func (e *Enrollment) CanRetryActivation(now time.Time) bool {
	if e.Status != EnrollmentActivating {
		return false
	}
	if e.ActivationAttempts >= e.MaxRetries {
		return false
	}
	return e.NextRetryAt == nil || !now.Before(*e.NextRetryAt)
}
