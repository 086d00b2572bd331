package service

import (
	"errors"
	"fmt"

	"github.com/coursehub/enrollment-service/internal/model"
)

var (
	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrValidation is returned when registration input fails the service-side checks
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateEnrollment is returned when a (user, course) pair is already enrolled
	ErrDuplicateEnrollment = errors.New("user is already enrolled in this course")

	// ErrEnrollmentNotFound is returned when an enrollment id is unknown
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrCourseNotFound is returned when the course does not exist in the catalog
	ErrCourseNotFound = errors.New("course not found or not available for enrollment")

	// ErrUserNotFound is returned when the user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidDiscount is returned when a supplied discount code is rejected.
	// Registration is aborted; a rejected code is never silently ignored.
	ErrInvalidDiscount = errors.New("invalid discount code")

	// ErrInvalidTransition is returned on an illegal state machine edge
	ErrInvalidTransition = errors.New("invalid enrollment status transition")

	// ErrPaymentNotPending is returned when a charge is attempted against an
	// enrollment that is not awaiting payment
	ErrPaymentNotPending = errors.New("enrollment is not pending payment")

	// ErrPaymentFailed is the base error for declined or timed-out charges
	ErrPaymentFailed = errors.New("payment processing failed")

	// ErrNotEligibleForActivation is returned when activation preconditions
	// are not met (wrong status or payment not completed)
	ErrNotEligibleForActivation = errors.New("enrollment is not eligible for activation")

	// ErrNoRetriesAvailable is returned when a manual activation retry is
	// requested but the retry budget is exhausted or the backoff window
	// has not elapsed
	ErrNoRetriesAvailable = errors.New("no retries available for this enrollment")
)

// ValidationError carries the failing field for registration input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DiscountError carries the coupon engine's rejection reason.
type DiscountError struct {
	Code    string
	Message string
}

func (e *DiscountError) Error() string { return e.Message }

func (e *DiscountError) Unwrap() error { return ErrInvalidDiscount }

// TransitionError reports the illegal edge that was attempted.
type TransitionError struct {
	From model.EnrollmentStatus
	To   model.EnrollmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition enrollment from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// PaymentError carries the gateway decline details surfaced to the caller.
type PaymentError struct {
	Code            string
	Message         string
	GatewayResponse string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed [%s]: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error { return ErrPaymentFailed }
