package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coursehub/enrollment-service/internal/model"
)

// Provisioner grants real course access in the downstream LMS. It is
// injectable so core logic never depends on randomness or a live
// system; failures are treated as transient and retried with backoff.
type Provisioner interface {
	GrantAccess(ctx context.Context, e *model.Enrollment) (firstLessonURL string, err error)
}

// ActivationPolicy is the retry budget and backoff schedule for the
// activation step.
type ActivationPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// DefaultActivationPolicy is 3 retries with capped exponential backoff,
// base 5 minutes, ceiling 15 minutes.
func DefaultActivationPolicy() ActivationPolicy {
	return ActivationPolicy{
		MaxRetries:  3,
		BackoffBase: 5 * time.Minute,
		BackoffCap:  15 * time.Minute,
	}
}

// NextDelay returns the wait before the next attempt, given the number
// of failed attempts so far (1-based): base*2^(attempts-1), capped.
// The schedule is non-decreasing: 5m, 10m, then 15m for every further
// attempt.
func (p ActivationPolicy) NextDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	if delay > p.BackoffCap {
		return p.BackoffCap
	}
	return delay
}

// Activate converts a payment-completed enrollment into one with real
// course access. It is idempotent-safe: calling it repeatedly on an
// already-failing enrollment only consumes retry budget.
//
// On provisioning failure the enrollment moves to (or stays in)
// activating with the attempt counter incremented and the next retry
// scheduled per the backoff policy. Once the budget is exhausted the
// enrollment stays stuck in activating for operator intervention; it is
// never auto-cancelled and granted access is never revoked.
func (s *EnrollmentService) Activate(ctx context.Context, enrollmentID string) (*model.ActivationResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// The row lock makes the read-modify-write atomic: two concurrent
	// activation attempts cannot both increment the counter from the
	// same stale read.
	enrollment, err := s.enrollments.GetByIDForUpdate(ctx, tx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != model.EnrollmentEnrolled && enrollment.Status != model.EnrollmentActivating {
		return nil, ErrNotEligibleForActivation
	}
	if enrollment.PaymentStatus != model.PaymentCompleted {
		return nil, ErrNotEligibleForActivation
	}

	// The attempt is underway: enrolled enrollments enter activating
	// before the provisioning call.
	if enrollment.Status == model.EnrollmentEnrolled {
		if err := s.transition(enrollment, model.EnrollmentActivating, nil); err != nil {
			return nil, err
		}
	}

	firstLessonURL, provErr := s.provisioner.GrantAccess(ctx, enrollment)

	var result *model.ActivationResult
	if provErr == nil {
		if err := s.transition(enrollment, model.EnrollmentActive, nil); err != nil {
			return nil, err
		}
		enrollment.NextRetryAt = nil
		result = &model.ActivationResult{
			Granted:            true,
			FirstLessonURL:     &firstLessonURL,
			RetryAvailable:     false,
			ActivationAttempts: enrollment.ActivationAttempts,
		}
	} else {
		if err := s.transition(enrollment, model.EnrollmentActivating, nil); err != nil {
			return nil, err
		}
		enrollment.ActivationAttempts++
		retryAvailable := enrollment.ActivationAttempts < enrollment.MaxRetries
		if retryAvailable {
			retryAt := s.now().Add(s.policy.NextDelay(enrollment.ActivationAttempts))
			enrollment.NextRetryAt = &retryAt
		} else {
			// Retry budget exhausted: stuck in activating until an
			// operator steps in.
			enrollment.NextRetryAt = nil
		}
		result = &model.ActivationResult{
			Granted:            false,
			RetryAvailable:     retryAvailable,
			ActivationAttempts: enrollment.ActivationAttempts,
			EstimatedCompletion: enrollment.NextRetryAt,
		}
		log.Warn().
			Err(provErr).
			Str("enrollment_id", enrollment.ID).
			Int("attempts", enrollment.ActivationAttempts).
			Int("max_retries", enrollment.MaxRetries).
			Bool("retry_available", retryAvailable).
			Msg("course activation failed")
	}

	if err := s.enrollments.Update(ctx, tx, enrollment); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// RetryActivation re-runs activation if the retry budget and backoff
// window allow it. Returns ErrNoRetriesAvailable otherwise.
func (s *EnrollmentService) RetryActivation(ctx context.Context, enrollmentID string) (*model.ActivationResult, error) {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	if !enrollment.CanRetryActivation(s.now()) {
		return nil, ErrNoRetriesAvailable
	}
	return s.Activate(ctx, enrollmentID)
}
