package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/internal/service"
)

// mockClaimer is a mock implementation of ActivationClaimer.
type mockClaimer struct {
	claimFn func(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]string, error)
}

func (m *mockClaimer) ClaimDueActivations(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]string, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, now, lease, limit)
	}
	return nil, nil
}

// mockActivator is a mock implementation of Activator.
type mockActivator struct {
	activateFn func(ctx context.Context, enrollmentID string) (*model.ActivationResult, error)
}

func (m *mockActivator) Activate(ctx context.Context, enrollmentID string) (*model.ActivationResult, error) {
	if m.activateFn != nil {
		return m.activateFn(ctx, enrollmentID)
	}
	return &model.ActivationResult{Granted: true}, nil
}

func TestActivationWorker_RunOnce_ActivatesClaimed(t *testing.T) {
	claimer := &mockClaimer{
		claimFn: func(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]string, error) {
			assert.Equal(t, time.Minute, lease)
			assert.Equal(t, 20, limit)
			return []string{"enr-1", "enr-2"}, nil
		},
	}
	var activated []string
	activator := &mockActivator{
		activateFn: func(ctx context.Context, enrollmentID string) (*model.ActivationResult, error) {
			activated = append(activated, enrollmentID)
			return &model.ActivationResult{Granted: true}, nil
		},
	}

	w := New(claimer, activator, Options{})
	w.runOnce()

	assert.Equal(t, []string{"enr-1", "enr-2"}, activated)
}

func TestActivationWorker_RunOnce_NothingDue(t *testing.T) {
	activatorCalled := false
	activator := &mockActivator{
		activateFn: func(ctx context.Context, enrollmentID string) (*model.ActivationResult, error) {
			activatorCalled = true
			return nil, nil
		},
	}

	w := New(&mockClaimer{}, activator, Options{})
	w.runOnce()

	assert.False(t, activatorCalled)
}

func TestActivationWorker_RunOnce_ClaimError(t *testing.T) {
	claimer := &mockClaimer{
		claimFn: func(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]string, error) {
			return nil, errors.New("database connection failed")
		},
	}
	activatorCalled := false
	activator := &mockActivator{
		activateFn: func(ctx context.Context, enrollmentID string) (*model.ActivationResult, error) {
			activatorCalled = true
			return nil, nil
		},
	}

	w := New(claimer, activator, Options{})
	w.runOnce()

	assert.False(t, activatorCalled)
}

func TestActivationWorker_RunOnce_SkipsIneligible(t *testing.T) {
	// Enrollments cancelled or completed between claim and activation
	// are skipped without aborting the batch.
	claimer := &mockClaimer{
		claimFn: func(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]string, error) {
			return []string{"enr-1", "enr-2", "enr-3"}, nil
		},
	}
	var activated []string
	activator := &mockActivator{
		activateFn: func(ctx context.Context, enrollmentID string) (*model.ActivationResult, error) {
			if enrollmentID == "enr-1" {
				return nil, service.ErrNotEligibleForActivation
			}
			if enrollmentID == "enr-2" {
				return nil, service.ErrEnrollmentNotFound
			}
			activated = append(activated, enrollmentID)
			return &model.ActivationResult{Granted: false, RetryAvailable: true}, nil
		},
	}

	w := New(claimer, activator, Options{})
	w.runOnce()

	assert.Equal(t, []string{"enr-3"}, activated)
}

func TestActivationWorker_Options_Defaults(t *testing.T) {
	w := New(&mockClaimer{}, &mockActivator{}, Options{})

	assert.Equal(t, 30*time.Second, w.opts.PollInterval)
	assert.Equal(t, time.Minute, w.opts.ClaimLease)
	assert.Equal(t, 20, w.opts.BatchSize)
}

func TestActivationWorker_StartStop(t *testing.T) {
	w := New(&mockClaimer{}, &mockActivator{}, Options{PollInterval: time.Hour})

	require.NoError(t, w.Start())
	w.Stop()
}
