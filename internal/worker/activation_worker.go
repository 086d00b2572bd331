// Package worker drives the post-payment activation retries in the
// background. The HTTP handlers only record failures and schedules; the
// worker is what re-invokes activation once a backoff window elapses.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/internal/service"
)

// ActivationClaimer claims due activations so no enrollment is picked
// up twice concurrently.
type ActivationClaimer interface {
	ClaimDueActivations(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]string, error)
}

// Activator re-runs the activation step for one enrollment.
type Activator interface {
	Activate(ctx context.Context, enrollmentID string) (*model.ActivationResult, error)
}

// Options tunes the poll schedule and claim behavior.
type Options struct {
	PollInterval time.Duration
	ClaimLease   time.Duration
	BatchSize    int
}

// ActivationWorker polls for enrollments whose activation retry is due
// and re-invokes activation on each.
type ActivationWorker struct {
	cron      *cron.Cron
	claimer   ActivationClaimer
	activator Activator
	opts      Options
	now       func() time.Time
}

// New creates an ActivationWorker.
func New(claimer ActivationClaimer, activator Activator, opts Options) *ActivationWorker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.ClaimLease <= 0 {
		opts.ClaimLease = time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	return &ActivationWorker{
		cron:      cron.New(),
		claimer:   claimer,
		activator: activator,
		opts:      opts,
		now:       time.Now,
	}
}

// Start registers and starts the poll job.
func (w *ActivationWorker) Start() error {
	spec := fmt.Sprintf("@every %s", w.opts.PollInterval)
	if _, err := w.cron.AddFunc(spec, w.runOnce); err != nil {
		return fmt.Errorf("register activation poll job: %w", err)
	}
	w.cron.Start()
	log.Info().Dur("poll_interval", w.opts.PollInterval).Msg("activation worker started")
	return nil
}

// Stop stops the scheduler and waits for a running poll to finish.
func (w *ActivationWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("activation worker stopped")
}

func (w *ActivationWorker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.ClaimLease)
	defer cancel()

	ids, err := w.claimer.ClaimDueActivations(ctx, w.now(), w.opts.ClaimLease, w.opts.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to claim due activations")
		return
	}
	if len(ids) == 0 {
		return
	}
	log.Info().Int("count", len(ids)).Msg("retrying due activations")

	for _, id := range ids {
		result, err := w.activator.Activate(ctx, id)
		if err != nil {
			// The enrollment may have been cancelled or completed between
			// claim and activation; that is not a worker failure.
			if errors.Is(err, service.ErrNotEligibleForActivation) || errors.Is(err, service.ErrEnrollmentNotFound) {
				continue
			}
			log.Error().Err(err).Str("enrollment_id", id).Msg("background activation errored")
			continue
		}
		if result.Granted {
			log.Info().Str("enrollment_id", id).Msg("background activation granted access")
		}
	}
}
