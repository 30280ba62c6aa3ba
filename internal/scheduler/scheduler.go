// Package scheduler runs the periodic monitor tasks on cron schedules.
//
// Two runs of the same job never overlap: a trigger that fires while the
// previous run is still going is a logged no-op.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one schedulable task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler wraps the cron runner with non-overlap guards and run logging.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	log  zerolog.Logger
}

// New creates a scheduler. The context bounds every job run; cancelling it
// stops in-flight runs at their next suspension point.
func New(ctx context.Context, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		ctx:  ctx,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob schedules a job with a standard 5-field cron expression.
func (s *Scheduler) AddJob(spec string, job Job) error {
	var inFlight atomic.Bool

	_, err := s.cron.AddFunc(spec, func() {
		if !inFlight.CompareAndSwap(false, true) {
			s.log.Warn().Str("job", job.Name()).Msg("Previous run still in flight, skipping trigger")
			return
		}
		defer inFlight.Store(false)

		start := time.Now()
		s.log.Debug().Str("job", job.Name()).Msg("Job starting")

		if err := job.Run(s.ctx); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Dur("elapsed", time.Since(start)).Msg("Job failed")
			return
		}
		s.log.Info().Str("job", job.Name()).Dur("elapsed", time.Since(start)).Msg("Job completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s with spec %q: %w", job.Name(), spec, err)
	}

	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
