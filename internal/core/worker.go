package core

// worker.go runs generation jobs.
//
// Job ids flow through a buffered channel to a fixed set of workers. A job
// is claimed in the store before any work starts, so an id queued twice is
// processed once; the second claim finds the job no longer pending and is
// skipped. Failed attempts go back to pending with a growing delay until
// MaxAttempts is reached, after which the job is marked failed.

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/dummycsv/internal/errs"
	"github.com/JonMunkholm/dummycsv/internal/logging"
)

// Enqueue queues a job for the workers without blocking. It reports false
// when the queue is full; the job then stays pending until the scheduler
// finds it.
func (s *Service) Enqueue(jobID string) bool {
	select {
	case s.queue <- jobID:
		return true
	default:
		return false
	}
}

// RunWorkers processes queued jobs until ctx is cancelled.
func (s *Service) RunWorkers(ctx context.Context) error {
	slog.Info("generation workers started", "workers", s.opts.Workers, "queue_size", s.opts.QueueSize)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.opts.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-s.queue:
					s.ProcessJob(ctx, id)
				}
			}
		})
	}

	err := g.Wait()
	s.stopRetries()
	slog.Info("generation workers stopped")
	return err
}

// ProcessJob runs one attempt of a job. Every outcome is recorded on the
// job; nothing is returned.
func (s *Service) ProcessJob(ctx context.Context, jobID string) {
	job, err := s.store.ClaimJob(ctx, jobID, s.now())
	switch {
	case err == nil:
	case errs.IsNotFound(err):
		slog.Debug("job no longer exists", "job_id", jobID)
		return
	case errs.IsConflict(err):
		slog.Debug("job not pending, skipping", "job_id", jobID)
		return
	default:
		slog.Error("failed to claim job", "job_id", jobID, "error", err)
		return
	}

	logger := logging.WithFields(ctx,
		"job_id", job.ID,
		"dataset_id", job.DatasetID,
		"attempt", job.Attempts,
	)
	ctx = logging.NewContext(ctx, logger)

	ds, err := s.store.GetDataset(ctx, job.DatasetID)
	if err != nil {
		if errs.IsNotFound(err) {
			logger.Info("dataset no longer exists, nothing to generate")
			s.completeJob(ctx, logger, job)
			return
		}
		s.failAttempt(ctx, logger, job, err)
		return
	}

	start := time.Now()
	if err := s.generate(ctx, ds); err != nil {
		s.failAttempt(ctx, logger, job, err)
		return
	}
	if err := s.store.MarkDatasetProcessed(ctx, ds.ID); err != nil {
		if errs.IsNotFound(err) {
			// Deleted while generating.
			s.removeFile(context.WithoutCancel(ctx), ds)
			s.completeJob(ctx, logger, job)
			return
		}
		s.failAttempt(ctx, logger, job, err)
		return
	}
	s.completeJob(ctx, logger, job)

	logger.Info("dataset generated",
		"rows", ds.Rows,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Service) completeJob(ctx context.Context, logger *slog.Logger, job Job) {
	if err := s.store.CompleteJob(context.WithoutCancel(ctx), job.ID, s.now()); err != nil && !errs.IsNotFound(err) {
		logger.Error("failed to complete job", "error", err)
	}
}

// failAttempt records a failed attempt and schedules the next one, or
// marks the job failed when no attempts remain. An attempt cut short by
// shutdown is put back to pending without delay.
func (s *Service) failAttempt(ctx context.Context, logger *slog.Logger, job Job, cause error) {
	now := s.now()
	bg := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		if err := s.store.RetryJob(bg, job.ID, "interrupted by shutdown", now, now); err != nil && !errs.IsNotFound(err) {
			logger.Error("failed to requeue interrupted job", "error", err)
		}
		logger.Warn("generation interrupted by shutdown")
		return
	}

	if job.Attempts >= job.MaxAttempts {
		if err := s.store.FailJob(bg, job.ID, cause.Error(), now); err != nil && !errs.IsNotFound(err) {
			logger.Error("failed to mark job failed", "error", err)
		}
		logger.Error("generation failed, no attempts left",
			"max_attempts", job.MaxAttempts,
			"error", cause,
		)
		return
	}

	delay := s.backoff(job.Attempts)
	if err := s.store.RetryJob(bg, job.ID, cause.Error(), now.Add(delay), now); err != nil {
		if !errs.IsNotFound(err) {
			logger.Error("failed to schedule retry", "error", err)
		}
		return
	}
	s.scheduleRetry(job.ID, delay)

	logger.Warn("generation failed, will retry",
		"retry_in", delay.String(),
		"error", cause,
	)
}

// backoff returns the delay after the given attempt: RetryBackoff doubled
// per previous attempt, capped at MaxBackoff.
func (s *Service) backoff(attempt int) time.Duration {
	delay := s.opts.RetryBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.opts.MaxBackoff {
			return s.opts.MaxBackoff
		}
	}
	return min(delay, s.opts.MaxBackoff)
}

func (s *Service) scheduleRetry(jobID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.retries[jobID]; ok {
		t.Stop()
	}
	s.retries[jobID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.retries, jobID)
		s.mu.Unlock()

		if !s.Enqueue(jobID) {
			slog.Warn("generation queue full, retry left for the scheduler", "job_id", jobID)
		}
	})
}

func (s *Service) stopRetries() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.retries {
		t.Stop()
		delete(s.retries, id)
	}
}

// PendingRetries returns the number of retries waiting on a timer.
func (s *Service) PendingRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retries)
}
