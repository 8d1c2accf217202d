package core

// scheduler.go recovers generation jobs the workers never saw.
//
// A job can be left behind when the queue was full at creation, when a
// retry timer was lost to a restart, or when the process died mid-run and
// the job is stuck in running. Each pass:
//  1. Resets running jobs not updated for StaleAfter back to pending
//  2. Queues pending jobs whose run_at has passed
//
// Failures are logged and retried on the next pass.

import (
	"context"
	"log/slog"
	"time"
)

// StartJobScheduler runs a recovery pass immediately, then every
// ScanInterval, until ctx is cancelled.
func (s *Service) StartJobScheduler(ctx context.Context) {
	slog.Info("job scheduler started",
		"scan_interval", s.opts.ScanInterval.String(),
		"stale_after", s.opts.StaleAfter.String(),
	)

	// Run immediately on startup
	s.RecoverJobs(ctx)

	ticker := time.NewTicker(s.opts.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job scheduler stopped")
			return
		case <-ticker.C:
			s.RecoverJobs(ctx)
		}
	}
}

// RecoverJobs performs one reset + requeue pass and returns how many jobs
// were queued.
func (s *Service) RecoverJobs(ctx context.Context) int {
	start := time.Now()
	now := s.now()

	reset, err := s.store.ResetStaleJobs(ctx, now.Add(-s.opts.StaleAfter), now)
	if err != nil {
		slog.Error("stale job reset failed", "error", err)
	} else if reset > 0 {
		slog.Warn("reset stale running jobs", "jobs_reset", reset)
	}

	// Only fill what the queue can take without blocking.
	limit := cap(s.queue) - len(s.queue)
	if limit <= 0 {
		slog.Debug("generation queue full, skipping requeue")
		return 0
	}

	jobs, err := s.store.DueJobs(ctx, now, limit)
	if err != nil {
		slog.Error("due job lookup failed", "error", err)
		return 0
	}

	queued := 0
	for _, j := range jobs {
		if !s.Enqueue(j.ID) {
			break
		}
		queued++
	}

	if queued > 0 || reset > 0 {
		slog.Info("job recovery pass completed",
			"jobs_queued", queued,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return queued
}
