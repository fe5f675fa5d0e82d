package accrual

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler fires the accrual job once per day shortly after midnight UTC.
// It is an in-process convenience for single-instance deployments; the job's
// calculation-log guard keeps duplicate fires harmless, so running it next to
// an external cron is safe.
type Scheduler struct {
	job    *Job
	logger *slog.Logger
	stop   chan struct{}
	done   chan struct{}
}

func NewScheduler(job *Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		job:    job,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the scheduling loop. It also runs the job once immediately
// to catch up the current date after a restart.
func (s *Scheduler) Start() {
	go s.loop()
}

func (s *Scheduler) loop() {
	defer close(s.done)

	s.runOnce()

	for {
		wait := time.Until(nextFire(time.Now().UTC()))
		timer := time.NewTimer(wait)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := s.job.Run(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("scheduled accrual run failed", "error", err)
		return
	}
	if result.AlreadyRun {
		return
	}
	s.logger.Info("scheduled accrual run finished",
		"date", result.Date.Format("2006-01-02"),
		"accounts_processed", result.AccountsProcessed,
		"failures", len(result.Failures))
}

// nextFire returns 00:05 UTC of the following day. The five-minute offset
// keeps the run clear of midnight clock skew between replicas.
func nextFire(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}
