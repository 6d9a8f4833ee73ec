// Package scheduler runs periodic retraining on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Job func(ctx context.Context) error

type Scheduler struct {
	c   *cron.Cron
	log *slog.Logger
}

// New schedules job on spec, a standard five-field cron expression or a
// descriptor such as "@daily". A run still in progress makes the next one
// skip.
func New(spec string, timeout time.Duration, job Job, log *slog.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		if err := job(ctx); err != nil {
			log.Error("scheduled retrain failed", slog.String("err", err.Error()))
			return
		}
		log.Info("scheduled retrain done", slog.Duration("took", time.Since(start)))
	})
	if err != nil {
		return nil, fmt.Errorf("bad schedule %q: %w", spec, err)
	}
	return &Scheduler{c: c, log: log}, nil
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop prevents new runs and waits for a running one or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("retrain still running at shutdown")
	}
}

func (s *Scheduler) Next() time.Time {
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
