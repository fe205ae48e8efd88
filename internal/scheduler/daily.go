// Package scheduler runs a job once a day at a fixed local wall-clock time.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is one scheduled unit of work. Its error is logged, never fatal.
type Job func(ctx context.Context) error

// Daily fires job every day at hour:minute in loc.
type Daily struct {
	hour, minute int
	loc          *time.Location
	runOnStart   bool
	job          Job
	now          func() time.Time
	logger       *zap.Logger
}

// NewDaily creates a daily schedule. With runOnStart the job also runs once
// immediately when Run starts. now is the process clock; nil means time.Now.
func NewDaily(hour, minute int, loc *time.Location, runOnStart bool, now func() time.Time, job Job, logger *zap.Logger) *Daily {
	if now == nil {
		now = time.Now
	}
	return &Daily{
		hour:       hour,
		minute:     minute,
		loc:        loc,
		runOnStart: runOnStart,
		job:        job,
		now:        now,
		logger:     logger,
	}
}

// Next returns the first fire time strictly after t.
func (d *Daily) Next(t time.Time) time.Time {
	t = t.In(d.loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

// Run blocks until ctx is cancelled. The timer is recomputed after every run
// so DST shifts and slow jobs do not accumulate drift.
func (d *Daily) Run(ctx context.Context) error {
	if d.runOnStart {
		d.fire(ctx)
	}

	for {
		now := d.now()
		next := d.Next(now)
		d.logger.Info("scheduler: next run", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			d.logger.Info("scheduler: stopped")
			return ctx.Err()
		case <-timer.C:
			d.fire(ctx)
		}
	}
}

func (d *Daily) fire(ctx context.Context) {
	start := d.now()
	err := d.job(ctx)
	took := d.now().Sub(start)
	if err != nil {
		d.logger.Error("scheduler: job failed", zap.Duration("took", took), zap.Error(err))
		return
	}
	d.logger.Info("scheduler: job finished", zap.Duration("took", took))
}
