// Package scheduler triggers jobs on cron expressions.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// DefaultSpec runs at 06:00, 12:00 and 18:00.
const DefaultSpec = "0 6,12,18 * * *"

// CronScheduler runs a job on a standard five-field cron expression.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler validates spec; a nil location means UTC.
func NewCronScheduler(spec string, location *time.Location, logger *slog.Logger) (*CronScheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, eris.Wrapf(err, "scheduler: invalid cron spec %q", spec)
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{
		spec:     spec,
		location: location,
		logger:   logger.With("component", "cron", "spec", spec),
	}, nil
}

// Start registers job and starts the cron loop. Overlapping runs are skipped.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	log := cronLogger{logger: c.logger}
	cronner := cron.New(
		cron.WithLogger(log),
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	id, err := cronner.AddFunc(c.spec, func() {
		if ctx.Err() != nil {
			return
		}
		job(time.Now().In(c.location))
	})
	if err != nil {
		return eris.Wrap(err, "scheduler: add job")
	}
	cronner.Start()
	c.cron = cronner
	c.logger.Info("scheduler started", "next", cronner.Entry(id).Next)
	return nil
}

// Stop halts the cron loop and waits for a running job or ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cronner := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cronner == nil {
		return nil
	}

	select {
	case <-cronner.Stop().Done():
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "scheduler: stop")
	}
}

// Next reports the upcoming trigger after from.
func (c *CronScheduler) Next(from time.Time) time.Time {
	schedule, err := cron.ParseStandard(c.spec)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(from.In(c.location))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
