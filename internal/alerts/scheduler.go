package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Scheduler runs a Sweeper on a cron schedule.
type Scheduler struct {
	schedule string
	sweeper  *Sweeper
}

// NewScheduler validates schedule (standard 5-field cron or a descriptor
// such as "@every 15m").
func NewScheduler(schedule string, sweeper *Sweeper) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, eris.Wrapf(err, "alerts: parse schedule %q", schedule)
	}
	return &Scheduler{schedule: schedule, sweeper: sweeper}, nil
}

// Run blocks until ctx is cancelled. Overlapping sweeps are skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{log: zap.L().With(zap.String("component", "alerts.scheduler"))}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.sweeper.Sweep(ctx); err != nil {
			logger.log.Error("alert sweep failed", zap.Error(err))
		}
	}); err != nil {
		return eris.Wrapf(err, "alerts: schedule %q", s.schedule)
	}

	c.Start()
	logger.log.Info("alert scheduler started", zap.String("schedule", s.schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	logger.log.Info("alert scheduler stopped")
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), zap.Error(err))...)
}

func kvFields(kv []any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
