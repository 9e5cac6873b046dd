// Package scheduler fires the playtime check on a standard five-field cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Nlkomaru/vrc-playtime/internal/logger"
)

// DefaultSchedule runs the check at the top of every hour
const DefaultSchedule = "0 * * * *"

// RunFunc is invoked on every firing with the schedule expression that fired
type RunFunc func(ctx context.Context, schedule string)

// Scheduler owns a cron runner with a single entry
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	run      RunFunc
	log      *logger.Logger
}

// New parses spec and prepares a scheduler. Firings that arrive while the
// previous invocation is still running are skipped.
func New(spec string, run RunFunc, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Default()
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}

	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: schedule,
		spec:     spec,
		run:      run,
		log:      log,
	}, nil
}

// Spec returns the schedule expression
func (s *Scheduler) Spec() string {
	return s.spec
}

// Next returns the next firing time after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start begins firing in the background. Every invocation gets ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.run(ctx, s.spec)
	}))
	s.cron.Start()

	s.log.Info("Scheduler started", logger.Fields{
		"schedule": s.spec,
		"next_run": s.Next(time.Now()).Format(time.RFC3339),
	})
}

// Stop prevents further firings and waits for a running invocation to finish,
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped", nil)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running check: %w", ctx.Err())
	}
}

// cronLogger adapts the structured logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.log.Warn("Skipping scheduled check, previous run still in progress", toFields(keysAndValues))
		return
	}
	l.log.Debug("cron: "+msg, toFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, toFields(keysAndValues), err)
}

func toFields(keysAndValues []interface{}) logger.Fields {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make(logger.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		value := keysAndValues[i+1]
		if t, ok := value.(time.Time); ok {
			value = t.Format(time.RFC3339)
		}
		fields[key] = value
	}
	return fields
}
