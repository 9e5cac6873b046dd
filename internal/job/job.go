// Package job runs one scheduled playtime check: fetch from Steam, then notify.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Nlkomaru/vrc-playtime/internal/logger"
	"github.com/Nlkomaru/vrc-playtime/internal/notifier"
)

// Outcome summarizes how an invocation ended
type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomeUnavailable  Outcome = "unavailable"
	OutcomeNotifyFailed Outcome = "notify_failed"
	OutcomePanicked     Outcome = "panicked"
)

// Fetcher produces the playtime in hours, or an error when none is available
type Fetcher interface {
	FetchPlaytime(ctx context.Context) (float64, error)
}

// Result describes a finished invocation
type Result struct {
	RunID    string
	Cron     string
	Hours    float64
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

var tracer = otel.Tracer("github.com/Nlkomaru/vrc-playtime/internal/job")

// Runner wires a fetcher to a notifier
type Runner struct {
	fetcher  Fetcher
	notifier notifier.Notifier
	log      *logger.Logger
}

// NewRunner creates a new Runner
func NewRunner(fetcher Fetcher, n notifier.Notifier, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Default()
	}
	return &Runner{
		fetcher:  fetcher,
		notifier: n,
		log:      log,
	}
}

// Run performs one invocation for the given cron expression. It never panics
// and never returns an error: every failure ends up in the log and in Result.
func (r *Runner) Run(ctx context.Context, cron string) (result Result) {
	result = Result{
		RunID: uuid.NewString(),
		Cron:  cron,
	}
	log := r.log.With(logger.Fields{"run_id": result.RunID})
	start := time.Now()

	ctx, span := tracer.Start(ctx, "playtime.check")
	span.SetAttributes(
		attribute.String("cron", cron),
		attribute.String("run_id", result.RunID),
	)

	defer func() {
		if rec := recover(); rec != nil {
			result.Outcome = OutcomePanicked
			result.Err = fmt.Errorf("panic: %v", rec)
			log.Error("Error in scheduled task", logger.Fields{"cron": cron}, result.Err)
		}

		result.Duration = time.Since(start)
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, string(result.Outcome))
		}
		span.End()

		logger.IncrCounter("runs." + string(result.Outcome))
		logger.RecordTiming("runs.duration", result.Duration)
		log.Debug("Metrics snapshot", logger.Fields{"metrics": logger.GetMetricsSnapshot()})
	}()

	logger.IncrCounter("runs.total")
	log.Info(fmt.Sprintf("VRChat playtime check triggered at %s", cron), logger.Fields{"cron": cron})

	hours, err := r.fetcher.FetchPlaytime(ctx)
	if err != nil {
		result.Outcome = OutcomeUnavailable
		result.Err = err
		log.Warn("Failed to get VRChat playtime", logger.Fields{"reason": reason(err)})
		return result
	}
	result.Hours = hours
	logger.SetGauge("playtime.hours", hours)

	if err := r.notifier.Notify(ctx, hours); err != nil {
		result.Outcome = OutcomeNotifyFailed
		result.Err = err
		log.Warn("Failed to send playtime to Discord", logger.Fields{"hours": hours})
		return result
	}

	result.Outcome = OutcomeSent
	log.Info(fmt.Sprintf("Successfully sent playtime to Discord: %v hours", hours), logger.Fields{"hours": hours})
	return result
}

// reason returns the innermost error text, which is what the component already
// logged in detail.
func reason(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
