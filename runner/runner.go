package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"page-audit/artifact"
	"page-audit/audit"
	"page-audit/metrics"
	"page-audit/report"
	"page-audit/target"
)

// Gatherer collects the artifacts of one target.
type Gatherer interface {
	Collect(ctx context.Context, t target.Target) (artifact.Map, error)
}

// Auditor turns artifacts into results.
type Auditor interface {
	Evaluate(m artifact.Map) []audit.Result
}

// Sink receives each target's outcome.
type Sink interface {
	Write(ctx context.Context, o report.Outcome) error
}

// Runner processes a queue of targets one at a time.
type Runner struct {
	Log      *logrus.Entry
	Gatherer Gatherer
	Auditor  Auditor
	Sink     Sink
	Metrics  *metrics.Recorder

	// RunID is shared by every outcome of the run. A new one is generated
	// when empty.
	RunID string
}

// Run drains q in order. A target is removed from the queue only after its
// outcome was handed to the sink. The first target-level error stops the
// run and is returned.
func (r *Runner) Run(ctx context.Context, q *target.Queue) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	log := r.Log.WithField("run", r.RunID)
	log.WithField("targets", q.Len()).Info("Starting audit run")

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, ok := q.Head()
		if !ok {
			break
		}
		if err := r.process(ctx, log.WithField("target", t.URL), t); err != nil {
			r.Metrics.TargetProcessed("error")
			return fmt.Errorf("target %s: %w", t, err)
		}
		r.Metrics.TargetProcessed("ok")
		q.Done()
		processed++
	}

	log.WithField("processed", processed).Info("Audit run complete")
	return nil
}

func (r *Runner) process(ctx context.Context, log *logrus.Entry, t target.Target) error {
	started := time.Now()
	log.Info("Gathering")

	m, err := r.Gatherer.Collect(ctx, t)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	results := r.Auditor.Evaluate(m)
	o := report.NewOutcome(r.RunID, t, started, m, results)

	passed, failed, errored := o.Tally()
	log.WithFields(logrus.Fields{
		"passed":        passed,
		"failed":        failed,
		"indeterminate": errored,
		"duration_ms":   o.DurationMS,
	}).Info("Audited")

	if err := r.Sink.Write(ctx, o); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
