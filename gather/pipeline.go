package gather

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"page-audit/artifact"
	"page-audit/metrics"
	"page-audit/target"
)

// Pass is one instrumented visit to the target.
type Pass struct {
	Name       string
	LoadPage   bool
	Offline    bool
	Collectors []Collector
}

// LoadError is returned when the page itself could not be loaded. Unlike a
// collector failure it ends the run.
type LoadError struct {
	Target target.Target
	Pass   string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (pass %s): %v", e.Target, e.Pass, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Pipeline runs every registered collector against a target.
type Pipeline struct {
	Log     *logrus.Entry
	Channel Channel
	Passes  []Pass
	Metrics *metrics.Recorder
}

// Names lists every artifact name the pipeline will produce, in order.
func (p *Pipeline) Names() []string {
	var names []string
	for _, pass := range p.Passes {
		for _, c := range pass.Collectors {
			names = append(names, c.Name())
		}
	}
	return names
}

// Collect runs all passes against t. The returned map holds exactly one entry
// per registered collector; collector failures are recorded as failure
// artifacts and never abort the pipeline.
func (p *Pipeline) Collect(ctx context.Context, t target.Target) (artifact.Map, error) {
	artifacts := make(artifact.Map, len(p.Names()))
	for _, pass := range p.Passes {
		if err := p.runPass(ctx, t, pass, artifacts); err != nil {
			return nil, err
		}
	}
	return artifacts, nil
}

func (p *Pipeline) runPass(ctx context.Context, t target.Target, pass Pass, artifacts artifact.Map) error {
	log := p.Log.WithFields(logrus.Fields{"target": t.URL, "pass": pass.Name})
	pc := &PassContext{Pass: pass.Name, Target: t, Channel: p.Channel}
	failed := make(map[string]error)

	if pass.Offline {
		if err := p.Channel.SetOffline(ctx, true); err != nil {
			return &LoadError{Target: t, Pass: pass.Name, Err: fmt.Errorf("go offline: %w", err)}
		}
		defer func() {
			if err := p.Channel.SetOffline(context.WithoutCancel(ctx), false); err != nil {
				log.WithError(err).Warn("Failed to restore network")
			}
		}()
	}

	for _, c := range pass.Collectors {
		if err := p.stage(log, c, "beforePass", func() error { return c.BeforePass(ctx, pc) }); err != nil {
			failed[c.Name()] = err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if pass.LoadPage {
		log.Debug("Loading page")
		if err := p.Channel.Navigate(ctx, t.URL); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &LoadError{Target: t, Pass: pass.Name, Err: err}
		}
	}

	for _, c := range pass.Collectors {
		if _, ok := failed[c.Name()]; ok {
			continue
		}
		if err := p.stage(log, c, "pass", func() error { return c.Pass(ctx, pc) }); err != nil {
			failed[c.Name()] = err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, c := range pass.Collectors {
		if err, ok := failed[c.Name()]; ok {
			artifacts[c.Name()] = artifact.Fail(err)
			continue
		}
		a := p.afterPass(ctx, log, c, pc)
		artifacts[c.Name()] = a
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// stage runs one setup stage, converting a panic into an error.
func (p *Pipeline) stage(log *logrus.Entry, c Collector, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
			log.WithField("stack", string(debug.Stack())).Debug("Recovered collector panic")
		}
		if err != nil {
			log.WithFields(logrus.Fields{"artifact": c.Name(), "stage": name}).WithError(err).Warn("Collector failed")
			p.Metrics.CollectorFailed(c.Name())
		}
	}()
	return fn()
}

func (p *Pipeline) afterPass(ctx context.Context, log *logrus.Entry, c Collector, pc *PassContext) (a artifact.Artifact) {
	defer func() {
		if r := recover(); r != nil {
			a = artifact.Fail(fmt.Errorf("afterPass panicked: %v", r))
			log.WithField("stack", string(debug.Stack())).Debug("Recovered collector panic")
		}
		if a.Failed() {
			log.WithFields(logrus.Fields{"artifact": c.Name(), "stage": "afterPass"}).
				WithField("error", a.Failure.ErrorMessage).Warn("Collector failed")
			p.Metrics.CollectorFailed(c.Name())
		}
	}()
	return c.AfterPass(ctx, pc)
}
