package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"page-audit/browser"
)

// TeardownFunc releases one resource. It must be safe to call even if the
// resource was never acquired.
type TeardownFunc func(ctx context.Context) error

type teardown struct {
	name string
	fn   TeardownFunc
}

// Gate runs the top-level work, stops it on interrupt, and always tears down
// registered resources exactly once before reporting how the run ended.
type Gate struct {
	log *logrus.Entry

	// TeardownTimeout bounds each teardown function.
	TeardownTimeout time.Duration
	// Grace is how long to wait for the work to return after an interrupt
	// once teardown has finished.
	Grace time.Duration

	mu       sync.Mutex
	tasks    []teardown
	tornDown sync.Once
}

func NewGate(log *logrus.Entry) *Gate {
	return &Gate{
		log:             log,
		TeardownTimeout: 10 * time.Second,
		Grace:           5 * time.Second,
	}
}

// OnTeardown registers fn to run when the gate closes.
func (g *Gate) OnTeardown(name string, fn TeardownFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = append(g.tasks, teardown{name: name, fn: fn})
}

// panicError carries a recovered panic and the stack where it happened.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// Run executes work and returns the run status. Cancelling ctx interrupts the
// run; work sees the cancellation through its own context.
func (g *Gate) Run(ctx context.Context, work func(ctx context.Context) error) Status {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &panicError{value: r, stack: debug.Stack()}
			}
		}()
		done <- work(workCtx)
	}()

	var err error
	finished := false
	select {
	case err = <-done:
		finished = true
	case <-ctx.Done():
		err = ctx.Err()
		cancel()
	}

	g.teardown()

	if !finished {
		select {
		case <-done:
		case <-time.After(g.Grace):
			g.log.Warn("Run did not stop within the grace period")
		}
	}

	status := Classify(err)
	if ctx.Err() != nil {
		status = Interrupted
	}
	g.report(status, err)
	return status
}

func (g *Gate) teardown() {
	g.tornDown.Do(func() {
		g.mu.Lock()
		tasks := append([]teardown(nil), g.tasks...)
		g.mu.Unlock()

		var eg errgroup.Group
		for _, t := range tasks {
			t := t
			eg.Go(func() error {
				ctx, cancel := context.WithTimeout(context.Background(), g.TeardownTimeout)
				defer cancel()
				log := g.log.WithField("resource", t.name)
				if err := g.release(ctx, t); err != nil {
					log.WithError(err).Error("Teardown failed")
					return fmt.Errorf("%s: %w", t.name, err)
				}
				log.Debug("Torn down")
				return nil
			})
		}
		_ = eg.Wait()
	})
}

// release runs one teardown function and gives up on it once ctx expires.
// The function keeps running in the background in that case.
func (g *Gate) release(ctx context.Context, t teardown) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("teardown panicked: %v", r)
			}
		}()
		done <- t.fn(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("teardown timed out after %s: %w", g.TeardownTimeout, ctx.Err())
	}
}

func (g *Gate) report(status Status, err error) {
	entry := g.log.WithField("status", status.String())
	switch status {
	case Succeeded:
		entry.Info("Run finished")
	case Interrupted:
		entry.Warn("Run interrupted")
	case LaunchFailed, Unreachable:
		entry.WithError(err).Error(browser.Hint(err))
	default:
		stack := debug.Stack()
		if p, ok := err.(*panicError); ok {
			stack = p.stack
		}
		entry.WithError(err).WithField("stack", string(stack)).Error("Run failed")
	}
}
