package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"page-audit/artifact"
	"page-audit/audit"
	"page-audit/browser"
	"page-audit/logging"
	"page-audit/metrics"
	"page-audit/report"
	"page-audit/target"
)

type fakeGatherer struct {
	mu      sync.Mutex
	visited []string
	collect func(ctx context.Context, t target.Target) (artifact.Map, error)
}

func (f *fakeGatherer) Collect(ctx context.Context, t target.Target) (artifact.Map, error) {
	f.mu.Lock()
	f.visited = append(f.visited, t.URL)
	f.mu.Unlock()
	if f.collect != nil {
		return f.collect(ctx, t)
	}
	return artifact.Map{"URL": artifact.Of(t.URL)}, nil
}

type fakeSink struct {
	mu       sync.Mutex
	outcomes []report.Outcome
	err      error
}

func (f *fakeSink) Write(_ context.Context, o report.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
	return f.err
}

// requireCheck passes when the named []int artifact is non-empty.
type requireCheck struct{ artifact string }

func (c requireCheck) Meta() audit.Meta {
	return audit.Meta{Name: "needs-" + c.artifact, Category: "Test", RequiredArtifacts: []string{c.artifact}}
}

func (c requireCheck) Audit(m artifact.Map) (audit.Result, error) {
	v, err := artifact.Require[[]int](m, c.artifact)
	if err != nil {
		return audit.Result{DebugString: err.Error()}, nil
	}
	return audit.Result{RawValue: len(v) > 0}, nil
}

func targets(t *testing.T, raws ...string) *target.Queue {
	t.Helper()
	var ts []target.Target
	for _, raw := range raws {
		tgt, err := target.Parse(raw)
		require.NoError(t, err)
		ts = append(ts, tgt)
	}
	return target.NewQueue(ts...)
}

func TestRunProcessesTargetsInOrder(t *testing.T) {
	g := &fakeGatherer{}
	sink := &fakeSink{}
	rec := metrics.New()
	r := &Runner{
		Log:      logging.Discard(),
		Gatherer: g,
		Auditor:  &audit.Pipeline{Log: logging.Discard()},
		Sink:     sink,
		Metrics:  rec,
	}

	q := targets(t, "a.test", "b.test", "c.test")
	require.NoError(t, r.Run(context.Background(), q))

	want := []string{"https://a.test/", "https://b.test/", "https://c.test/"}
	assert.Equal(t, want, g.visited)
	require.Len(t, sink.outcomes, 3)
	for i, o := range sink.outcomes {
		assert.Equal(t, want[i], o.Target.URL)
		assert.Equal(t, r.RunID, o.RunID)
	}
	assert.Equal(t, 0, q.Len())
	expected := `
# HELP pageaudit_targets_total Targets processed, by final status.
# TYPE pageaudit_targets_total counter
pageaudit_targets_total{status="ok"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "pageaudit_targets_total"))
}

func TestRunArtifactFailureFlowsToIndeterminateResult(t *testing.T) {
	g := &fakeGatherer{collect: func(context.Context, target.Target) (artifact.Map, error) {
		return artifact.Map{
			"good": artifact.Of([]int{1, 2, 3}),
			"bad":  artifact.Fail(errors.New("boom")),
		}, nil
	}}
	sink := &fakeSink{}
	r := &Runner{
		Log:      logging.Discard(),
		Gatherer: g,
		Auditor: &audit.Pipeline{
			Log:    logging.Discard(),
			Checks: []audit.Check{requireCheck{"good"}, requireCheck{"bad"}},
		},
		Sink: sink,
	}

	require.NoError(t, r.Run(context.Background(), targets(t, "a.test", "b.test")))
	require.Len(t, sink.outcomes, 2)
	for _, o := range sink.outcomes {
		require.Len(t, o.Results, 2)
		assert.Equal(t, true, o.Results[0].RawValue)
		assert.True(t, o.Results[1].Indeterminate())
		assert.Contains(t, o.Results[1].DebugString, "boom")
		assert.Equal(t, "boom", o.Summary.Failures["bad"])
	}
}

func TestRunStopsOnTargetError(t *testing.T) {
	loadErr := errors.New("navigation failed")
	g := &fakeGatherer{collect: func(_ context.Context, t target.Target) (artifact.Map, error) {
		if t.URL == "https://b.test/" {
			return nil, loadErr
		}
		return artifact.Map{}, nil
	}}
	sink := &fakeSink{}
	r := &Runner{Log: logging.Discard(), Gatherer: g, Auditor: &audit.Pipeline{Log: logging.Discard()}, Sink: sink}

	q := targets(t, "a.test", "b.test", "c.test")
	err := r.Run(context.Background(), q)
	require.ErrorIs(t, err, loadErr)
	assert.Contains(t, err.Error(), "https://b.test/")
	assert.Len(t, sink.outcomes, 1)
	// The failed target is still at the head.
	head, ok := q.Head()
	require.True(t, ok)
	assert.Equal(t, "https://b.test/", head.URL)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Status
		code int
	}{
		{nil, Succeeded, 0},
		{context.Canceled, Interrupted, 130},
		{fmt.Errorf("%w: %w", browser.ErrLaunch, context.DeadlineExceeded), LaunchFailed, 3},
		{fmt.Errorf("wrapped: %w", browser.ErrConnectionRefused), Unreachable, 2},
		{fmt.Errorf("dial: %w", syscall.ECONNREFUSED), Unreachable, 2},
		{errors.New("something else"), RuntimeError, 1},
	}
	for _, tt := range tests {
		got := Classify(tt.err)
		assert.Equal(t, tt.want, got, "%v", tt.err)
		assert.Equal(t, tt.code, got.ExitCode(), "%v", tt.err)
	}

	codes := map[int]bool{}
	for _, s := range []Status{Succeeded, Interrupted, Unreachable, LaunchFailed, RuntimeError} {
		codes[s.ExitCode()] = true
	}
	assert.Len(t, codes, 5)
}

func TestGateTearsDownOnEveryPath(t *testing.T) {
	tests := []struct {
		name string
		work func(ctx context.Context) error
		want Status
	}{
		{"success", func(context.Context) error { return nil }, Succeeded},
		{"error", func(context.Context) error { return errors.New("bad") }, RuntimeError},
		{"panic", func(context.Context) error { panic("boom") }, RuntimeError},
		{"launch", func(context.Context) error { return fmt.Errorf("%w: no binary", browser.ErrLaunch) }, LaunchFailed},
		{"refused", func(context.Context) error { return browser.ErrConnectionRefused }, Unreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			g := NewGate(logging.Discard())
			g.OnTeardown("chrome", func(context.Context) error {
				calls.Add(1)
				return nil
			})
			g.OnTeardown("other", func(context.Context) error {
				calls.Add(1)
				return errors.New("ignored")
			})

			assert.Equal(t, tt.want, g.Run(context.Background(), tt.work))
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestGateLaunchFailureProcessesNothing(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	sup := browser.NewSupervisor(browser.Config{
		Port:          port,
		ExecPath:      "/nonexistent/chrome-binary",
		Headless:      true,
		LaunchTimeout: 2 * time.Second,
	}, logging.Discard())

	g := &fakeGatherer{}
	r := &Runner{Log: logging.Discard(), Gatherer: g, Auditor: &audit.Pipeline{Log: logging.Discard()}, Sink: &fakeSink{}}
	q := targets(t, "a.test")

	var terminated atomic.Int32
	gate := NewGate(logging.Discard())
	gate.OnTeardown("chrome", func(context.Context) error {
		sup.Terminate()
		terminated.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	done := make(chan Status, 1)
	go func() {
		done <- gate.Run(ctx, func(ctx context.Context) error {
			if _, err := sup.EnsureReady(ctx); err != nil {
				return err
			}
			return r.Run(ctx, q)
		})
	}()

	select {
	case status := <-done:
		assert.Equal(t, LaunchFailed, status)
		assert.Equal(t, 3, status.ExitCode())
		assert.Equal(t, int32(1), terminated.Load(), "chrome teardown did not return")
		assert.Empty(t, g.visited)
		assert.Equal(t, 1, q.Len())
	case <-time.After(20 * time.Second):
		t.Fatal("gate did not report after a failed launch")
	}
}

func TestGateTeardownTimeout(t *testing.T) {
	gate := NewGate(logging.Discard())
	gate.TeardownTimeout = 50 * time.Millisecond

	block := make(chan struct{})
	defer close(block)
	var other atomic.Bool
	gate.OnTeardown("stuck", func(context.Context) error {
		<-block
		return nil
	})
	gate.OnTeardown("other", func(context.Context) error {
		other.Store(true)
		return nil
	})

	done := make(chan Status, 1)
	go func() {
		done <- gate.Run(context.Background(), func(context.Context) error { return nil })
	}()

	select {
	case status := <-done:
		assert.Equal(t, Succeeded, status)
		assert.True(t, other.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("gate waited on a teardown past its timeout")
	}
}

func TestGateInterruptMidCollection(t *testing.T) {
	started := make(chan struct{})
	g := &fakeGatherer{collect: func(ctx context.Context, _ target.Target) (artifact.Map, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	sink := &fakeSink{}
	r := &Runner{Log: logging.Discard(), Gatherer: g, Auditor: &audit.Pipeline{Log: logging.Discard()}, Sink: sink}

	var terminated atomic.Int32
	gate := NewGate(logging.Discard())
	gate.OnTeardown("chrome", func(context.Context) error {
		terminated.Add(1)
		return nil
	})

	ctx, interrupt := context.WithCancel(context.Background())
	go func() {
		<-started
		interrupt()
	}()

	status := gate.Run(ctx, func(ctx context.Context) error {
		return r.Run(ctx, targets(t, "a.test", "b.test"))
	})

	assert.Equal(t, Interrupted, status)
	assert.NotEqual(t, Succeeded.ExitCode(), status.ExitCode())
	assert.NotEqual(t, RuntimeError.ExitCode(), status.ExitCode())
	assert.Equal(t, int32(1), terminated.Load())
	assert.Empty(t, sink.outcomes)
}

func TestGateInterruptDoesNotWaitForStuckWork(t *testing.T) {
	gate := NewGate(logging.Discard())
	gate.Grace = 50 * time.Millisecond

	var torn atomic.Bool
	gate.OnTeardown("chrome", func(context.Context) error {
		torn.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	status := gate.Run(ctx, func(context.Context) error {
		<-block
		return nil
	})
	assert.Equal(t, Interrupted, status)
	assert.True(t, torn.Load())
}
