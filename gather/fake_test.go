package gather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"page-audit/artifact"
)

type answer struct {
	match string
	value any
	err   error
}

// fakeChannel answers Evaluate calls by the first answer whose match is a
// substring of the expression.
type fakeChannel struct {
	mu        sync.Mutex
	answers   []answer
	navErr    error
	navigated []string
	offline   []bool
	events    *[]string
}

func (f *fakeChannel) Evaluate(_ context.Context, expr string, out any) error {
	return f.eval(expr, out)
}

func (f *fakeChannel) EvaluateAsync(_ context.Context, expr string, out any) error {
	return f.eval(expr, out)
}

func (f *fakeChannel) eval(expr string, out any) error {
	for _, a := range f.answers {
		if !strings.Contains(expr, a.match) {
			continue
		}
		if a.err != nil {
			return a.err
		}
		b, err := json.Marshal(a.value)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}
	return fmt.Errorf("no answer for %q", expr)
}

func (f *fakeChannel) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	if f.events != nil {
		*f.events = append(*f.events, "navigate")
	}
	return f.navErr
}

func (f *fakeChannel) SetOffline(_ context.Context, offline bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = append(f.offline, offline)
	return nil
}

func (f *fakeChannel) Probe(context.Context) error { return nil }

// stubCollector evaluates expr through the channel and records each stage.
type stubCollector struct {
	name       string
	expr       string
	beforeErr  error
	passErr    error
	panicStage string
	events     *[]string
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) record(stage string) {
	if s.events != nil {
		*s.events = append(*s.events, s.name+":"+stage)
	}
	if s.panicStage == stage {
		panic(errors.New("kaboom"))
	}
}

func (s *stubCollector) BeforePass(context.Context, *PassContext) error {
	s.record("before")
	return s.beforeErr
}

func (s *stubCollector) Pass(context.Context, *PassContext) error {
	s.record("pass")
	return s.passErr
}

func (s *stubCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	s.record("after")
	return evaluate[[]int](ctx, pc.Channel, s.expr)
}
