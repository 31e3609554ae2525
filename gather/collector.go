package gather

import (
	"context"

	"page-audit/artifact"
	"page-audit/target"
)

// Channel is how collectors talk to the page. browser.Session implements it.
type Channel interface {
	Evaluate(ctx context.Context, expression string, out any) error
	EvaluateAsync(ctx context.Context, expression string, out any) error
	Navigate(ctx context.Context, url string) error
	SetOffline(ctx context.Context, offline bool) error
	Probe(ctx context.Context) error
}

// PassContext is handed to every collector stage of a pass.
type PassContext struct {
	Pass    string
	Target  target.Target
	Channel Channel
}

// Collector produces one named artifact. Stages run in order for every pass
// the collector is registered in: BeforePass, then page load, then Pass,
// then AfterPass.
type Collector interface {
	Name() string
	BeforePass(ctx context.Context, pc *PassContext) error
	Pass(ctx context.Context, pc *PassContext) error
	AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact
}

// Base gives collectors no-op setup stages.
type Base struct{}

func (Base) BeforePass(context.Context, *PassContext) error { return nil }
func (Base) Pass(context.Context, *PassContext) error       { return nil }

// evaluate runs expr and wraps the result, turning a rejection into a
// failure artifact.
func evaluate[T any](ctx context.Context, ch Channel, expr string) artifact.Artifact {
	var out T
	if err := ch.Evaluate(ctx, expr, &out); err != nil {
		return artifact.Fail(err)
	}
	return artifact.Of(out)
}

func evaluateAsync[T any](ctx context.Context, ch Channel, expr string) artifact.Artifact {
	var out T
	if err := ch.EvaluateAsync(ctx, expr, &out); err != nil {
		return artifact.Fail(err)
	}
	return artifact.Of(out)
}
