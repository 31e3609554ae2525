package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Session is the evaluation channel into the page Chrome has loaded.
type Session struct {
	ctx     context.Context
	timeout time.Duration
	probe   func(context.Context) error
}

// Evaluate runs expression in the page and decodes the result into out.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	return s.run(ctx, chromedp.Evaluate(expression, out))
}

// EvaluateAsync is Evaluate for expressions that produce a promise. A
// rejected promise is returned as an error.
func (s *Session) EvaluateAsync(ctx context.Context, expression string, out any) error {
	return s.run(ctx, chromedp.Evaluate(expression, out, awaitPromise))
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		if perr := s.Probe(ctx); IsConnectionRefused(perr) {
			return perr
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// SetOffline toggles network emulation for the page.
func (s *Session) SetOffline(ctx context.Context, offline bool) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return err
		}
		return network.EmulateNetworkConditions(offline, 0, -1, -1).Do(ctx)
	}))
}

func (s *Session) Probe(ctx context.Context) error {
	if s == nil || s.probe == nil {
		return ErrUnavailable
	}
	return s.probe(ctx)
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s == nil || s.ctx == nil {
		return ErrUnavailable
	}
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}
