package gather

import (
	"context"

	"page-audit/artifact"
)

type ServiceWorkerRegistration struct {
	Scope     string `json:"scope"`
	Active    bool   `json:"active"`
	ScriptURL string `json:"scriptURL"`
}

const serviceWorkerExpr = `(navigator.serviceWorker
  ? navigator.serviceWorker.getRegistrations()
  : Promise.resolve([])).then(regs => regs.map(r => ({
    scope: r.scope,
    active: !!r.active,
    scriptURL: r.active ? r.active.scriptURL : ''
  })))`

type serviceWorkerCollector struct{ Base }

func (serviceWorkerCollector) Name() string { return "ServiceWorker" }

func (serviceWorkerCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	return evaluateAsync[[]ServiceWorkerRegistration](ctx, pc.Channel, serviceWorkerExpr)
}

// offlineCollector re-requests the page while the network is disabled. The
// artifact is the response status, or -1 when nothing answered.
type offlineCollector struct{ Base }

func (offlineCollector) Name() string { return "Offline" }

func (offlineCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	return evaluateAsync[int](ctx, pc.Channel,
		`fetch(window.location.href).then(r => r.status).catch(() => -1)`)
}
