package gather

import (
	"context"

	"page-audit/artifact"
)

// HTTPSInfo is the HTTPS artifact.
type HTTPSInfo struct {
	IsSecureContext bool   `json:"isSecureContext"`
	Protocol        string `json:"protocol"`
}

type urlCollector struct{ Base }

func (urlCollector) Name() string { return "URL" }

func (urlCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	return evaluate[string](ctx, pc.Channel, `window.location.href`)
}

type httpsCollector struct{ Base }

func (httpsCollector) Name() string { return "HTTPS" }

func (httpsCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	return evaluate[HTTPSInfo](ctx, pc.Channel,
		`({isSecureContext: window.isSecureContext === true, protocol: window.location.protocol})`)
}

type viewportCollector struct{ Base }

func (viewportCollector) Name() string { return "Viewport" }

func (viewportCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	return evaluate[string](ctx, pc.Channel,
		`(document.querySelector('meta[name="viewport"]') || {}).content || ''`)
}

type themeColorCollector struct{ Base }

func (themeColorCollector) Name() string { return "ThemeColor" }

func (themeColorCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	return evaluate[string](ctx, pc.Channel,
		`(document.querySelector('meta[name="theme-color"]') || {}).content || ''`)
}

type titleCollector struct{ Base }

func (titleCollector) Name() string { return "Title" }

func (titleCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	return evaluate[string](ctx, pc.Channel, `document.title || ''`)
}

type htmlCollector struct{ Base }

func (htmlCollector) Name() string { return "HTML" }

func (htmlCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	return evaluate[string](ctx, pc.Channel, `document.documentElement.outerHTML`)
}
