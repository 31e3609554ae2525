package gather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gocolly/colly"

	"page-audit/artifact"
)

// Redirect is the HTTPRedirect artifact.
type Redirect struct {
	From     string `json:"from"`
	FinalURL string `json:"finalUrl"`
	HTTPS    bool   `json:"https"`
}

// The raw collectors fetch the target outside the browser, so they see the
// document as served, before any script runs.

type noJSHTMLCollector struct {
	Base
	opts Options
}

func (noJSHTMLCollector) Name() string { return "NoJSHTML" }

func (c noJSHTMLCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	var body string
	col := c.opts.newColly(ctx)
	col.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	if err := visit(ctx, col, pc.Target.URL); err != nil {
		return artifact.Fail(err)
	}
	return artifact.Of(body)
}

type responseHeadersCollector struct {
	Base
	opts Options
}

func (responseHeadersCollector) Name() string { return "ResponseHeaders" }

func (c responseHeadersCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	headers := make(map[string]string)
	col := c.opts.newColly(ctx)
	col.OnResponse(func(r *colly.Response) {
		if r.Headers == nil {
			return
		}
		for k, v := range *r.Headers {
			headers[strings.ToLower(k)] = strings.Join(v, ", ")
		}
	})
	if err := visit(ctx, col, pc.Target.URL); err != nil {
		return artifact.Fail(err)
	}
	return artifact.Of(headers)
}

type httpRedirectCollector struct {
	Base
	opts Options
}

func (httpRedirectCollector) Name() string { return "HTTPRedirect" }

func (c httpRedirectCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	u, err := url.Parse(pc.Target.URL)
	if err != nil {
		return artifact.Fail(err)
	}
	u.Scheme = "http"
	from := u.String()

	final := from
	col := c.opts.newColly(ctx)
	col.RedirectHandler = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return http.ErrUseLastResponse
		}
		final = req.URL.String()
		return nil
	}
	if err := visit(ctx, col, from); err != nil {
		return artifact.Fail(err)
	}

	finalURL, err := url.Parse(final)
	if err != nil {
		return artifact.Fail(err)
	}
	return artifact.Of(Redirect{From: from, FinalURL: final, HTTPS: finalURL.Scheme == "https"})
}

func (o Options) newColly(ctx context.Context) *colly.Collector {
	col := colly.NewCollector()
	col.WithTransport(contextTransport{ctx: ctx, base: http.DefaultTransport})
	if o.UserAgent != "" {
		col.UserAgent = o.UserAgent
	}
	if o.Timeout > 0 {
		col.SetRequestTimeout(o.Timeout)
	}
	return col
}

// visit fetches url, reporting the fetch error or HTTP error status.
func visit(ctx context.Context, col *colly.Collector, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var fetchErr error
	col.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("GET %s: status %d: %w", rawURL, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("GET %s: %w", rawURL, err)
	})
	if err := col.Visit(rawURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fetchErr
}

// contextTransport binds every request colly sends to ctx, so cancelling the
// pass aborts a fetch in flight.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
