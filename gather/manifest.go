package gather

import (
	"context"
	"encoding/json"

	"page-audit/artifact"
)

// Manifest is the web app manifest linked from the page. URL is empty when
// the page links none.
type Manifest struct {
	URL        string         `json:"url"`
	Raw        string         `json:"raw,omitempty"`
	Value      map[string]any `json:"value,omitempty"`
	ParseError string         `json:"parseError,omitempty"`
}

const manifestExpr = `(async () => {
  const link = document.querySelector('link[rel="manifest"]');
  if (!link || !link.href) return {url: '', raw: ''};
  const res = await fetch(link.href, {credentials: 'same-origin'});
  if (!res.ok) throw new Error('manifest fetch returned ' + res.status);
  return {url: link.href, raw: await res.text()};
})()`

type manifestCollector struct{ Base }

func (manifestCollector) Name() string { return "Manifest" }

func (manifestCollector) AfterPass(ctx context.Context, pc *PassContext) artifact.Artifact {
	var fetched struct {
		URL string `json:"url"`
		Raw string `json:"raw"`
	}
	if err := pc.Channel.EvaluateAsync(ctx, manifestExpr, &fetched); err != nil {
		return artifact.Fail(err)
	}
	return artifact.Of(parseManifest(fetched.URL, fetched.Raw))
}

func parseManifest(url, raw string) Manifest {
	m := Manifest{URL: url, Raw: raw}
	if url == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m.Value); err != nil {
		m.ParseError = err.Error()
	}
	return m
}
