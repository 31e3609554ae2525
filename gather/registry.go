package gather

import (
	"fmt"
	"sort"
	"time"
)

// Options configures collectors that fetch outside the browser.
type Options struct {
	UserAgent string
	Timeout   time.Duration
}

// Factory builds a collector.
type Factory func(Options) Collector

var registry = map[string]Factory{
	"URL":             func(Options) Collector { return urlCollector{} },
	"HTTPS":           func(Options) Collector { return httpsCollector{} },
	"Viewport":        func(Options) Collector { return viewportCollector{} },
	"ThemeColor":      func(Options) Collector { return themeColorCollector{} },
	"Title":           func(Options) Collector { return titleCollector{} },
	"HTML":            func(Options) Collector { return htmlCollector{} },
	"Manifest":        func(Options) Collector { return manifestCollector{} },
	"ServiceWorker":   func(Options) Collector { return serviceWorkerCollector{} },
	"Offline":         func(Options) Collector { return offlineCollector{} },
	"NoJSHTML":        func(o Options) Collector { return noJSHTMLCollector{opts: o} },
	"ResponseHeaders": func(o Options) Collector { return responseHeadersCollector{opts: o} },
	"HTTPRedirect":    func(o Options) Collector { return httpRedirectCollector{opts: o} },
}

// Available lists the built-in collector names.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PassSpec names the collectors for one pass.
type PassSpec struct {
	Name       string
	LoadPage   bool
	Offline    bool
	Collectors []string
}

// BuildPasses resolves pass specs against the registry. Unknown names and
// collectors registered more than once are configuration errors.
func BuildPasses(specs []PassSpec, opts Options) ([]Pass, error) {
	seen := make(map[string]string)
	passes := make([]Pass, 0, len(specs))
	for _, spec := range specs {
		pass := Pass{Name: spec.Name, LoadPage: spec.LoadPage, Offline: spec.Offline}
		for _, name := range spec.Collectors {
			factory, ok := registry[name]
			if !ok {
				return nil, fmt.Errorf("pass %q: unknown collector %q", spec.Name, name)
			}
			if prev, dup := seen[name]; dup {
				return nil, fmt.Errorf("pass %q: collector %q already registered in pass %q", spec.Name, name, prev)
			}
			seen[name] = spec.Name
			pass.Collectors = append(pass.Collectors, factory(opts))
		}
		passes = append(passes, pass)
	}
	return passes, nil
}
