package audit

import (
	"fmt"
	"sort"
	"strings"
)

var registry = map[string]func() Check{
	"is-on-https":         func() Check { return httpsCheck{} },
	"redirects-http":      func() Check { return redirectCheck{} },
	"x-frame-options":     func() Check { return frameOptionsCheck{} },
	"viewport":            func() Check { return viewportCheck{} },
	"theme-color-meta":    func() Check { return themeColorCheck{} },
	"manifest-exists":     func() Check { return manifestExistsCheck{} },
	"manifest-short-name": func() Check { return manifestShortNameCheck{} },
	"service-worker":      func() Check { return serviceWorkerCheck{} },
	"works-offline":       func() Check { return offlineCheck{} },
	"without-javascript":  func() Check { return withoutJavaScriptCheck{} },
	"document-title":      func() Check { return documentTitleCheck{} },
}

// Available lists the built-in check names.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the named checks in order.
func Build(names []string) ([]Check, error) {
	seen := make(map[string]bool, len(names))
	checks := make([]Check, 0, len(names))
	for _, name := range names {
		ctor, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown check %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("check %q listed twice", name)
		}
		seen[name] = true
		checks = append(checks, ctor())
	}
	return checks, nil
}

// Validate fails when a check needs an artifact no collector produces.
func Validate(checks []Check, collected []string) error {
	missing := requirements(checks, collected)
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s needs %s", name, strings.Join(missing[name], ", ")))
	}
	return fmt.Errorf("checks require uncollected artifacts: %s", strings.Join(parts, "; "))
}
