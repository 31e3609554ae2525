package audit

import (
	"fmt"
	"strings"

	"page-audit/artifact"
	"page-audit/gather"
)

type serviceWorkerCheck struct{}

func (serviceWorkerCheck) Meta() Meta {
	return Meta{
		Name:              "service-worker",
		Category:          "Offline",
		Description:       "Has a registered Service Worker",
		RequiredArtifacts: []string{"ServiceWorker", "URL"},
	}
}

func (serviceWorkerCheck) Audit(m artifact.Map) (Result, error) {
	regs, err := artifact.Require[[]gather.ServiceWorkerRegistration](m, "ServiceWorker")
	if err != nil {
		return indeterminate(err), nil
	}
	pageURL, err := artifact.Require[string](m, "URL")
	if err != nil {
		return indeterminate(err), nil
	}
	for _, r := range regs {
		if r.Active && strings.HasPrefix(pageURL, r.Scope) {
			res := verdict(true, r.ScriptURL)
			res.ExtendedInfo = map[string]any{"scope": r.Scope}
			return res, nil
		}
	}
	if len(regs) > 0 {
		return fail(fmt.Sprintf("%d registration(s) found but none active for %s", len(regs), pageURL)), nil
	}
	return fail("No service worker registered"), nil
}

type offlineCheck struct{}

func (offlineCheck) Meta() Meta {
	return Meta{
		Name:              "works-offline",
		Category:          "Offline",
		Description:       "Responds with a 200 when offline",
		RequiredArtifacts: []string{"Offline"},
	}
}

func (offlineCheck) Audit(m artifact.Map) (Result, error) {
	status, err := artifact.Require[int](m, "Offline")
	if err != nil {
		return indeterminate(err), nil
	}
	if status == -1 {
		return fail("Page did not respond while offline"), nil
	}
	res := verdict(status == 200, fmt.Sprintf("%d", status))
	if status != 200 {
		res.DebugString = fmt.Sprintf("Offline response status was %d", status)
	}
	return res, nil
}
