package audit

import (
	"strings"

	"page-audit/artifact"
	"page-audit/gather"
)

type httpsCheck struct{}

func (httpsCheck) Meta() Meta {
	return Meta{
		Name:              "is-on-https",
		Category:          "Security",
		Description:       "Site is on HTTPS",
		RequiredArtifacts: []string{"HTTPS"},
	}
}

func (httpsCheck) Audit(m artifact.Map) (Result, error) {
	info, err := artifact.Require[gather.HTTPSInfo](m, "HTTPS")
	if err != nil {
		return indeterminate(err), nil
	}
	if info.Protocol != "https:" {
		return fail("Page was served over " + strings.TrimSuffix(info.Protocol, ":")), nil
	}
	if !info.IsSecureContext {
		return fail("Page is served over HTTPS but is not a secure context"), nil
	}
	return verdict(true, ""), nil
}

type redirectCheck struct{}

func (redirectCheck) Meta() Meta {
	return Meta{
		Name:              "redirects-http",
		Category:          "Security",
		Description:       "Redirects HTTP traffic to HTTPS",
		RequiredArtifacts: []string{"HTTPRedirect"},
	}
}

func (redirectCheck) Audit(m artifact.Map) (Result, error) {
	r, err := artifact.Require[gather.Redirect](m, "HTTPRedirect")
	if err != nil {
		return indeterminate(err), nil
	}
	res := verdict(r.HTTPS, r.FinalURL)
	res.ExtendedInfo = map[string]any{"from": r.From, "finalUrl": r.FinalURL}
	if !r.HTTPS {
		res.DebugString = r.From + " did not redirect to HTTPS"
	}
	return res, nil
}

// frameOptionsCheck passes when the page refuses cross-origin framing, either
// by X-Frame-Options or a CSP frame-ancestors directive.
type frameOptionsCheck struct{}

func (frameOptionsCheck) Meta() Meta {
	return Meta{
		Name:              "x-frame-options",
		Category:          "Security",
		Description:       "Page cannot be framed by other origins",
		RequiredArtifacts: []string{"ResponseHeaders"},
	}
}

func (frameOptionsCheck) Audit(m artifact.Map) (Result, error) {
	headers, err := artifact.Require[map[string]string](m, "ResponseHeaders")
	if err != nil {
		return indeterminate(err), nil
	}

	xfo := strings.TrimSpace(headers["x-frame-options"])
	switch strings.ToUpper(xfo) {
	case "DENY", "SAMEORIGIN":
		return verdict(true, xfo), nil
	}
	for _, directive := range strings.Split(headers["content-security-policy"], ";") {
		if strings.HasPrefix(strings.TrimSpace(directive), "frame-ancestors") {
			return verdict(true, strings.TrimSpace(directive)), nil
		}
	}
	if xfo == "" {
		return fail("No X-Frame-Options header or frame-ancestors directive"), nil
	}
	return fail("Unrecognised X-Frame-Options value: " + xfo), nil
}
