package audit

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"page-audit/artifact"
)

type viewportCheck struct{}

func (viewportCheck) Meta() Meta {
	return Meta{
		Name:              "viewport",
		Category:          "Mobile Friendly",
		Description:       "HTML has a viewport <meta>",
		RequiredArtifacts: []string{"Viewport"},
	}
}

func (viewportCheck) Audit(m artifact.Map) (Result, error) {
	content, err := artifact.Require[string](m, "Viewport")
	if err != nil {
		return indeterminate(err), nil
	}
	if strings.TrimSpace(content) == "" {
		return fail("No viewport meta tag found"), nil
	}
	if !strings.Contains(content, "width=") && !strings.Contains(content, "initial-scale") {
		res := fail("Viewport meta tag sets neither width nor initial-scale")
		res.DisplayValue = content
		return res, nil
	}
	return verdict(true, content), nil
}

type documentTitleCheck struct{}

func (documentTitleCheck) Meta() Meta {
	return Meta{
		Name:              "document-title",
		Category:          "Accessibility",
		Description:       "Document has a <title> element",
		RequiredArtifacts: []string{"HTML"},
	}
}

func (documentTitleCheck) Audit(m artifact.Map) (Result, error) {
	html, err := artifact.Require[string](m, "HTML")
	if err != nil {
		return indeterminate(err), nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse HTML: %w", err)
	}
	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if title == "" {
		return fail("Document has no title or the title is empty"), nil
	}
	return verdict(true, title), nil
}

// withoutJavaScriptCheck looks at the document as served, before scripts run,
// and passes when the body renders some text.
type withoutJavaScriptCheck struct{}

func (withoutJavaScriptCheck) Meta() Meta {
	return Meta{
		Name:              "without-javascript",
		Category:          "Progressive Enhancement",
		Description:       "Contains some content when JavaScript is not available",
		RequiredArtifacts: []string{"NoJSHTML"},
	}
}

func (withoutJavaScriptCheck) Audit(m artifact.Map) (Result, error) {
	html, err := artifact.Require[string](m, "NoJSHTML")
	if err != nil {
		return indeterminate(err), nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse HTML: %w", err)
	}
	body := doc.Find("body")
	body.Find("script, style, template").Remove()
	text := strings.Join(strings.Fields(body.Text()), " ")
	if text == "" {
		return fail("The page body should render some content if its scripts are not available"), nil
	}
	res := verdict(true, "")
	res.ExtendedInfo = map[string]any{"textLength": len(text)}
	return res, nil
}
