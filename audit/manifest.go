package audit

import (
	"regexp"
	"strings"

	"page-audit/artifact"
	"page-audit/gather"
)

// loadManifest returns the parsed manifest, or the result to report when
// there is none to inspect.
func loadManifest(m artifact.Map) (gather.Manifest, *Result) {
	man, err := artifact.Require[gather.Manifest](m, "Manifest")
	if err != nil {
		res := indeterminate(err)
		return man, &res
	}
	if man.URL == "" {
		res := fail("Page links no manifest")
		return man, &res
	}
	if man.ParseError != "" {
		res := fail("Manifest at " + man.URL + " is not valid JSON: " + man.ParseError)
		return man, &res
	}
	return man, nil
}

type manifestExistsCheck struct{}

func (manifestExistsCheck) Meta() Meta {
	return Meta{
		Name:              "manifest-exists",
		Category:          "Manifest",
		Description:       "Manifest exists",
		RequiredArtifacts: []string{"Manifest"},
	}
}

func (manifestExistsCheck) Audit(m artifact.Map) (Result, error) {
	man, res := loadManifest(m)
	if res != nil {
		return *res, nil
	}
	return verdict(true, man.URL), nil
}

type manifestShortNameCheck struct{}

func (manifestShortNameCheck) Meta() Meta {
	return Meta{
		Name:              "manifest-short-name",
		Category:          "Manifest",
		Description:       "Manifest contains short_name",
		RequiredArtifacts: []string{"Manifest"},
	}
}

func (manifestShortNameCheck) Audit(m artifact.Map) (Result, error) {
	man, res := loadManifest(m)
	if res != nil {
		return *res, nil
	}
	name, _ := man.Value["short_name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return fail("Manifest has no short_name"), nil
	}
	return verdict(true, name), nil
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

type themeColorCheck struct{}

func (themeColorCheck) Meta() Meta {
	return Meta{
		Name:              "theme-color-meta",
		Category:          "Manifest",
		Description:       "Has a <meta name=\"theme-color\"> tag",
		RequiredArtifacts: []string{"ThemeColor"},
	}
}

func (themeColorCheck) Audit(m artifact.Map) (Result, error) {
	color, err := artifact.Require[string](m, "ThemeColor")
	if err != nil {
		return indeterminate(err), nil
	}
	color = strings.TrimSpace(color)
	if color == "" {
		return fail("No theme-color meta tag found"), nil
	}
	res := verdict(true, color)
	if strings.HasPrefix(color, "#") && !hexColor.MatchString(color) {
		res.RawValue = false
		res.DebugString = "theme-color is not a valid hex color: " + color
	}
	return res, nil
}
