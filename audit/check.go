package audit

import (
	"page-audit/artifact"
)

// Meta identifies a check and lists the artifacts it reads.
type Meta struct {
	Name              string
	Category          string
	Description       string
	RequiredArtifacts []string
}

// Check turns collected artifacts into one finding. Audit must not modify m.
type Check interface {
	Meta() Meta
	Audit(m artifact.Map) (Result, error)
}

// Result is the uniform finding record. RawValue is a bool, a float64 or nil;
// nil means the check could not decide and DebugString says why.
type Result struct {
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	Description  string         `json:"description"`
	RawValue     any            `json:"rawValue"`
	DisplayValue string         `json:"displayValue"`
	DebugString  string         `json:"debugString,omitempty"`
	ExtendedInfo map[string]any `json:"extendedInfo,omitempty"`
}

func (r Result) Indeterminate() bool {
	return r.RawValue == nil
}

// Passed reports a true boolean or a positive score.
func (r Result) Passed() bool {
	switch v := r.RawValue.(type) {
	case bool:
		return v
	case float64:
		return v > 0
	}
	return false
}

func verdict(ok bool, display string) Result {
	return Result{RawValue: ok, DisplayValue: display}
}

func fail(debug string) Result {
	return Result{RawValue: false, DebugString: debug}
}

func indeterminate(err error) Result {
	return Result{RawValue: nil, DebugString: err.Error()}
}
