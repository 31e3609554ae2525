package report

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"time"

	"page-audit/artifact"
	"page-audit/audit"
	"page-audit/target"
)

// ArtifactSummary counts what was collected for a target. Failures maps the
// failed artifact names to their error message.
type ArtifactSummary struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// Outcome is everything produced for one target.
type Outcome struct {
	RunID      string          `json:"runId"`
	Target     target.Target   `json:"target"`
	StartedAt  time.Time       `json:"startedAt"`
	DurationMS int64           `json:"durationMs"`
	Summary    ArtifactSummary `json:"artifactSummary"`
	Results    []audit.Result  `json:"results"`

	// Artifacts is only written by the archive.
	Artifacts artifact.Map `json:"-"`
}

func NewOutcome(runID string, t target.Target, started time.Time, m artifact.Map, results []audit.Result) Outcome {
	o := Outcome{
		RunID:      runID,
		Target:     t,
		StartedAt:  started.UTC(),
		DurationMS: time.Since(started).Milliseconds(),
		Results:    results,
		Artifacts:  m,
	}
	o.Summary.Succeeded, o.Summary.Failed = m.Counts()
	for name, a := range m {
		if a.Failed() {
			if o.Summary.Failures == nil {
				o.Summary.Failures = make(map[string]string)
			}
			o.Summary.Failures[name] = a.Failure.ErrorMessage
		}
	}
	return o
}

// Tally counts results by verdict.
func (o Outcome) Tally() (passed, failed, indeterminate int) {
	for _, r := range o.Results {
		switch {
		case r.Indeterminate():
			indeterminate++
		case r.Passed():
			passed++
		default:
			failed++
		}
	}
	return passed, failed, indeterminate
}

// Categories returns the result categories in first-seen order with the
// results that belong to each.
func (o Outcome) Categories() ([]string, map[string][]audit.Result) {
	var order []string
	byCat := make(map[string][]audit.Result)
	for _, r := range o.Results {
		if _, ok := byCat[r.Category]; !ok {
			order = append(order, r.Category)
		}
		byCat[r.Category] = append(byCat[r.Category], r)
	}
	return order, byCat
}

func (o Outcome) failureNames() []string {
	names := make([]string, 0, len(o.Summary.Failures))
	for name := range o.Summary.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// slug is a filesystem-safe name for the outcome's target.
func (o Outcome) slug() string {
	s := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(o.Target.URL, "https://"), "http://"))
	s = strings.Trim(unsafeChars.ReplaceAllString(s, "-"), "-")
	if s == "" {
		s = "target"
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

// fileStem names the per-target files of a run. The URL hash keeps targets
// whose slugs collide apart.
func (o Outcome) fileStem() string {
	h := fnv.New32a()
	h.Write([]byte(o.Target.URL))
	return fmt.Sprintf("%s-%08x", o.slug(), h.Sum32())
}

func verdictLabel(r audit.Result) string {
	switch {
	case r.Indeterminate():
		return "ERROR"
	case r.Passed():
		return "PASS"
	}
	return "FAIL"
}
