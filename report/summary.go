package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type targetLine struct {
	URL                     string
	Passed, Failed, Errored int
	FailedArtifacts         int
}

// Summary accumulates per-target tallies across a run.
type Summary struct {
	mu      sync.Mutex
	targets []targetLine
	// failing counts, per check name, the targets that failed it.
	failing map[string]int
}

func NewSummary() *Summary {
	return &Summary{failing: make(map[string]int)}
}

// Track records one outcome.
func (s *Summary) Track(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	passed, failed, errored := o.Tally()
	s.targets = append(s.targets, targetLine{
		URL:             o.Target.URL,
		Passed:          passed,
		Failed:          failed,
		Errored:         errored,
		FailedArtifacts: o.Summary.Failed,
	})
	for _, r := range o.Results {
		if !r.Indeterminate() && !r.Passed() {
			s.failing[r.Name]++
		}
	}
}

// Markdown renders the run summary.
func (s *Summary) Markdown() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("# Page Audit Summary\n\n")
	sb.WriteString(fmt.Sprintf("Audited %d target(s).\n\n", len(s.targets)))

	if len(s.targets) > 0 {
		sb.WriteString("| Target | Passed | Failed | Could not run | Failed artifacts |\n")
		sb.WriteString("| :--- | ---: | ---: | ---: | ---: |\n")
		for _, t := range s.targets {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n", t.URL, t.Passed, t.Failed, t.Errored, t.FailedArtifacts))
		}
	}

	if len(s.failing) > 0 {
		type kv struct {
			Key   string
			Value int
		}
		var ss []kv
		for k, v := range s.failing {
			ss = append(ss, kv{k, v})
		}
		sort.Slice(ss, func(i, j int) bool {
			if ss[i].Value != ss[j].Value {
				return ss[i].Value > ss[j].Value
			}
			return ss[i].Key < ss[j].Key
		})

		sb.WriteString("\n**Most failed checks:**\n")
		for _, kv := range ss {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", kv.Key, kv.Value))
		}
	}

	sb.WriteString(fmt.Sprintf("\n_Generated: %s_\n", time.Now().UTC().Format(time.RFC1123)))
	return sb.String()
}

// Publish appends the summary to $GITHUB_STEP_SUMMARY when running in
// Actions, otherwise writes it to fallback.
func (s *Summary) Publish(fallback io.Writer) error {
	summary := s.Markdown()

	stepSummaryPath := os.Getenv("GITHUB_STEP_SUMMARY")
	if stepSummaryPath == "" {
		_, err := io.WriteString(fallback, summary)
		return err
	}
	f, err := os.OpenFile(stepSummaryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open step summary file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(summary); err != nil {
		return fmt.Errorf("failed to write to step summary file: %w", err)
	}
	return nil
}
