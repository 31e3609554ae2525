package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"page-audit/artifact"
)

// Writer renders an outcome in one format.
type Writer interface {
	Write(ctx context.Context, o Outcome) error
}

type jsonWriter struct {
	out io.Writer
}

func (w jsonWriter) Write(_ context.Context, o Outcome) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

// prettyWriter prints a coloured console report grouped by category.
type prettyWriter struct {
	out     io.Writer
	noColor bool
}

func (w prettyWriter) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if w.noColor {
		c.DisableColor()
	}
	return c
}

func (w prettyWriter) Write(_ context.Context, o Outcome) error {
	header := w.paint(color.FgCyan, color.Bold)
	labels := map[string]*color.Color{
		"PASS":  w.paint(color.FgGreen),
		"FAIL":  w.paint(color.FgRed),
		"ERROR": w.paint(color.FgYellow),
	}
	dim := w.paint(color.FgHiBlack)

	header.Fprintf(w.out, "\n%s\n", o.Target.URL)
	dim.Fprintf(w.out, "run %s, %d ms, %d artifacts collected, %d failed\n",
		o.RunID, o.DurationMS, o.Summary.Succeeded, o.Summary.Failed)

	order, byCat := o.Categories()
	for _, cat := range order {
		header.Fprintf(w.out, "\n%s\n", cat)
		for _, r := range byCat[cat] {
			label := verdictLabel(r)
			fmt.Fprint(w.out, "  ")
			labels[label].Fprintf(w.out, "%-5s", label)
			fmt.Fprintf(w.out, " %s", r.Description)
			if r.DisplayValue != "" {
				dim.Fprintf(w.out, " (%s)", r.DisplayValue)
			}
			fmt.Fprintln(w.out)
			if r.DebugString != "" {
				dim.Fprintf(w.out, "        %s\n", r.DebugString)
			}
		}
	}

	passed, failed, errored := o.Tally()
	fmt.Fprintf(w.out, "\n%d passed, %d failed, %d could not run\n", passed, failed, errored)
	return nil
}

var csvHeader = []string{"Run_ID", "Timestamp", "Target", "Check", "Category", "Verdict", "Raw_Value", "Display_Value", "Debug_String"}

// csvWriter appends one row per result to a shared file, writing the header
// when the file is new.
type csvWriter struct {
	path string
	mu   sync.Mutex
}

func (w *csvWriter) Write(_ context.Context, o Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fileExists := false
	if _, err := os.Stat(w.path); err == nil {
		fileExists = true
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create csv directory: %w", err)
	}
	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv file for writing: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if !fileExists {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	ts := o.StartedAt.Format(time.RFC3339)
	for _, r := range o.Results {
		row := []string{
			o.RunID,
			ts,
			o.Target.URL,
			r.Name,
			r.Category,
			verdictLabel(r),
			rawValueString(r.RawValue),
			r.DisplayValue,
			r.DebugString,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func rawValueString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// markdownWriter writes one report file per target into dir.
type markdownWriter struct {
	dir string
}

func (w markdownWriter) Write(_ context.Context, o Outcome) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create markdown directory: %w", err)
	}
	path := filepath.Join(w.dir, o.fileStem()+".md")
	if err := os.WriteFile(path, []byte(renderMarkdown(o)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func renderMarkdown(o Outcome) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Audit: %s\n\n", o.Target.URL))
	sb.WriteString(fmt.Sprintf("Generated on: %s (run `%s`, %d ms)\n\n", o.StartedAt.Format(time.RFC1123), o.RunID, o.DurationMS))

	passed, failed, errored := o.Tally()
	sb.WriteString("## Summary\n")
	sb.WriteString(fmt.Sprintf("- **Passed:** %d\n", passed))
	sb.WriteString(fmt.Sprintf("- **Failed:** %d\n", failed))
	sb.WriteString(fmt.Sprintf("- **Could not run:** %d\n", errored))
	sb.WriteString(fmt.Sprintf("- **Artifacts collected:** %d (%d failed)\n\n", o.Summary.Succeeded, o.Summary.Failed))

	order, byCat := o.Categories()
	for _, cat := range order {
		sb.WriteString(fmt.Sprintf("## %s\n\n", cat))
		sb.WriteString("| Check | Result | Value | Notes |\n")
		sb.WriteString("| :--- | :--- | :--- | :--- |\n")
		for _, r := range byCat[cat] {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				mdCell(r.Description), verdictLabel(r), mdCell(r.DisplayValue), mdCell(r.DebugString)))
		}
		sb.WriteString("\n")
	}

	if names := o.failureNames(); len(names) > 0 {
		sb.WriteString("## Failed artifacts\n\n")
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", name, o.Summary.Failures[name]))
		}
	}
	return sb.String()
}

func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// archiveWriter keeps the full outcome, artifacts included, as JSON.
type archiveWriter struct {
	dir string
}

type archived struct {
	Outcome
	Artifacts artifact.Map `json:"artifacts"`
}

func (w archiveWriter) Write(_ context.Context, o Outcome) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	id := o.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.json", o.fileStem(), id))
	b, err := json.MarshalIndent(archived{Outcome: o, Artifacts: o.Artifacts}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
