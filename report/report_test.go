package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"page-audit/artifact"
	"page-audit/audit"
	"page-audit/logging"
	"page-audit/target"
)

func sampleOutcome(t *testing.T) Outcome {
	t.Helper()
	tgt, err := target.Parse("https://example.com/shop")
	require.NoError(t, err)

	m := artifact.Map{
		"Title":    artifact.Of("Shop"),
		"Manifest": artifact.Fail(errors.New("manifest fetch returned 404")),
	}
	results := []audit.Result{
		{Name: "is-on-https", Category: "Security", Description: "Site is on HTTPS", RawValue: true},
		{Name: "x-frame-options", Category: "Security", Description: "Page cannot be framed by other origins", RawValue: false, DebugString: "No X-Frame-Options header"},
		{Name: "manifest-exists", Category: "Manifest", Description: "Manifest exists", DebugString: "artifact unavailable: Manifest failed: manifest fetch returned 404"},
	}
	return NewOutcome("0f8c2d1e-aaaa-bbbb-cccc-000000000000", tgt, time.Now().Add(-1500*time.Millisecond), m, results)
}

func TestNewOutcome(t *testing.T) {
	o := sampleOutcome(t)
	assert.Equal(t, 1, o.Summary.Succeeded)
	assert.Equal(t, 1, o.Summary.Failed)
	assert.Equal(t, "manifest fetch returned 404", o.Summary.Failures["Manifest"])
	assert.GreaterOrEqual(t, o.DurationMS, int64(1500))

	passed, failed, errored := o.Tally()
	assert.Equal(t, []int{1, 1, 1}, []int{passed, failed, errored})

	order, byCat := o.Categories()
	assert.Equal(t, []string{"Security", "Manifest"}, order)
	assert.Len(t, byCat["Security"], 2)

	assert.Equal(t, "example-com-shop", o.slug())
	assert.Regexp(t, `^example-com-shop-[0-9a-f]{8}$`, o.fileStem())
}

func TestSinkWritesEveryFormatAndArchive(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	sink, err := NewSink(logging.Discard(), Options{
		Formats: []string{"json", "pretty", "csv", "markdown"},
		Out:     &out,
		Dir:     dir,
		NoColor: true,
	})
	require.NoError(t, err)

	o := sampleOutcome(t)
	require.NoError(t, sink.Write(context.Background(), o))

	// json then pretty, both on Out.
	dec := json.NewDecoder(&out)
	var decoded map[string]any
	require.NoError(t, dec.Decode(&decoded))
	assert.Equal(t, o.RunID, decoded["runId"])
	assert.NotContains(t, decoded, "artifacts")
	rest, err := io.ReadAll(dec.Buffered())
	require.NoError(t, err)
	pretty := string(rest) + out.String()
	assert.Contains(t, pretty, "PASS  Site is on HTTPS")
	assert.Contains(t, pretty, "FAIL  Page cannot be framed by other origins")
	assert.Contains(t, pretty, "1 passed, 1 failed, 1 could not run")

	md, err := os.ReadFile(filepath.Join(dir, o.fileStem()+".md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "| Site is on HTTPS | PASS |")
	assert.Contains(t, string(md), "- `Manifest`: manifest fetch returned 404")

	archives, err := filepath.Glob(filepath.Join(dir, "archive", o.fileStem()+"-0f8c2d1e.json"))
	require.NoError(t, err)
	require.Len(t, archives, 1)
	raw, err := os.ReadFile(archives[0])
	require.NoError(t, err)
	var archivedDoc struct {
		Artifacts map[string]json.RawMessage `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(raw, &archivedDoc))
	assert.JSONEq(t, `{"succeeded":false,"errorMessage":"manifest fetch returned 404"}`, string(archivedDoc.Artifacts["Manifest"]))
	assert.JSONEq(t, `"Shop"`, string(archivedDoc.Artifacts["Title"]))
}

func TestSinkKeepsOneFilePerTarget(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(logging.Discard(), Options{Formats: []string{"markdown"}, Dir: dir, Out: io.Discard})
	require.NoError(t, err)

	// Each pair slugs to the same name.
	urls := []string{
		"http://example.com/",
		"https://example.com/",
		"https://example.com/a-b",
		"https://example.com/a/b",
		"https://example.com/" + strings.Repeat("x", 100) + "/one",
		"https://example.com/" + strings.Repeat("x", 100) + "/two",
	}
	for _, raw := range urls {
		tgt, err := target.Parse(raw)
		require.NoError(t, err)
		o := NewOutcome("run-1234", tgt, time.Now(), artifact.Map{}, nil)
		require.NoError(t, sink.Write(context.Background(), o))
	}

	archives, err := filepath.Glob(filepath.Join(dir, "archive", "*.json"))
	require.NoError(t, err)
	assert.Len(t, archives, len(urls))
	reports, err := filepath.Glob(filepath.Join(dir, "*.md"))
	require.NoError(t, err)
	assert.Len(t, reports, len(urls))
}

func TestCSVAppendsWithSingleHeader(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(logging.Discard(), Options{Formats: []string{"csv"}, Dir: dir, Out: io.Discard})
	require.NoError(t, err)

	o := sampleOutcome(t)
	require.NoError(t, sink.Write(context.Background(), o))
	require.NoError(t, sink.Write(context.Background(), o))

	f, err := os.Open(filepath.Join(dir, "results.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 1+2*len(o.Results))
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "is-on-https", rows[1][3])
	assert.Equal(t, "true", rows[1][6])
	assert.Equal(t, "ERROR", rows[3][5])
	assert.Equal(t, "", rows[3][6])
}

func TestSinkArchivesEvenWhenFormatFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	sink, err := NewSink(logging.Discard(), Options{
		Formats:    []string{"markdown"},
		Dir:        filepath.Join(blocker, "sub"),
		ArchiveDir: filepath.Join(dir, "archive"),
	})
	require.NoError(t, err)

	err = sink.Write(context.Background(), sampleOutcome(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markdown:")

	entries, err := os.ReadDir(filepath.Join(dir, "archive"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewSinkRejectsUnknownFormat(t *testing.T) {
	_, err := NewSink(logging.Discard(), Options{Formats: []string{"xml"}})
	assert.ErrorContains(t, err, `unknown output format "xml"`)

	_, err = NewSink(logging.Discard(), Options{Formats: []string{"gist"}})
	assert.ErrorContains(t, err, "needs a GitHub token")

	assert.Equal(t, []string{"csv", "gist", "json", "markdown", "pretty"}, Formats())
}

func TestGistWriter(t *testing.T) {
	var gotAuth string
	var got struct {
		Description string                       `json:"description"`
		Public      bool                         `json:"public"`
		Files       map[string]map[string]string `json:"files"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/gists" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc","html_url":"https://gist.example/abc"}`))
	}))
	defer srv.Close()

	sink, err := NewSink(logging.Discard(), Options{
		Formats:    []string{"gist"},
		ArchiveDir: t.TempDir(),
		Gist:       GistOptions{Token: "secret", Public: true, BaseURL: srv.URL},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), sampleOutcome(t)))

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.True(t, got.Public)
	assert.True(t, strings.HasPrefix(got.Description, "page-audit https://example.com/shop"))
	assert.Contains(t, got.Files, "example-com-shop.md")
	assert.Contains(t, got.Files, "example-com-shop.json")
	assert.Contains(t, got.Files["example-com-shop.md"]["content"], "# Audit: https://example.com/shop")
}

func TestSummaryPublish(t *testing.T) {
	s := NewSummary()
	s.Track(sampleOutcome(t))

	md := s.Markdown()
	assert.Contains(t, md, "Audited 1 target(s).")
	assert.Contains(t, md, "| https://example.com/shop | 1 | 1 | 1 | 1 |")
	assert.Contains(t, md, "- x-frame-options: 1")

	path := filepath.Join(t.TempDir(), "step-summary.md")
	t.Setenv("GITHUB_STEP_SUMMARY", path)
	require.NoError(t, s.Publish(io.Discard))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "# Page Audit Summary")

	t.Setenv("GITHUB_STEP_SUMMARY", "")
	var buf bytes.Buffer
	require.NoError(t, s.Publish(&buf))
	assert.Contains(t, buf.String(), "# Page Audit Summary")
}
