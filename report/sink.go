package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// Options selects output formats and where they go.
type Options struct {
	Formats    []string
	Out        io.Writer // json and pretty; defaults to stdout
	Dir        string    // csv and markdown
	ArchiveDir string
	NoColor    bool
	Gist       GistOptions
}

var formats = map[string]func(*logrus.Entry, Options) (Writer, error){
	"json": func(_ *logrus.Entry, o Options) (Writer, error) {
		return jsonWriter{out: o.Out}, nil
	},
	"pretty": func(_ *logrus.Entry, o Options) (Writer, error) {
		return prettyWriter{out: o.Out, noColor: o.NoColor}, nil
	},
	"csv": func(_ *logrus.Entry, o Options) (Writer, error) {
		return &csvWriter{path: filepath.Join(o.Dir, "results.csv")}, nil
	},
	"markdown": func(_ *logrus.Entry, o Options) (Writer, error) {
		return markdownWriter{dir: o.Dir}, nil
	},
	"gist": func(log *logrus.Entry, o Options) (Writer, error) {
		return newGistWriter(log, o.Gist)
	},
}

// Formats lists the supported output format names.
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type namedWriter struct {
	format string
	w      Writer
}

// Sink hands each outcome to every requested format, then archives it.
type Sink struct {
	log     *logrus.Entry
	writers []namedWriter
	archive Writer
	summary *Summary
}

func NewSink(log *logrus.Entry, opts Options) (*Sink, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.ArchiveDir == "" {
		opts.ArchiveDir = filepath.Join(opts.Dir, "archive")
	}

	s := &Sink{
		log:     log,
		archive: archiveWriter{dir: opts.ArchiveDir},
		summary: NewSummary(),
	}
	seen := make(map[string]bool)
	for _, name := range opts.Formats {
		if seen[name] {
			continue
		}
		seen[name] = true
		build, ok := formats[name]
		if !ok {
			return nil, fmt.Errorf("unknown output format %q", name)
		}
		w, err := build(log, opts)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", name, err)
		}
		s.writers = append(s.writers, namedWriter{format: name, w: w})
	}
	return s, nil
}

// Write renders o in each requested format and always archives it. Format
// failures do not prevent the archive; all errors are returned joined.
func (s *Sink) Write(ctx context.Context, o Outcome) error {
	var errs []error
	for _, nw := range s.writers {
		if err := nw.w.Write(ctx, o); err != nil {
			s.log.WithField("format", nw.format).WithError(err).Error("Failed to write report")
			errs = append(errs, fmt.Errorf("%s: %w", nw.format, err))
		}
	}
	if err := s.archive.Write(ctx, o); err != nil {
		errs = append(errs, fmt.Errorf("archive: %w", err))
	}
	s.summary.Track(o)
	return errors.Join(errs...)
}

func (s *Sink) Summary() *Summary {
	return s.summary
}
