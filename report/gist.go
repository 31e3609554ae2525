package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v53/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// GistOptions configures publishing reports as GitHub gists.
type GistOptions struct {
	Token  string
	Public bool
	// BaseURL points the client at a GitHub Enterprise or test API.
	BaseURL string
}

// gistWriter publishes the markdown and JSON report of each target as a gist.
type gistWriter struct {
	log    *logrus.Entry
	client *github.Client
	public bool
}

func newGistWriter(log *logrus.Entry, opts GistOptions) (*gistWriter, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("gist output needs a GitHub token")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid gist base url: %w", err)
		}
		client.BaseURL = u
	}
	return &gistWriter{log: log, client: client, public: opts.Public}, nil
}

func (w *gistWriter) Write(ctx context.Context, o Outcome) error {
	body, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	passed, failed, errored := o.Tally()
	gist := &github.Gist{
		Description: github.String(fmt.Sprintf("page-audit %s: %d passed, %d failed, %d could not run",
			o.Target.URL, passed, failed, errored)),
		Public: github.Bool(w.public),
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(o.slug() + ".md"):   {Content: github.String(renderMarkdown(o))},
			github.GistFilename(o.slug() + ".json"): {Content: github.String(string(body))},
		},
	}

	created, _, err := w.client.Gists.Create(ctx, gist)
	if err != nil {
		return fmt.Errorf("failed to create gist: %w", err)
	}
	w.log.WithField("target", o.Target.URL).WithField("gist", created.GetHTMLURL()).Info("Published report gist")
	return nil
}
