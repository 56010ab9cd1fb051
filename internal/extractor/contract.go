// Package extractor discovers source plugins from manifest files and routes sources to
// the compiled-in runner that serves them.
package extractor

import (
	"context"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/settings"
)

// Runner fetches postings for one extractor. A returned error is a source-level
// failure; it never aborts other extractors.
type Runner interface {
	Run(ctx context.Context, rc RunContext) (Result, error)
}

type RunnerFunc func(ctx context.Context, rc RunContext) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, rc RunContext) (Result, error) {
	return f(ctx, rc)
}

type RunContext struct {
	// Source is the first selected source and labels the returned postings.
	Source          string
	SelectedSources []string
	SearchTerms     []string
	Settings        *settings.Snapshot
	// Options are the free-form options declared in the manifest.
	Options map[string]any

	// ShouldCancel is polled between units of work. Runners must not block on it.
	ShouldCancel func() bool
	OnProgress   func(Progress)
}

func (rc RunContext) Cancelled() bool {
	return rc.ShouldCancel != nil && rc.ShouldCancel()
}

func (rc RunContext) Report(p Progress) {
	if rc.OnProgress != nil {
		p.Source = rc.Source
		rc.OnProgress(p)
	}
}

type Progress struct {
	Source    string `json:"source"`
	Phase     string `json:"phase"`
	Term      string `json:"term,omitempty"`
	JobsFound int    `json:"jobsFound"`
}

type Result struct {
	Jobs []models.CreateJobInput
}
