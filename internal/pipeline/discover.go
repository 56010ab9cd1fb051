package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/justsurfingit/jobops-pipeline/internal/asyncpool"
	"github.com/justsurfingit/jobops-pipeline/internal/extractor"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
	"github.com/justsurfingit/jobops-pipeline/internal/settings"
)

// sourceGroup is one extractor invocation covering every enabled source it owns.
type sourceGroup struct {
	manifest extractor.Manifest
	sources  []string
}

type groupResult struct {
	jobs []models.CreateJobInput
	err  error
}

func (o *Orchestrator) discoverJobsStep(ctx context.Context, rc *runCtx) error {
	if !rc.cfg.EnableCrawling {
		return nil
	}
	snap, err := o.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	reg, err := o.registry.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize extractor registry: %w", err)
	}

	requested := rc.cfg.Sources
	if len(requested) == 0 {
		requested = reg.Sources()
	}
	groups := o.groupSources(reg, snap, requested)
	o.updateProgress(func(p *Progress) {
		p.SourcesTotal = len(groups)
		p.SourcesDone = 0
	})

	var mu sync.Mutex
	done := 0
	results := asyncpool.Run(ctx, groups, asyncpool.Options[sourceGroup]{
		Concurrency: discoveryConcurrency,
		ShouldStop:  o.IsCancelRequested,
		OnSettled: func(sourceGroup, int) {
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			o.updateProgress(func(p *Progress) { p.SourcesDone = n })
		},
	}, func(ctx context.Context, g sourceGroup, _ int) groupResult {
		return o.runExtractor(ctx, rc, snap, g)
	})

	var discovered []models.CreateJobInput
	for _, r := range results {
		if r.err != nil {
			rc.sourceErrors = append(rc.sourceErrors, r.err)
			continue
		}
		discovered = append(discovered, r.jobs...)
	}

	// Sources cut short by a cancel are not failures; the next checkpoint ends the run.
	if o.IsCancelRequested() || ctx.Err() != nil {
		rc.discovered = discovered
		return nil
	}

	if len(discovered) == 0 && len(rc.sourceErrors) > 0 {
		return fmt.Errorf("all sources failed: %w", errors.Join(rc.sourceErrors...))
	}

	if o.employer != nil {
		kept, dropped := o.employer.FilterBlocked(discovered, snap.BlockedCompanyKeywords)
		if dropped > 0 {
			o.logger.Info("dropped postings from blocked employers", "run_id", rc.runID, "count", dropped)
		}
		discovered = kept
	}
	rc.discovered = discovered

	count := len(discovered)
	if err := o.runs.UpdatePipelineRun(ctx, rc.runID, repository.RunPatch{JobsDiscovered: &count}); err != nil {
		return err
	}
	o.updateProgress(func(p *Progress) {
		p.JobsDiscovered = count
		p.Detail = fmt.Sprintf("Discovered %d jobs from %d extractors", count, len(groups))
	})
	return nil
}

// groupSources applies the enabled flags and groups the remaining sources by their
// owning extractor, in first-seen order.
func (o *Orchestrator) groupSources(reg *extractor.Registry, snap *settings.Snapshot, requested []string) []sourceGroup {
	var groups []sourceGroup
	index := map[string]int{}
	for _, source := range requested {
		if !snap.SourceEnabled(source) {
			o.logger.Info("skipping disabled source", "source", source)
			continue
		}
		m, ok := reg.ManifestForSource(source)
		if !ok {
			o.logger.Debug("no extractor provides source", "source", source)
			continue
		}
		if i, seen := index[m.ID]; seen {
			groups[i].sources = append(groups[i].sources, source)
			continue
		}
		index[m.ID] = len(groups)
		groups = append(groups, sourceGroup{manifest: m, sources: []string{source}})
	}
	return groups
}

func (o *Orchestrator) runExtractor(ctx context.Context, rc *runCtx, snap *settings.Snapshot, g sourceGroup) (res groupResult) {
	logger := o.logger.With("run_id", rc.runID, "source", strings.Join(g.sources, ","))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("extractor panicked", "panic", r)
			res = groupResult{err: &SourceFetchError{Sources: g.sources, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()

	if missing := g.manifest.MissingEnvVars(o.lookupEnv); len(missing) > 0 {
		return groupResult{err: &SourceFetchError{
			Sources: g.sources,
			Err:     fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", ")),
		}}
	}

	logger.Info("running extractor", "extractor", g.manifest.ID)
	out, err := g.manifest.Run.Run(ctx, extractor.RunContext{
		Source:          g.sources[0],
		SelectedSources: g.sources,
		SearchTerms:     snap.SearchTerms,
		Settings:        snap,
		Options:         g.manifest.Options,
		ShouldCancel:    o.IsCancelRequested,
		OnProgress: func(p extractor.Progress) {
			o.updateProgress(func(pr *Progress) {
				pr.Detail = fmt.Sprintf("%s: %s %s", p.Source, p.Phase, p.Term)
			})
		},
	})
	if err != nil {
		logger.Warn("extractor failed", "extractor", g.manifest.ID, "error", err)
		return groupResult{err: &SourceFetchError{Sources: g.sources, Err: err}}
	}
	logger.Info("extractor finished", "extractor", g.manifest.ID, "jobs", len(out.Jobs))
	return groupResult{jobs: out.Jobs}
}
