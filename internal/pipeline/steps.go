package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/justsurfingit/jobops-pipeline/internal/asyncpool"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
)

func (o *Orchestrator) loadProfileStep(ctx context.Context, rc *runCtx) error {
	snap, err := o.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	rc.cfg = rc.opts.merge(snap)

	profile, err := o.profiles.LoadProfile(ctx)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	rc.profile = profile
	return nil
}

func (o *Orchestrator) importJobsStep(ctx context.Context, rc *runCtx) error {
	if !rc.cfg.EnableImporting || len(rc.discovered) == 0 {
		return nil
	}
	res, err := o.jobs.BulkCreateJobs(ctx, rc.discovered)
	if err != nil {
		return err
	}
	rc.imported = res
	o.updateProgress(func(p *Progress) {
		p.JobsCreated = res.Created
		p.JobsSkipped = res.Skipped
		p.Detail = fmt.Sprintf("Created %d, skipped %d duplicates", res.Created, res.Skipped)
	})
	o.logger.Info("jobs imported", "run_id", rc.runID, "created", res.Created, "skipped", res.Skipped)
	return nil
}

type scoreOutcome struct {
	job     models.Job
	scored  bool
	skipped bool
}

func (o *Orchestrator) scoreJobsStep(ctx context.Context, rc *runCtx) error {
	if !rc.cfg.EnableScoring {
		return nil
	}
	snap, err := o.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	jobs, err := o.jobs.GetUnscoredDiscoveredJobs(ctx)
	if err != nil {
		return err
	}
	rc.unprocessed = jobs
	threshold := snap.AutoSkipScoreThreshold

	o.updateProgress(func(p *Progress) {
		p.TotalToScore = len(jobs)
		p.JobsScored = 0
	})

	var mu sync.Mutex
	completed := 0
	outcomes := asyncpool.RunRecover(ctx, jobs, asyncpool.Options[models.Job]{
		Concurrency: scoringConcurrency,
		ShouldStop:  o.IsCancelRequested,
	}, func(ctx context.Context, job models.Job, _ int) scoreOutcome {
		logger := o.logger.With("run_id", rc.runID, "job_id", job.ID)
		out := scoreOutcome{job: job}

		if job.HasScore() {
			out.scored = true
		} else {
			s, err := o.scorer.ScoreJobSuitability(ctx, &job, rc.profile, snap.ModelScorer)
			if err != nil {
				logger.Warn("failed to score job", "error", err)
				return out
			}
			patch := repository.JobPatch{SuitabilityScore: &s.Score, SuitabilityReason: &s.Reason}
			if threshold > 0 && s.Score < float64(threshold) && job.Status != models.StatusApplied {
				skipped := models.StatusSkipped
				patch.Status = &skipped
				patch.EventDetails = fmt.Sprintf("Auto-skipped: score %.0f below threshold %d", s.Score, threshold)
				out.skipped = true
			}
			updated, err := o.jobs.UpdateJob(ctx, job.ID, patch)
			if err != nil {
				logger.Warn("failed to store job score", "error", err)
				return out
			}
			out.job = *updated
			out.scored = true
			if out.skipped {
				logger.Info("auto-skipped job due to low score", "score", s.Score, "threshold", threshold)
			}
		}

		mu.Lock()
		completed++
		n := completed
		mu.Unlock()
		o.updateProgress(func(p *Progress) {
			p.JobsScored = n
			p.CurrentJob = job.Title
		})
		return out
	}, func(job models.Job, _ int, p *asyncpool.PanicError) scoreOutcome {
		o.logger.Error("scoring panicked", "run_id", rc.runID, "job_id", job.ID, "panic", p.Value, "stack", string(p.Stack))
		return scoreOutcome{job: job}
	})

	rc.scored = rc.scored[:0]
	for _, out := range outcomes {
		if out.scored && !out.skipped {
			rc.scored = append(rc.scored, out.job)
		}
	}
	o.logger.Info("scoring step completed", "run_id", rc.runID, "scored", len(rc.scored), "candidates", len(jobs))
	return nil
}

func (o *Orchestrator) selectJobsStep(ctx context.Context, rc *runCtx) error {
	rc.selected = SelectJobs(rc.scored, rc.cfg.TopN, rc.cfg.MinSuitabilityScore)
	o.updateProgress(func(p *Progress) {
		p.TotalToProcess = len(rc.selected)
		p.Detail = fmt.Sprintf("Selected %d of %d scored jobs", len(rc.selected), len(rc.scored))
	})
	return nil
}

// SelectJobs keeps jobs scoring at least minScore, best first, capped at topN.
func SelectJobs(scored []models.Job, topN, minScore int) []models.Job {
	out := make([]models.Job, 0, len(scored))
	for _, job := range scored {
		if scoreOf(job) >= float64(minScore) {
			out = append(out, job)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Job) int {
		return cmp.Compare(scoreOf(b), scoreOf(a))
	})
	if topN >= 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func scoreOf(job models.Job) float64 {
	if job.SuitabilityScore == nil {
		return 0
	}
	return *job.SuitabilityScore
}

func (o *Orchestrator) processJobsStep(ctx context.Context, rc *runCtx) error {
	if !rc.cfg.EnableAutoTailoring || len(rc.selected) == 0 || o.processor == nil {
		return nil
	}
	total := len(rc.selected)
	var mu sync.Mutex
	started, settled := 0, 0

	results := asyncpool.RunRecover(ctx, rc.selected, asyncpool.Options[models.Job]{
		Concurrency: processingConcurrency,
		ShouldStop:  o.IsCancelRequested,
		OnStarted: func(job models.Job, _ int) {
			mu.Lock()
			started++
			n := started
			mu.Unlock()
			o.updateProgress(func(p *Progress) {
				p.CurrentJob = job.Title
				p.Detail = fmt.Sprintf("Processing %d/%d", n, total)
			})
		},
		OnSettled: func(models.Job, int) {
			mu.Lock()
			settled++
			n := settled
			mu.Unlock()
			o.updateProgress(func(p *Progress) { p.JobsProcessed = n })
		},
	}, func(ctx context.Context, job models.Job, _ int) bool {
		if err := o.processor.ProcessJob(ctx, job.ID, ProcessOptions{Profile: rc.profile}); err != nil {
			o.logger.Warn("failed to process job", "run_id", rc.runID, "job_id", job.ID, "error", err)
			return false
		}
		return true
	}, func(job models.Job, _ int, p *asyncpool.PanicError) bool {
		o.logger.Error("job processing panicked", "run_id", rc.runID, "job_id", job.ID, "panic", p.Value, "stack", string(p.Stack))
		return false
	})

	for _, ok := range results {
		if ok {
			rc.processed++
		}
	}
	return nil
}
