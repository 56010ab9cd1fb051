package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
)

// Processor turns a discovered job into a ready one: tailored content and, when
// enabled, a rendered PDF.
type Processor struct {
	jobs     repository.JobStore
	settings SettingsProvider
	profiles ProfileLoader
	tailor   Tailor
	renderer PDFRenderer
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(jobs repository.JobStore, settings SettingsProvider, profiles ProfileLoader, tailor Tailor, renderer PDFRenderer, logger *slog.Logger) *Processor {
	return &Processor{
		jobs:     jobs,
		settings: settings,
		profiles: profiles,
		tailor:   tailor,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}
}

type ProcessOptions struct {
	// Profile skips reloading the profile when the caller already has it.
	Profile models.Profile
}

// ProcessJob moves the job through processing to ready. The claim only succeeds while
// the job is still discovered, so concurrent callers cannot both process it. Any
// failure after the claim puts it back to discovered so a later run can retry it.
func (p *Processor) ProcessJob(ctx context.Context, jobID string, opts ProcessOptions) error {
	logger := p.logger.With("job_id", jobID)

	job, err := p.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !models.CanTransition(job.Status, models.StatusProcessing) {
		return fmt.Errorf("job %s is %s, only discovered jobs can be processed", jobID, job.Status)
	}

	snap, err := p.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	profile := opts.Profile
	if profile == nil {
		if profile, err = p.profiles.LoadProfile(ctx); err != nil {
			return err
		}
	}

	discovered := models.StatusDiscovered
	processing := models.StatusProcessing
	claim := repository.JobPatch{Status: &processing, ExpectStatus: &discovered}
	if _, err := p.jobs.UpdateJob(ctx, jobID, claim); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return fmt.Errorf("job %s is already being processed: %w", jobID, err)
		}
		return err
	}

	patch, err := p.generate(ctx, job, profile, snap.ModelTailoring, snap.PDFGenerationEnabled)
	if err != nil {
		logger.Warn("job processing failed, reverting to discovered", "error", err)
		revert := repository.JobPatch{Status: &discovered, ExpectStatus: &processing, EventDetails: "Processing failed: " + err.Error()}
		if _, rerr := p.jobs.UpdateJob(context.WithoutCancel(ctx), jobID, revert); rerr != nil {
			logger.Error("failed to revert job status", "error", rerr)
		}
		return err
	}

	patch.ExpectStatus = &processing
	if _, err := p.jobs.UpdateJob(ctx, jobID, patch); err != nil {
		return err
	}
	logger.Info("job ready", "title", job.Title, "pdf", patch.PDFPath != nil)
	return nil
}

func (p *Processor) generate(ctx context.Context, job *models.Job, profile models.Profile, model string, pdfEnabled bool) (patch repository.JobPatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			patch, err = repository.JobPatch{}, fmt.Errorf("panic: %v", r)
		}
	}()

	tailoring, err := p.tailor.GenerateTailoring(ctx, job, profile, model)
	if err != nil {
		return repository.JobPatch{}, fmt.Errorf("generate tailoring: %w", err)
	}
	skills, err := json.Marshal(tailoring.Skills)
	if err != nil {
		return repository.JobPatch{}, fmt.Errorf("encode skills: %w", err)
	}
	skillsJSON := string(skills)

	ready := models.StatusReady
	now := p.now().UTC()
	patch = repository.JobPatch{
		Status:           &ready,
		TailoredSummary:  &tailoring.Summary,
		TailoredHeadline: &tailoring.Headline,
		TailoredSkills:   &skillsJSON,
		ProcessedAt:      &now,
	}

	if pdfEnabled && p.renderer != nil && p.renderer.Enabled() {
		path, err := p.renderer.GeneratePDF(ctx, job, tailoring, profile)
		if err != nil {
			return repository.JobPatch{}, fmt.Errorf("generate pdf: %w", err)
		}
		patch.PDFPath = &path
	}
	return patch, nil
}
