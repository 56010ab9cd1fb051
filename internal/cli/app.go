package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobops-pipeline/internal/config"
	"github.com/justsurfingit/jobops-pipeline/internal/extractor"
	"github.com/justsurfingit/jobops-pipeline/internal/extractor/feed"
	"github.com/justsurfingit/jobops-pipeline/internal/jobaction"
	"github.com/justsurfingit/jobops-pipeline/internal/pipeline"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
	"github.com/justsurfingit/jobops-pipeline/internal/services"
	"github.com/justsurfingit/jobops-pipeline/internal/settings"
)

// app is the wired object graph shared by the commands.
type app struct {
	jobs     *repository.JobRepository
	runs     *repository.PipelineRunRepository
	settings *settings.Service
	registry *extractor.Loader

	llm       *services.LLMService
	jobSvc    *services.JobService
	pipeline  *pipeline.Orchestrator
	scheduler *pipeline.Scheduler
	actions   *jobaction.Executor
}

// runners maps manifest runner names to built-in implementations.
func runners() map[string]extractor.Runner {
	return map[string]extractor.Runner{
		"feed": feed.New(nil),
	}
}

// newApp wires the stores and registry. Commands that score or tailor pass
// requireLLM, which also builds the pipeline and the action executor.
func newApp(ctx context.Context, db *gorm.DB, cfg config.Config, logger *slog.Logger, requireLLM bool) (*app, error) {
	a := &app{
		jobs:     repository.NewJobRepository(db),
		runs:     repository.NewPipelineRunRepository(db),
		settings: settings.NewService(repository.NewSettingsRepository(db)),
		registry: extractor.NewLoader(cfg.ExtractorsDir, runners(), cfg.ExtractorRegistryStrict, logger),
	}
	a.jobSvc = services.NewJobService(a.jobs)
	if !requireLLM {
		return a, nil
	}

	llm, err := services.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.Model, logger)
	if errors.Is(err, services.ErrMissingAPIKey) {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for scoring and tailoring: %w", err)
	}
	if err != nil {
		return nil, err
	}
	a.llm = llm

	profiles := services.NewProfileService(cfg.ProfilePath)
	renderer := services.NewResumeRenderer(cfg.ResumeRendererURL, cfg.PDFOutputDir)
	processor := pipeline.NewProcessor(a.jobs, a.settings, profiles, llm, renderer, logger)

	a.pipeline = pipeline.New(pipeline.Deps{
		Jobs:     a.jobs,
		Runs:     a.runs,
		Settings: a.settings,
		Registry: a.registry,
		Profiles: profiles,
		Scorer:   llm,
		Process:  processor,
		Notifier: services.NewWebhookService(cfg.WebhookSecret, logger),
		Employer: services.NewMatcherService(),
		Logger:   logger,
	})
	a.scheduler = pipeline.NewScheduler(a.pipeline, a.settings, logger)
	a.actions = jobaction.NewExecutor(a.jobs, processor, llm, profiles, a.settings, logger)
	return a, nil
}
