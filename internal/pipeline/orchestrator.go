// Package pipeline runs the discover, import, score, select and process stages as a
// single-flight job with checkpoint cancellation between stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
	"github.com/justsurfingit/jobops-pipeline/internal/settings"
)

const (
	discoveryConcurrency  = 3
	scoringConcurrency    = 4
	processingConcurrency = 3
)

// RunOptions are per-run overrides. Nil fields fall back to settings.
type RunOptions struct {
	Sources             []string `json:"sources"`
	TopN                *int     `json:"topN"`
	MinSuitabilityScore *int     `json:"minSuitabilityScore"`
	EnableCrawling      *bool    `json:"enableCrawling"`
	EnableImporting     *bool    `json:"enableImporting"`
	EnableScoring       *bool    `json:"enableScoring"`
	EnableAutoTailoring *bool    `json:"enableAutoTailoring"`
}

type runConfig struct {
	Sources             []string
	TopN                int
	MinSuitabilityScore int
	EnableCrawling      bool
	EnableImporting     bool
	EnableScoring       bool
	EnableAutoTailoring bool
}

func (opts RunOptions) merge(snap *settings.Snapshot) runConfig {
	cfg := runConfig{
		Sources:             settings.NormalizeStringList(opts.Sources),
		TopN:                snap.PipelineTopN,
		MinSuitabilityScore: snap.PipelineMinSuitabilityScore,
		EnableCrawling:      boolOr(opts.EnableCrawling, true),
		EnableImporting:     boolOr(opts.EnableImporting, true),
		EnableScoring:       boolOr(opts.EnableScoring, true),
		EnableAutoTailoring: boolOr(opts.EnableAutoTailoring, true),
	}
	if opts.TopN != nil {
		cfg.TopN = min(max(*opts.TopN, 1), 100)
	}
	if opts.MinSuitabilityScore != nil {
		cfg.MinSuitabilityScore = min(max(*opts.MinSuitabilityScore, 0), 100)
	}
	return cfg
}

// Result is what a finished run reports to its caller. Err carries the typed failure.
type Result struct {
	Success        bool     `json:"success"`
	Error          string   `json:"error,omitempty"`
	RunID          string   `json:"runId,omitempty"`
	Status         string   `json:"status"`
	JobsDiscovered int      `json:"jobsDiscovered"`
	JobsCreated    int      `json:"jobsCreated"`
	JobsSkipped    int      `json:"jobsSkipped"`
	JobsScored     int      `json:"jobsScored"`
	JobsSelected   int      `json:"jobsSelected"`
	JobsProcessed  int      `json:"jobsProcessed"`
	SourceErrors   []string `json:"sourceErrors,omitempty"`

	Err error `json:"-"`
}

type Deps struct {
	Jobs     repository.JobStore
	Runs     repository.PipelineRunStore
	Settings SettingsProvider
	Registry RegistryProvider
	Profiles ProfileLoader
	Scorer   Scorer
	Process  *Processor
	Notifier Notifier
	Employer EmployerFilter
	Logger   *slog.Logger
}

type Orchestrator struct {
	jobs      repository.JobStore
	runs      repository.PipelineRunStore
	settings  SettingsProvider
	registry  RegistryProvider
	profiles  ProfileLoader
	scorer    Scorer
	processor *Processor
	notifier  Notifier
	employer  EmployerFilter
	logger    *slog.Logger

	lookupEnv func(string) (string, bool)
	now       func() time.Time

	mu    sync.Mutex
	state runState
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		jobs:      d.Jobs,
		runs:      d.Runs,
		settings:  d.Settings,
		registry:  d.Registry,
		profiles:  d.Profiles,
		scorer:    d.Scorer,
		processor: d.Process,
		notifier:  d.Notifier,
		employer:  d.Employer,
		logger:    d.Logger,
		lookupEnv: os.LookupEnv,
		now:       time.Now,
		state:     runState{progress: Progress{Step: StageIdle}},
	}
}

// Start claims the single-flight guard and runs the pipeline in the background. The
// returned channel yields exactly one Result. A second call while a run is in flight
// fails with ErrAlreadyRunning and creates no run record.
func (o *Orchestrator) Start(ctx context.Context, opts RunOptions) (<-chan Result, error) {
	if !o.acquire(o.now()) {
		return nil, ErrAlreadyRunning
	}
	out := make(chan Result, 1)
	go func() {
		out <- o.execute(ctx, opts)
		close(out)
	}()
	return out, nil
}

// Run is Start followed by waiting for the result.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (Result, error) {
	ch, err := o.Start(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	return <-ch, nil
}

// runCtx carries state between stages. Only the run goroutine touches it.
type runCtx struct {
	runID   string
	opts    RunOptions
	cfg     runConfig
	profile models.Profile

	discovered   []models.CreateJobInput
	sourceErrors []error
	imported     repository.BulkCreateResult
	unprocessed  []models.Job
	scored       []models.Job
	selected     []models.Job
	processed    int
}

type stageFunc func(ctx context.Context, rc *runCtx) error

func (o *Orchestrator) execute(ctx context.Context, opts RunOptions) (res Result) {
	rc := &runCtx{opts: opts}
	logger := o.logger

	run, err := o.runs.CreatePipelineRun(ctx)
	if err != nil {
		o.release(StageFailed)
		logger.Error("failed to create pipeline run", "error", err)
		return Result{Status: string(models.RunFailed), Error: err.Error(), Err: err}
	}
	rc.runID = run.ID
	o.setRunID(run.ID)
	logger = logger.With("run_id", run.ID)
	logger.Info("pipeline started", "sources", opts.Sources)

	stages := []struct {
		stage Stage
		fn    stageFunc
	}{
		{StageProfile, o.loadProfileStep},
		{StageDiscover, o.discoverJobsStep},
		{StageImport, o.importJobsStep},
		{StageScore, o.scoreJobsStep},
		{StageSelect, o.selectJobsStep},
		{StageProcess, o.processJobsStep},
	}

	for _, s := range stages {
		if reason, stop := o.checkpoint(ctx, s.stage); stop {
			return o.finishCancelled(ctx, rc, logger, reason)
		}
		o.updateProgress(func(p *Progress) { p.Step = s.stage; p.Detail = "" })
		logger.Info("pipeline step started", "step", s.stage)

		if err := o.runStage(ctx, rc, s.stage, s.fn); err != nil {
			if o.IsCancelRequested() || ctx.Err() != nil {
				logger.Info("step error after cancel", "step", s.stage, "error", err)
				return o.finishCancelled(ctx, rc, logger, fmt.Sprintf("Cancelled: stopped during %s step", s.stage))
			}
			return o.finishFailed(ctx, rc, logger, err)
		}
	}

	if reason, stop := o.checkpoint(ctx, StageNotify); stop {
		return o.finishCancelled(ctx, rc, logger, reason)
	}
	return o.finishCompleted(ctx, rc, logger)
}

// runStage converts panics into stage failures.
func (o *Orchestrator) runStage(ctx context.Context, rc *runCtx, stage Stage, fn stageFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline step panicked", "step", stage, "panic", r, "stack", string(debug.Stack()))
			err = &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(ctx, rc); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

// checkpoint reports whether the run must stop before stage.
func (o *Orchestrator) checkpoint(ctx context.Context, stage Stage) (string, bool) {
	if o.IsCancelRequested() {
		return fmt.Sprintf("Cancelled: stopped before %s step", stage), true
	}
	if err := ctx.Err(); err != nil {
		return fmt.Sprintf("Cancelled: %v before %s step", err, stage), true
	}
	return "", false
}

func (o *Orchestrator) finishCompleted(ctx context.Context, rc *runCtx, logger *slog.Logger) Result {
	res := o.result(rc)
	res.Success = true
	res.Status = string(models.RunCompleted)

	status := models.RunCompleted
	o.finalize(ctx, rc.runID, repository.RunPatch{
		Status:        &status,
		JobsProcessed: &rc.processed,
	}, logger)
	o.release(StageCompleted)
	logger.Info("pipeline completed",
		"discovered", res.JobsDiscovered,
		"created", res.JobsCreated,
		"scored", res.JobsScored,
		"processed", res.JobsProcessed,
	)

	o.notify(ctx, logger, "pipeline.completed", map[string]any{
		"pipelineRunId":  rc.runID,
		"jobsDiscovered": res.JobsDiscovered,
		"jobsScored":     res.JobsScored,
		"jobsProcessed":  res.JobsProcessed,
		"sourceErrors":   res.SourceErrors,
	})
	return res
}

func (o *Orchestrator) finishCancelled(ctx context.Context, rc *runCtx, logger *slog.Logger, reason string) Result {
	res := o.result(rc)
	res.Status = string(models.RunCancelled)
	res.Error = reason
	res.Err = context.Canceled

	status := models.RunCancelled
	o.finalize(ctx, rc.runID, repository.RunPatch{
		Status:        &status,
		JobsProcessed: &rc.processed,
		ErrorMessage:  &reason,
	}, logger)
	o.release(StageCancelled)
	logger.Info("pipeline cancelled", "reason", reason)
	return res
}

func (o *Orchestrator) finishFailed(ctx context.Context, rc *runCtx, logger *slog.Logger, err error) Result {
	res := o.result(rc)
	res.Status = string(models.RunFailed)
	res.Error = err.Error()
	res.Err = err

	status := models.RunFailed
	msg := err.Error()
	o.finalize(ctx, rc.runID, repository.RunPatch{
		Status:        &status,
		JobsProcessed: &rc.processed,
		ErrorMessage:  &msg,
	}, logger)
	o.release(StageFailed)

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		logger.Error("pipeline failed", "step", stageErr.Stage, "error", stageErr.Err)
	} else {
		logger.Error("pipeline failed", "error", err)
	}

	o.notify(ctx, logger, "pipeline.failed", map[string]any{
		"pipelineRunId": rc.runID,
		"error":         msg,
	})
	return res
}

// finalize writes the terminal run row. It survives a cancelled ctx so the record is
// never left as running.
func (o *Orchestrator) finalize(ctx context.Context, runID string, patch repository.RunPatch, logger *slog.Logger) {
	now := o.now().UTC()
	patch.CompletedAt = &now
	if err := o.runs.UpdatePipelineRun(context.WithoutCancel(ctx), runID, patch); err != nil {
		logger.Error("failed to finalize pipeline run", "error", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, event string, payload map[string]any) {
	if o.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	snap, err := o.settings.Snapshot(ctx)
	if err != nil {
		logger.Warn("skipping pipeline webhook", "error", err)
		return
	}
	if err := o.notifier.Notify(ctx, snap.PipelineWebhookURL, event, payload); err != nil {
		logger.Warn("pipeline webhook failed", "event", event, "error", err)
	}
}

func (o *Orchestrator) result(rc *runCtx) Result {
	res := Result{
		RunID:          rc.runID,
		JobsDiscovered: len(rc.discovered),
		JobsCreated:    rc.imported.Created,
		JobsSkipped:    rc.imported.Skipped,
		JobsScored:     len(rc.scored),
		JobsSelected:   len(rc.selected),
		JobsProcessed:  rc.processed,
	}
	for _, err := range rc.sourceErrors {
		res.SourceErrors = append(res.SourceErrors, err.Error())
	}
	return res
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
