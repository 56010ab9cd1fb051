package jobaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/justsurfingit/jobops-pipeline/internal/asyncpool"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/pipeline"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
)

const concurrency = 4

const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is one job's outcome. Job is set when OK, Error otherwise.
type Result struct {
	JobID string       `json:"jobId"`
	OK    bool         `json:"ok"`
	Job   *models.Job  `json:"job,omitempty"`
	Error *ResultError `json:"error,omitempty"`
}

type Response struct {
	Action    Action   `json:"action"`
	Requested int      `json:"requested"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string, opts pipeline.ProcessOptions) error
}

type Executor struct {
	jobs      repository.JobStore
	processor JobProcessor
	scorer    pipeline.Scorer
	profiles  pipeline.ProfileLoader
	settings  pipeline.SettingsProvider
	logger    *slog.Logger
}

func NewExecutor(jobs repository.JobStore, processor JobProcessor, scorer pipeline.Scorer, profiles pipeline.ProfileLoader, settings pipeline.SettingsProvider, logger *slog.Logger) *Executor {
	return &Executor{
		jobs:      jobs,
		processor: processor,
		scorer:    scorer,
		profiles:  profiles,
		settings:  settings,
		logger:    logger,
	}
}

// Validate resolves the batch and checks every job against the action's predicate.
// A single missing or ineligible job rejects the whole batch.
func (e *Executor) Validate(ctx context.Context, req Request) ([]string, error) {
	ids, err := req.normalize()
	if err != nil {
		return nil, err
	}
	jobs, err := e.jobs.GetJobsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	byID := make(map[string]models.JobStatus, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j.Status
	}
	for _, id := range ids {
		status, ok := byID[id]
		if !ok {
			return nil, &RequestError{JobID: id, Reason: "job not found"}
		}
		if reason, ok := req.Action.Eligible(status); !ok {
			return nil, &RequestError{JobID: id, Status: status, Reason: reason}
		}
	}
	return ids, nil
}

// Execute runs the batch to completion and returns the tally.
func (e *Executor) Execute(ctx context.Context, req Request) (Response, error) {
	ids, err := e.Validate(ctx, req)
	if err != nil {
		return Response{}, err
	}
	b := e.newBatch(ctx, req.Action)

	results := asyncpool.Run(ctx, ids, asyncpool.Options[string]{Concurrency: concurrency},
		func(ctx context.Context, id string, _ int) Result {
			return b.run(ctx, id)
		})

	resp := Response{Action: req.Action, Requested: len(ids), Results: results}
	for _, r := range results {
		if r.OK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	e.logger.Info("job action completed",
		"action", req.Action, "requested", resp.Requested, "succeeded", resp.Succeeded, "failed", resp.Failed)
	return resp, nil
}

// batch holds what the jobs of one request share.
type batch struct {
	e       *Executor
	action  Action
	profile func() (models.Profile, error)
	model   func() (string, error)
}

func (e *Executor) newBatch(ctx context.Context, action Action) *batch {
	ctx = context.WithoutCancel(ctx)
	return &batch{
		e:      e,
		action: action,
		profile: sync.OnceValues(func() (models.Profile, error) {
			return e.profiles.LoadProfile(ctx)
		}),
		model: sync.OnceValues(func() (string, error) {
			snap, err := e.settings.Snapshot(ctx)
			if err != nil {
				return "", err
			}
			return snap.ModelScorer, nil
		}),
	}
}

// run applies the action to one job. Failures, including panics, become the job's
// result and never abort the batch.
func (b *batch) run(ctx context.Context, id string) (res Result) {
	logger := b.e.logger.With("action", b.action, "job_id", id)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job action panicked", "panic", r)
			res = failure(id, CodeInternal, fmt.Sprintf("panic: %v", r))
		}
	}()

	job, err := b.apply(ctx, id)
	if err != nil {
		logger.Warn("job action failed", "error", err)
		return resultFor(id, err)
	}
	return Result{JobID: id, OK: true, Job: job}
}

func (b *batch) apply(ctx context.Context, id string) (*models.Job, error) {
	job, err := b.e.jobs.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// The status may have moved since the batch was validated.
	if reason, ok := b.action.Eligible(job.Status); !ok {
		return nil, &RequestError{JobID: id, Status: job.Status, Reason: reason}
	}

	switch b.action {
	case ActionSkip:
		skipped := models.StatusSkipped
		return b.e.jobs.UpdateJob(ctx, id, repository.JobPatch{Status: &skipped})

	case ActionMoveToReady:
		if err := b.e.processor.ProcessJob(ctx, id, pipeline.ProcessOptions{}); err != nil {
			return nil, err
		}
		return b.e.jobs.GetJobByID(ctx, id)

	case ActionRescore:
		profile, err := b.profile()
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		model, err := b.model()
		if err != nil {
			return nil, err
		}
		s, err := b.e.scorer.ScoreJobSuitability(ctx, job, profile, model)
		if err != nil {
			return nil, fmt.Errorf("score job: %w", err)
		}
		return b.e.jobs.UpdateJob(ctx, id, repository.JobPatch{SuitabilityScore: &s.Score, SuitabilityReason: &s.Reason})
	}
	return nil, &RequestError{JobID: id, Reason: fmt.Sprintf("unknown action %q", b.action)}
}

func resultFor(id string, err error) Result {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return failure(id, CodeNotFound, "Job not found")
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, repository.ErrStatusConflict):
		return failure(id, CodeInvalidRequest, err.Error())
	}
	return failure(id, CodeInternal, err.Error())
}

func failure(id, code, msg string) Result {
	return Result{JobID: id, Error: &ResultError{Code: code, Message: msg}}
}
