package repository

import (
	"context"
	"time"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
)

// JobStore handles persistence of discovered postings and their lifecycle.
type JobStore interface {
	// GetAllJobURLs returns the dedupe identity of every stored job.
	GetAllJobURLs(ctx context.Context) ([]string, error)

	// BulkCreateJobs inserts postings whose URL is not stored yet.
	BulkCreateJobs(ctx context.Context, postings []models.CreateJobInput) (BulkCreateResult, error)

	// CreateJob inserts a single manually entered job.
	CreateJob(ctx context.Context, input models.CreateJobInput) (*models.Job, error)

	// GetUnscoredDiscoveredJobs returns jobs still in the discovered state. Jobs scored
	// by an earlier run keep their score and are returned too.
	GetUnscoredDiscoveredJobs(ctx context.Context) ([]models.Job, error)

	// GetJobByID returns ErrNotFound when the job does not exist.
	GetJobByID(ctx context.Context, id string) (*models.Job, error)

	// GetJobsByIDs returns the jobs that exist, in no particular order.
	GetJobsByIDs(ctx context.Context, ids []string) ([]models.Job, error)

	// UpdateJob applies patch and records a JobEvent when the status changes.
	// A patch with ExpectStatus fails with ErrStatusConflict if the status differs.
	UpdateJob(ctx context.Context, id string, patch JobPatch) (*models.Job, error)
}

// SettingsStore persists raw setting overrides.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (*string, error)
	GetAllSettings(ctx context.Context) (map[string]string, error)
	// SetSetting upserts the value, or deletes the override when value is nil.
	SetSetting(ctx context.Context, key string, value *string) error
}

// PipelineRunStore persists one row per pipeline execution.
type PipelineRunStore interface {
	CreatePipelineRun(ctx context.Context) (*models.PipelineRun, error)
	UpdatePipelineRun(ctx context.Context, id string, patch RunPatch) error
	ListPipelineRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

type BulkCreateResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// JobPatch lists the mutable job fields. Nil fields are left untouched.
type JobPatch struct {
	Status            *models.JobStatus
	SuitabilityScore  *float64
	SuitabilityReason *string
	TailoredSummary   *string
	TailoredHeadline  *string
	TailoredSkills    *string
	PDFPath           *string
	ProcessedAt       *time.Time
	AppliedAt         *time.Time
	// EventDetails is stored on the JobEvent written for a status change.
	EventDetails string
	// ExpectStatus makes the update conditional on the current status. When the job is
	// in another status nothing is written and ErrStatusConflict is returned.
	ExpectStatus *models.JobStatus
}

type RunPatch struct {
	Status         *models.RunStatus
	CompletedAt    *time.Time
	JobsDiscovered *int
	JobsProcessed  *int
	ErrorMessage   *string
}
