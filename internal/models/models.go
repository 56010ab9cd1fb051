package models

import (
	"time"
)

type Job struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Source      string `gorm:"index;not null" json:"source"`
	SourceJobID string `json:"source_job_id,omitempty"`
	Title       string `gorm:"not null" json:"title"`
	Employer    string `json:"employer"`
	// JobURL is the dedupe identity across sources.
	JobURL      string `gorm:"uniqueIndex;not null" json:"job_url"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Description string `gorm:"type:text" json:"description"`

	Status            JobStatus `gorm:"index;default:'discovered'" json:"status"`
	SuitabilityScore  *float64  `json:"suitability_score"`
	SuitabilityReason string    `gorm:"type:text" json:"suitability_reason"`

	TailoredSummary  string  `gorm:"type:text" json:"tailored_summary"`
	TailoredHeadline string  `json:"tailored_headline"`
	TailoredSkills   string  `gorm:"type:text" json:"tailored_skills"`
	PDFPath          *string `json:"pdf_path"`

	DiscoveredAt time.Time  `json:"discovered_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
	AppliedAt    *time.Time `json:"applied_at"`
}

// HasScore reports whether the job already carries a usable suitability score.
func (j *Job) HasScore() bool {
	return j.SuitabilityScore != nil
}

type JobEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	JobID     string    `gorm:"index;type:varchar(36)" json:"job_id"`
	EventType string    `json:"event_type"`
	Details   string    `gorm:"type:text" json:"details"`
}

type PipelineRun struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StartedAt      time.Time  `gorm:"index" json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Status         RunStatus  `gorm:"index;not null" json:"status"`
	JobsDiscovered int        `json:"jobs_discovered"`
	JobsProcessed  int        `json:"jobs_processed"`
	ErrorMessage   *string    `gorm:"type:text" json:"error_message"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateJobInput is a posting as produced by an extractor, before it is persisted.
type CreateJobInput struct {
	Source      string `json:"source"`
	SourceJobID string `json:"source_job_id,omitempty"`
	Title       string `json:"title"`
	Employer    string `json:"employer"`
	JobURL      string `json:"job_url"`
	Location    string `json:"location,omitempty"`
	Salary      string `json:"salary,omitempty"`
	Description string `json:"description,omitempty"`
}

// Profile is the candidate profile used for scoring and tailoring. Its shape is owned
// by the resume tooling, so it stays loosely typed here.
type Profile map[string]any

type Suitability struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

type Tailoring struct {
	Summary  string   `json:"summary"`
	Headline string   `json:"headline"`
	Skills   []string `json:"skills"`
}
