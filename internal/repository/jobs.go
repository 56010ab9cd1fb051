package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const createBatchSize = 100

type JobRepository struct {
	DB *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{DB: db}
}

func (r *JobRepository) GetAllJobURLs(ctx context.Context) ([]string, error) {
	var urls []string
	if err := r.DB.WithContext(ctx).Model(&models.Job{}).Pluck("job_url", &urls).Error; err != nil {
		return nil, fmt.Errorf("list job urls: %w", err)
	}
	return urls, nil
}

func (r *JobRepository) BulkCreateJobs(ctx context.Context, postings []models.CreateJobInput) (BulkCreateResult, error) {
	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(postings))
	jobs := make([]models.Job, 0, len(postings))
	for _, p := range postings {
		url := strings.TrimSpace(p.JobURL)
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		jobs = append(jobs, newJob(p, url, now))
	}

	var created int64
	if len(jobs) > 0 {
		// Existing URLs are skipped by the unique index rather than a read-then-write.
		res := r.DB.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "job_url"}}, DoNothing: true}).
			CreateInBatches(&jobs, createBatchSize)
		if res.Error != nil {
			return BulkCreateResult{}, fmt.Errorf("bulk create jobs: %w", res.Error)
		}
		created = res.RowsAffected
	}

	return BulkCreateResult{Created: int(created), Skipped: len(postings) - int(created)}, nil
}

func (r *JobRepository) CreateJob(ctx context.Context, input models.CreateJobInput) (*models.Job, error) {
	job := newJob(input, strings.TrimSpace(input.JobURL), time.Now().UTC())
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		return tx.Create(&models.JobEvent{
			JobID:     job.ID,
			EventType: "CREATED",
			Details:   fmt.Sprintf("Job added from %s", job.Source),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) GetUnscoredDiscoveredJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	err := r.DB.WithContext(ctx).
		Where("status = ?", models.StatusDiscovered).
		Order("discovered_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list discovered jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepository) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.DB.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "job", id)
	}
	return &job, nil
}

func (r *JobRepository) GetJobsByIDs(ctx context.Context, ids []string) ([]models.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var jobs []models.Job
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepository) UpdateJob(ctx context.Context, id string, patch JobPatch) (*models.Job, error) {
	var job models.Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return wrapNotFound(err, "job", id)
		}
		previous := job.Status

		if patch.ExpectStatus != nil && previous != *patch.ExpectStatus {
			return fmt.Errorf("job %s is %s, expected %s: %w", id, previous, *patch.ExpectStatus, ErrStatusConflict)
		}

		updates := patch.columns()
		if len(updates) == 0 {
			return nil
		}
		q := tx.Model(&models.Job{}).Where("id = ?", id)
		if patch.ExpectStatus != nil {
			q = q.Where("status = ?", *patch.ExpectStatus)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if patch.ExpectStatus != nil && res.RowsAffected == 0 {
			return fmt.Errorf("job %s is no longer %s: %w", id, *patch.ExpectStatus, ErrStatusConflict)
		}
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return err
		}

		if patch.Status == nil || *patch.Status == previous {
			return nil
		}
		details := patch.EventDetails
		if details == "" {
			details = fmt.Sprintf("Status changed from %s to %s", previous, *patch.Status)
		}
		return tx.Create(&models.JobEvent{
			JobID:     id,
			EventType: "STATUS_CHANGE",
			Details:   details,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	return &job, nil
}

func (p JobPatch) columns() map[string]any {
	updates := map[string]any{}
	if p.Status != nil {
		updates["status"] = *p.Status
	}
	if p.SuitabilityScore != nil {
		updates["suitability_score"] = *p.SuitabilityScore
	}
	if p.SuitabilityReason != nil {
		updates["suitability_reason"] = *p.SuitabilityReason
	}
	if p.TailoredSummary != nil {
		updates["tailored_summary"] = *p.TailoredSummary
	}
	if p.TailoredHeadline != nil {
		updates["tailored_headline"] = *p.TailoredHeadline
	}
	if p.TailoredSkills != nil {
		updates["tailored_skills"] = *p.TailoredSkills
	}
	if p.PDFPath != nil {
		updates["pdf_path"] = *p.PDFPath
	}
	if p.ProcessedAt != nil {
		updates["processed_at"] = *p.ProcessedAt
	}
	if p.AppliedAt != nil {
		updates["applied_at"] = *p.AppliedAt
	}
	return updates
}

func newJob(p models.CreateJobInput, url string, now time.Time) models.Job {
	return models.Job{
		ID:           uuid.NewString(),
		Source:       p.Source,
		SourceJobID:  p.SourceJobID,
		Title:        p.Title,
		Employer:     p.Employer,
		JobURL:       url,
		Location:     p.Location,
		Salary:       p.Salary,
		Description:  p.Description,
		Status:       models.StatusDiscovered,
		DiscoveredAt: now,
	}
}
