package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"gorm.io/gorm"
)

const defaultRunListLimit = 20

type PipelineRunRepository struct {
	DB *gorm.DB
}

func NewPipelineRunRepository(db *gorm.DB) *PipelineRunRepository {
	return &PipelineRunRepository{DB: db}
}

func (r *PipelineRunRepository) CreatePipelineRun(ctx context.Context) (*models.PipelineRun, error) {
	run := models.PipelineRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    models.RunRunning,
	}
	if err := r.DB.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("create pipeline run: %w", err)
	}
	return &run, nil
}

func (r *PipelineRunRepository) UpdatePipelineRun(ctx context.Context, id string, patch RunPatch) error {
	updates := map[string]any{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.CompletedAt != nil {
		updates["completed_at"] = *patch.CompletedAt
	}
	if patch.JobsDiscovered != nil {
		updates["jobs_discovered"] = *patch.JobsDiscovered
	}
	if patch.JobsProcessed != nil {
		updates["jobs_processed"] = *patch.JobsProcessed
	}
	if patch.ErrorMessage != nil {
		updates["error_message"] = *patch.ErrorMessage
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.DB.WithContext(ctx).Model(&models.PipelineRun{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update pipeline run %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("pipeline run %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListPipelineRuns returns the most recent runs first.
func (r *PipelineRunRepository) ListPipelineRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	var runs []models.PipelineRun
	err := r.DB.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	return runs, nil
}
