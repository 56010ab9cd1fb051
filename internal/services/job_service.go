package services

import (
	"context"
	"strings"

	"github.com/justsurfingit/jobops-pipeline/internal/dtos"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
)

const manualSource = "manual"

type JobService struct {
	Jobs repository.JobStore
}

func NewJobService(jobs repository.JobStore) *JobService {
	return &JobService{
		Jobs: jobs,
	}
}

// CreateJob stores a job entered by hand. It starts as discovered so the next pipeline
// run scores it like any other posting.
func (s *JobService) CreateJob(ctx context.Context, req *dtos.JobCreationRequest) (*models.Job, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = manualSource
	}
	description := req.Description
	if len(req.TechStack) > 0 {
		description += "\n\nTech stack: " + strings.Join(req.TechStack, ", ")
	}
	return s.Jobs.CreateJob(ctx, models.CreateJobInput{
		Source:      source,
		Title:       req.Title,
		Employer:    req.CompanyName,
		JobURL:      req.JobLink,
		Location:    req.Location,
		Salary:      req.SalaryRange,
		Description: description,
	})
}
