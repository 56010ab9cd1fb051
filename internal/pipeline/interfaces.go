package pipeline

import (
	"context"

	"github.com/justsurfingit/jobops-pipeline/internal/extractor"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/settings"
)

type SettingsProvider interface {
	// Snapshot re-resolves every setting from the store and environment.
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
}

type RegistryProvider interface {
	Initialize(ctx context.Context) (*extractor.Registry, error)
}

type ProfileLoader interface {
	LoadProfile(ctx context.Context) (models.Profile, error)
}

type Scorer interface {
	ScoreJobSuitability(ctx context.Context, job *models.Job, profile models.Profile, model string) (models.Suitability, error)
}

type Tailor interface {
	GenerateTailoring(ctx context.Context, job *models.Job, profile models.Profile, model string) (models.Tailoring, error)
}

type PDFRenderer interface {
	Enabled() bool
	GeneratePDF(ctx context.Context, job *models.Job, tailoring models.Tailoring, profile models.Profile) (string, error)
}

// Notifier delivers webhook events. Failures are logged by the caller and never change
// a run's status.
type Notifier interface {
	Notify(ctx context.Context, url, event string, payload map[string]any) error
}

type EmployerFilter interface {
	FilterBlocked(postings []models.CreateJobInput, keywords []string) ([]models.CreateJobInput, int)
}
