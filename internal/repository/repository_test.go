//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/justsurfingit/jobops-pipeline/internal/database"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

var testDB *gorm.DB

// TestMain starts a throwaway Postgres for the repository tests.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "jobops",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	dsn := fmt.Sprintf("host=%s user=postgres password=password dbname=jobops port=%s sslmode=disable", host, port.Port())
	testDB, err = database.Connect(dsn, slog.New(slog.DiscardHandler))
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	for _, table := range []string{"job_events", "jobs", "pipeline_runs", "settings"} {
		require.NoError(t, testDB.Exec("DELETE FROM "+table).Error)
	}
}

func posting(url string) models.CreateJobInput {
	return models.CreateJobInput{Source: "remotive", Title: "Go Engineer", Employer: "Acme", JobURL: url}
}

func TestBulkCreateJobsSkipsDuplicates(t *testing.T) {
	resetTables(t)
	repo := NewJobRepository(testDB)
	ctx := context.Background()

	res, err := repo.BulkCreateJobs(ctx, []models.CreateJobInput{
		posting("https://jobs.example.com/1"),
		posting("https://jobs.example.com/2"),
		posting("https://jobs.example.com/1"),
	})
	require.NoError(t, err)
	assert.Equal(t, BulkCreateResult{Created: 2, Skipped: 1}, res)

	res, err = repo.BulkCreateJobs(ctx, []models.CreateJobInput{
		posting("https://jobs.example.com/2"),
		posting("https://jobs.example.com/3"),
	})
	require.NoError(t, err)
	assert.Equal(t, BulkCreateResult{Created: 1, Skipped: 1}, res)

	urls, err := repo.GetAllJobURLs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://jobs.example.com/1",
		"https://jobs.example.com/2",
		"https://jobs.example.com/3",
	}, urls)
}

func TestUpdateJobRecordsStatusEvent(t *testing.T) {
	resetTables(t)
	repo := NewJobRepository(testDB)
	ctx := context.Background()

	job, err := repo.CreateJob(ctx, posting("https://jobs.example.com/manual"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDiscovered, job.Status)

	ready := models.StatusReady
	score := 81.5
	updated, err := repo.UpdateJob(ctx, job.ID, JobPatch{Status: &ready, SuitabilityScore: &score})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, updated.Status)
	require.NotNil(t, updated.SuitabilityScore)
	assert.InDelta(t, 81.5, *updated.SuitabilityScore, 0.001)

	var events []models.JobEvent
	require.NoError(t, testDB.Where("job_id = ? AND event_type = ?", job.ID, "STATUS_CHANGE").Find(&events).Error)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Details, "discovered to ready")

	discovered, err := repo.GetUnscoredDiscoveredJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, discovered)
}

func TestUpdateJobExpectStatus(t *testing.T) {
	resetTables(t)
	repo := NewJobRepository(testDB)
	ctx := context.Background()

	job, err := repo.CreateJob(ctx, posting("https://jobs.example.com/claim"))
	require.NoError(t, err)

	discovered := models.StatusDiscovered
	processing := models.StatusProcessing
	claim := JobPatch{Status: &processing, ExpectStatus: &discovered}

	_, err = repo.UpdateJob(ctx, job.ID, claim)
	require.NoError(t, err)

	_, err = repo.UpdateJob(ctx, job.ID, claim)
	assert.ErrorIs(t, err, ErrStatusConflict)

	current, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, current.Status)
}

func TestGetJobByIDNotFound(t *testing.T) {
	resetTables(t)
	_, err := NewJobRepository(testDB).GetJobByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSettingsRoundTrip(t *testing.T) {
	resetTables(t)
	repo := NewSettingsRepository(testDB)
	ctx := context.Background()

	v, err := repo.GetSetting(ctx, "pipelineTopN")
	require.NoError(t, err)
	assert.Nil(t, v)

	five, seven := "5", "7"
	require.NoError(t, repo.SetSetting(ctx, "pipelineTopN", &five))
	require.NoError(t, repo.SetSetting(ctx, "pipelineTopN", &seven))

	all, err := repo.GetAllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pipelineTopN": "7"}, all)

	require.NoError(t, repo.SetSetting(ctx, "pipelineTopN", nil))
	v, err = repo.GetSetting(ctx, "pipelineTopN")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPipelineRunLifecycle(t *testing.T) {
	resetTables(t)
	repo := NewPipelineRunRepository(testDB)
	ctx := context.Background()

	run, err := repo.CreatePipelineRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, run.Status)

	status := models.RunCompleted
	now := time.Now().UTC()
	discovered, processed := 12, 3
	require.NoError(t, repo.UpdatePipelineRun(ctx, run.ID, RunPatch{
		Status:         &status,
		CompletedAt:    &now,
		JobsDiscovered: &discovered,
		JobsProcessed:  &processed,
	}))

	runs, err := repo.ListPipelineRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunCompleted, runs[0].Status)
	assert.Equal(t, 12, runs[0].JobsDiscovered)
	assert.NotNil(t, runs[0].CompletedAt)

	err = repo.UpdatePipelineRun(ctx, "missing", RunPatch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}
