package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justsurfingit/jobops-pipeline/internal/dtos"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWebhook(secret string) *WebhookService {
	s := NewWebhookService(secret, slog.New(slog.DiscardHandler))
	s.Backoff = time.Millisecond
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestWebhookNotifyPostsEventWithBearer(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := testWebhook("s3cret").Notify(context.Background(), srv.URL, "pipeline.completed", map[string]any{"pipelineRunId": "run-1"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer s3cret", auth)
	assert.Equal(t, "pipeline.completed", got["event"])
	assert.Equal(t, "2026-01-02T03:04:05Z", got["sentAt"])
	assert.Equal(t, "run-1", got["pipelineRunId"])
}

func TestWebhookNotifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, testWebhook("").Notify(context.Background(), srv.URL, "pipeline.failed", nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookNotifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := testWebhook("").Notify(context.Background(), srv.URL, "pipeline.completed", nil)
	assert.ErrorContains(t, err, "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookNotifySkipsBlankURL(t *testing.T) {
	assert.NoError(t, testWebhook("").Notify(context.Background(), "  ", "pipeline.completed", nil))
}

func TestMatcherBlockedKeyword(t *testing.T) {
	m := NewMatcherService()
	keywords := []string{"", "Recruit", "staffing"}

	assert.Equal(t, "Recruit", m.BlockedKeyword("Acme Recruitment Ltd", keywords))
	assert.Equal(t, "staffing", m.BlockedKeyword("GLOBAL STAFFING", keywords))
	assert.Equal(t, "", m.BlockedKeyword("Acme", keywords))
	assert.Equal(t, "", m.BlockedKeyword("", keywords))

	kept, dropped := m.FilterBlocked([]models.CreateJobInput{
		{Employer: "Acme"}, {Employer: "Top Recruiters"}, {Employer: "Beta"},
	}, keywords)
	assert.Equal(t, 1, dropped)
	assert.Len(t, kept, 2)
}

func TestProfileServiceLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"basics":{"name":"Sam"}}`), 0o644))

	profile, err := NewProfileService(path).LoadProfile(context.Background())
	require.NoError(t, err)
	assert.Contains(t, profile, "basics")

	_, err = NewProfileService(filepath.Join(dir, "missing.json")).LoadProfile(context.Background())
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	_, err = NewProfileService(path).LoadProfile(context.Background())
	assert.ErrorContains(t, err, "empty")
}

func TestResumeRendererWritesPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "job-9", req.JobID)
		assert.Equal(t, "Go Engineer", req.Tailoring.Headline)
		_, _ = io.WriteString(w, "%PDF-1.7 fake")
	}))
	defer srv.Close()

	renderer := NewResumeRenderer(srv.URL, t.TempDir())
	require.True(t, renderer.Enabled())

	path, err := renderer.GeneratePDF(context.Background(), &models.Job{ID: "job-9"}, models.Tailoring{Headline: "Go Engineer"}, models.Profile{})
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(content))

	assert.False(t, NewResumeRenderer("", "").Enabled())
}

type recordingJobStore struct {
	repository.JobStore
	created []models.CreateJobInput
}

func (r *recordingJobStore) CreateJob(ctx context.Context, input models.CreateJobInput) (*models.Job, error) {
	r.created = append(r.created, input)
	return &models.Job{ID: "job-1", Source: input.Source, Title: input.Title}, nil
}

func TestJobServiceCreateJob(t *testing.T) {
	store := &recordingJobStore{}
	svc := NewJobService(store)

	job, err := svc.CreateJob(context.Background(), &dtos.JobCreationRequest{
		CompanyName: "Acme",
		Title:       "SRE",
		JobLink:     "https://acme.example/sre",
		Description: "Keep things up.",
		TechStack:   []string{"Go", "Kubernetes"},
	})
	require.NoError(t, err)
	assert.Equal(t, "manual", job.Source)

	require.Len(t, store.created, 1)
	assert.Equal(t, "Acme", store.created[0].Employer)
	assert.Contains(t, store.created[0].Description, "Tech stack: Go, Kubernetes")
}
