package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
)

// ResumeRenderer sends tailored content to an external PDF rendering service and stores
// the returned document under OutputDir.
type ResumeRenderer struct {
	URL       string
	OutputDir string
	Client    *http.Client
}

func NewResumeRenderer(url, outputDir string) *ResumeRenderer {
	return &ResumeRenderer{
		URL:       strings.TrimSpace(url),
		OutputDir: outputDir,
		Client:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (r *ResumeRenderer) Enabled() bool {
	return r != nil && r.URL != ""
}

type renderRequest struct {
	JobID     string           `json:"jobId"`
	Job       *models.Job      `json:"job"`
	Profile   models.Profile   `json:"profile"`
	Tailoring models.Tailoring `json:"tailoring"`
}

// GeneratePDF returns the path of the written PDF.
func (r *ResumeRenderer) GeneratePDF(ctx context.Context, job *models.Job, tailoring models.Tailoring, profile models.Profile) (string, error) {
	body, err := json.Marshal(renderRequest{JobID: job.ID, Job: job, Profile: profile, Tailoring: tailoring})
	if err != nil {
		return "", fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("render resume: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("render resume: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create pdf dir: %w", err)
	}
	path := filepath.Join(r.OutputDir, "resume_"+job.ID+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create pdf: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("write pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}
