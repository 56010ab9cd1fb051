package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	maxRawHTMLChars     = 20000
	maxDescriptionChars = 8000
)

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is empty")

type LLMService struct {
	Client llms.Model
	Logger *slog.Logger
}

// NewLLMService initializes the Gemini client.
func NewLLMService(ctx context.Context, apiKey, model string, logger *slog.Logger) (*LLMService, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &LLMService{Client: llm, Logger: logger}, nil
}

// ExtractJobDetails takes raw HTML and returns the extracted job as a JSON string.
func (s *LLMService) ExtractJobDetails(ctx context.Context, rawHTML string) (string, error) {
	rawHTML = truncate(rawHTML, maxRawHTMLChars)
	const JobExtractionPrompt = `
You are an expert Job Data Extraction Agent. Your task is to analyze the provided raw HTML/Text from a job posting and extract structured data.

### INSTRUCTIONS:
1. **Analyze** the text to identify the core job details.
2. **Ignore** navigation menus, footers, "similar jobs" lists, and site advertisements.
3. **Format** the output as valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{
    "company_name": "Name of the company",
    "role_title": "Job title",
    "location": "Job location or 'Remote'",
    "description": "A clean summary of the job. Remove HTML tags.",
    "tech_stack": ["Array", "of", "technologies"],
    "salary_range": "The salary string if explicitly mentioned, otherwise null"
}

### CONSTRAINT:
If a piece of information is missing, set the value to null. Do not hallucinate or guess.

### RAW CONTENT:
%s
`
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, fmt.Sprintf(JobExtractionPrompt, rawHTML))
	if err != nil {
		return "", err
	}
	cleaned := stripCodeFence(resp)
	if !json.Valid([]byte(cleaned)) {
		return "", fmt.Errorf("model returned invalid JSON")
	}
	return cleaned, nil
}

// ScoreJobSuitability rates a job 0-100 against the profile. An empty model uses the
// client default.
func (s *LLMService) ScoreJobSuitability(ctx context.Context, job *models.Job, profile models.Profile, model string) (models.Suitability, error) {
	const ScoringPrompt = `
You are a career advisor scoring how well a job posting fits a candidate.

### CANDIDATE PROFILE (JSON):
%s

### JOB:
Title: %s
Employer: %s
Location: %s
Description:
%s

### OUTPUT:
Return valid JSON only, no markdown: {"score": <integer 0-100>, "reason": "<one or two sentences>"}
`
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return models.Suitability{}, fmt.Errorf("encode profile: %w", err)
	}
	prompt := fmt.Sprintf(ScoringPrompt, profileJSON, job.Title, job.Employer, job.Location, truncate(job.Description, maxDescriptionChars))

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt, modelOption(model)...)
	if err != nil {
		return models.Suitability{}, err
	}

	var out models.Suitability
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &out); err != nil {
		return models.Suitability{}, fmt.Errorf("parse score: %w", err)
	}
	out.Score = min(max(out.Score, 0), 100)
	return out, nil
}

// GenerateTailoring drafts the summary, headline and skills used for the tailored resume.
func (s *LLMService) GenerateTailoring(ctx context.Context, job *models.Job, profile models.Profile, model string) (models.Tailoring, error) {
	const TailoringPrompt = `
You are an expert resume writer. Tailor the candidate's resume to the job below.

### CANDIDATE PROFILE (JSON):
%s

### JOB:
Title: %s
Employer: %s
Description:
%s

### OUTPUT:
Return valid JSON only, no markdown:
{"summary": "3-4 sentence professional summary", "headline": "one line headline", "skills": ["most", "relevant", "skills"]}
Only use experience present in the profile. Do not invent employers, titles or dates.
`
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return models.Tailoring{}, fmt.Errorf("encode profile: %w", err)
	}
	prompt := fmt.Sprintf(TailoringPrompt, profileJSON, job.Title, job.Employer, truncate(job.Description, maxDescriptionChars))

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt, modelOption(model)...)
	if err != nil {
		return models.Tailoring{}, err
	}

	var out models.Tailoring
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &out); err != nil {
		return models.Tailoring{}, fmt.Errorf("parse tailoring: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return models.Tailoring{}, fmt.Errorf("model returned an empty summary")
	}
	return out, nil
}

func modelOption(model string) []llms.CallOption {
	if model == "" {
		return nil
	}
	return []llms.CallOption{llms.WithModel(model)}
}

// stripCodeFence removes a ```json ... ``` wrapper the model adds despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
