// Package feed implements a generic runner for job boards that publish a JSON feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/justsurfingit/jobops-pipeline/internal/extractor"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
)

const (
	defaultItemsKey = "jobs"
	maxBodyBytes    = 10 << 20
)

var fieldKeys = map[string][]string{
	"id":          {"id", "slug", "job_id"},
	"title":       {"title", "role_title", "position"},
	"employer":    {"company_name", "company", "employer"},
	"url":         {"url", "job_url", "link", "apply_url"},
	"location":    {"candidate_required_location", "location"},
	"salary":      {"salary", "salary_range"},
	"description": {"description", "summary"},
}

// Runner options, all read from the manifest:
//
//	url          feed endpoint (required)
//	itemsKey     key holding the postings array, "jobs" by default
//	searchParam  query parameter carrying the search term; without it terms filter titles locally
//	limitParam   query parameter carrying the per-term limit
type Runner struct {
	Client *http.Client
}

func New(client *http.Client) *Runner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Runner{Client: client}
}

func (r *Runner) Run(ctx context.Context, rc extractor.RunContext) (extractor.Result, error) {
	endpoint := stringOption(rc.Options, "url")
	if endpoint == "" {
		return extractor.Result{}, fmt.Errorf("feed runner: url option is required")
	}
	itemsKey := stringOption(rc.Options, "itemsKey")
	if itemsKey == "" {
		itemsKey = defaultItemsKey
	}
	searchParam := stringOption(rc.Options, "searchParam")
	limitParam := stringOption(rc.Options, "limitParam")

	maxJobs := 50
	if rc.Settings != nil {
		maxJobs = rc.Settings.MaxJobs(rc.Source)
	}

	terms := rc.SearchTerms
	if len(terms) == 0 {
		terms = []string{""}
	}

	seen := map[string]struct{}{}
	var jobs []models.CreateJobInput
	for _, term := range terms {
		if rc.Cancelled() {
			break
		}
		rc.Report(extractor.Progress{Phase: "fetching", Term: term, JobsFound: len(jobs)})

		items, err := r.fetch(ctx, endpoint, itemsKey, searchParam, limitParam, term, maxJobs)
		if err != nil {
			return extractor.Result{}, fmt.Errorf("fetch %q: %w", term, err)
		}

		taken := 0
		for _, item := range items {
			if taken >= maxJobs {
				break
			}
			job, ok := toPosting(item, rc.Source)
			if !ok {
				continue
			}
			if searchParam == "" && !matchesTerm(job.Title, term) {
				continue
			}
			if _, dup := seen[job.JobURL]; dup {
				continue
			}
			seen[job.JobURL] = struct{}{}
			jobs = append(jobs, job)
			taken++
		}
	}

	rc.Report(extractor.Progress{Phase: "done", JobsFound: len(jobs)})
	return extractor.Result{Jobs: jobs}, nil
}

func (r *Runner) fetch(ctx context.Context, endpoint, itemsKey, searchParam, limitParam, term string, limit int) ([]map[string]any, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if searchParam != "" && term != "" {
		q.Set(searchParam, term)
	}
	if limitParam != "" {
		q.Set(limitParam, strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	raw, ok := payload[itemsKey]
	if !ok {
		return nil, fmt.Errorf("feed has no %q array", itemsKey)
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %q: %w", itemsKey, err)
	}
	return items, nil
}

func toPosting(item map[string]any, source string) (models.CreateJobInput, bool) {
	job := models.CreateJobInput{
		Source:      source,
		SourceJobID: field(item, "id"),
		Title:       field(item, "title"),
		Employer:    field(item, "employer"),
		JobURL:      field(item, "url"),
		Location:    field(item, "location"),
		Salary:      field(item, "salary"),
		Description: field(item, "description"),
	}
	return job, job.Title != "" && job.JobURL != ""
}

func field(item map[string]any, name string) string {
	for _, key := range fieldKeys[name] {
		switch v := item[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func matchesTerm(title, term string) bool {
	if term == "" {
		return true
	}
	title = strings.ToLower(title)
	for _, word := range strings.Fields(strings.ToLower(term)) {
		if !strings.Contains(title, word) {
			return false
		}
	}
	return true
}

func stringOption(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return strings.TrimSpace(s)
}
