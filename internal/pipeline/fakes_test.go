package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/justsurfingit/jobops-pipeline/internal/extractor"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/repository"
	"github.com/justsurfingit/jobops-pipeline/internal/settings"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func noEnv(string) (string, bool) { return "", false }

type fakeSettings struct {
	mu        sync.Mutex
	overrides map[string]string
}

func newFakeSettings(overrides map[string]string) *fakeSettings {
	if overrides == nil {
		overrides = map[string]string{}
	}
	return &fakeSettings{overrides: overrides}
}

func (f *fakeSettings) Snapshot(ctx context.Context) (*settings.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return settings.NewSnapshot(f.overrides, noEnv), nil
}

type runUpdate struct {
	ID    string
	Patch repository.RunPatch
}

type fakeRuns struct {
	mu      sync.Mutex
	created int
	updates []runUpdate
}

func (f *fakeRuns) CreatePipelineRun(ctx context.Context) (*models.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return &models.PipelineRun{ID: fmt.Sprintf("run-%d", f.created), Status: models.RunRunning}, nil
}

func (f *fakeRuns) UpdatePipelineRun(ctx context.Context, id string, patch repository.RunPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, runUpdate{ID: id, Patch: patch})
	return nil
}

func (f *fakeRuns) ListPipelineRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	return nil, nil
}

func (f *fakeRuns) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// final returns the status patch that closed the run.
func (f *fakeRuns) final() (repository.RunPatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].Patch.Status != nil {
			return f.updates[i].Patch, true
		}
	}
	return repository.RunPatch{}, false
}

func (f *fakeRuns) discoveredUpdates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.updates {
		if u.Patch.JobsDiscovered != nil {
			n++
		}
	}
	return n
}

// fakeJobs is an in-memory job store.
type fakeJobs struct {
	mu         sync.Mutex
	jobs       map[string]*models.Job
	order      []string
	bulkCalls  int
	updates    []string
	failUpdate map[string]error
}

func newFakeJobs(jobs ...models.Job) *fakeJobs {
	f := &fakeJobs{jobs: map[string]*models.Job{}, failUpdate: map[string]error{}}
	for _, j := range jobs {
		f.put(j)
	}
	return f
}

func (f *fakeJobs) put(j models.Job) {
	if _, ok := f.jobs[j.ID]; !ok {
		f.order = append(f.order, j.ID)
	}
	job := j
	f.jobs[j.ID] = &job
}

func (f *fakeJobs) GetAllJobURLs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var urls []string
	for _, id := range f.order {
		urls = append(urls, f.jobs[id].JobURL)
	}
	return urls, nil
}

func (f *fakeJobs) BulkCreateJobs(ctx context.Context, postings []models.CreateJobInput) (repository.BulkCreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	existing := map[string]bool{}
	for _, j := range f.jobs {
		existing[j.JobURL] = true
	}
	var res repository.BulkCreateResult
	for _, p := range postings {
		if existing[p.JobURL] {
			res.Skipped++
			continue
		}
		existing[p.JobURL] = true
		f.put(models.Job{
			ID:       fmt.Sprintf("job-%d", len(f.order)+1),
			Source:   p.Source,
			Title:    p.Title,
			Employer: p.Employer,
			JobURL:   p.JobURL,
			Status:   models.StatusDiscovered,
		})
		res.Created++
	}
	return res, nil
}

func (f *fakeJobs) CreateJob(ctx context.Context, input models.CreateJobInput) (*models.Job, error) {
	return nil, errors.New("not used")
}

func (f *fakeJobs) GetUnscoredDiscoveredJobs(ctx context.Context) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Job
	for _, id := range f.order {
		if j := f.jobs[id]; j.Status == models.StatusDiscovered {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobs) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, repository.ErrNotFound)
	}
	c := *j
	return &c, nil
}

func (f *fakeJobs) GetJobsByIDs(ctx context.Context, ids []string) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Job
	for _, id := range ids {
		if j, ok := f.jobs[id]; ok {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobs) UpdateJob(ctx context.Context, id string, patch repository.JobPatch) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUpdate[id]; err != nil {
		return nil, err
	}
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, repository.ErrNotFound)
	}
	if patch.ExpectStatus != nil && j.Status != *patch.ExpectStatus {
		return nil, fmt.Errorf("job %s is %s: %w", id, j.Status, repository.ErrStatusConflict)
	}
	if patch.Status != nil {
		j.Status = *patch.Status
		f.updates = append(f.updates, id+":"+string(*patch.Status))
	}
	if patch.SuitabilityScore != nil {
		v := *patch.SuitabilityScore
		j.SuitabilityScore = &v
	}
	if patch.SuitabilityReason != nil {
		j.SuitabilityReason = *patch.SuitabilityReason
	}
	if patch.TailoredSummary != nil {
		j.TailoredSummary = *patch.TailoredSummary
	}
	if patch.TailoredSkills != nil {
		j.TailoredSkills = *patch.TailoredSkills
	}
	if patch.PDFPath != nil {
		v := *patch.PDFPath
		j.PDFPath = &v
	}
	c := *j
	return &c, nil
}

func (f *fakeJobs) status(id string) models.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Status
}

func (f *fakeJobs) bulkCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bulkCalls
}

type fakeProfiles struct {
	err error
}

func (f fakeProfiles) LoadProfile(ctx context.Context) (models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return models.Profile{"name": "Sam"}, nil
}

// fakeScorer scores by title: "<anything> 80" scores 80.
type fakeScorer struct {
	mu     sync.Mutex
	calls  []string
	models []string
	fail   map[string]bool
}

func (f *fakeScorer) ScoreJobSuitability(ctx context.Context, job *models.Job, profile models.Profile, model string) (models.Suitability, error) {
	f.mu.Lock()
	f.calls = append(f.calls, job.ID)
	f.models = append(f.models, model)
	fail := f.fail[job.ID]
	f.mu.Unlock()
	if fail {
		return models.Suitability{}, errors.New("model unavailable")
	}
	var score float64
	fields := strings.Fields(job.Title)
	_, _ = fmt.Sscanf(fields[len(fields)-1], "%g", &score)
	return models.Suitability{Score: score, Reason: "fit"}, nil
}

func (f *fakeScorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeTailor struct {
	err error
}

func (f fakeTailor) GenerateTailoring(ctx context.Context, job *models.Job, profile models.Profile, model string) (models.Tailoring, error) {
	if f.err != nil {
		return models.Tailoring{}, f.err
	}
	return models.Tailoring{Summary: "summary for " + job.Title, Headline: job.Title, Skills: []string{"Go"}}, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	enabled bool
	calls   int
	err     error
}

func (f *fakeRenderer) Enabled() bool { return f.enabled }

func (f *fakeRenderer) GeneratePDF(ctx context.Context, job *models.Job, tailoring models.Tailoring, profile models.Profile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "/pdfs/" + job.ID + ".pdf", nil
}

type notification struct {
	URL     string
	Event   string
	Payload map[string]any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notification
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, url, event string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notification{URL: url, Event: event, Payload: payload})
	return f.err
}

func (f *fakeNotifier) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.Event)
	}
	return out
}

// recordingRunner returns fixed postings and remembers how it was called.
type recordingRunner struct {
	mu       sync.Mutex
	calls    [][]string
	jobs     []models.CreateJobInput
	err      error
	panicMsg string
	// block, when set, holds the runner until it is closed.
	block       chan struct{}
	entered     chan struct{}
	enteredOnce sync.Once
}

func (r *recordingRunner) Run(ctx context.Context, rc extractor.RunContext) (extractor.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), rc.SelectedSources...))
	r.mu.Unlock()

	if r.entered != nil {
		r.enteredOnce.Do(func() { close(r.entered) })
	}
	if r.block != nil {
		<-r.block
	}
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	if r.err != nil {
		return extractor.Result{}, r.err
	}
	return extractor.Result{Jobs: r.jobs}, nil
}

func (r *recordingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingRunner) selected() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type testExtractor struct {
	id      string
	sources []string
	runner  *recordingRunner
	envVars []string
}

// newRegistry writes one manifest per extractor and returns a loader over them.
func newRegistry(t *testing.T, extractors ...testExtractor) *extractor.Loader {
	t.Helper()
	root := t.TempDir()
	runners := map[string]extractor.Runner{}
	for _, e := range extractors {
		content := "id: " + e.id + "\ndisplayName: " + e.id + "\nrunner: " + e.id +
			"\nprovidesSources: [" + strings.Join(e.sources, ", ") + "]\n"
		if len(e.envVars) > 0 {
			content += "requiredEnvVars: [" + strings.Join(e.envVars, ", ") + "]\n"
		}
		dir := filepath.Join(root, e.id)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(content), 0o644))
		runners[e.id] = e.runner
	}
	return extractor.NewLoader(root, runners, true, quietLogger())
}

func posting(source, title, url string) models.CreateJobInput {
	return models.CreateJobInput{Source: source, Title: title, Employer: "Acme", JobURL: url}
}

type harness struct {
	orch     *Orchestrator
	jobs     *fakeJobs
	runs     *fakeRuns
	settings *fakeSettings
	scorer   *fakeScorer
	renderer *fakeRenderer
	notifier *fakeNotifier
}

func newHarness(t *testing.T, overrides map[string]string, extractors ...testExtractor) *harness {
	t.Helper()
	h := &harness{
		jobs:     newFakeJobs(),
		runs:     &fakeRuns{},
		settings: newFakeSettings(overrides),
		scorer:   &fakeScorer{},
		renderer: &fakeRenderer{},
		notifier: &fakeNotifier{},
	}
	processor := NewProcessor(h.jobs, h.settings, fakeProfiles{}, fakeTailor{}, h.renderer, quietLogger())
	h.orch = New(Deps{
		Jobs:     h.jobs,
		Runs:     h.runs,
		Settings: h.settings,
		Registry: newRegistry(t, extractors...),
		Profiles: fakeProfiles{},
		Scorer:   h.scorer,
		Process:  processor,
		Notifier: h.notifier,
		Logger:   quietLogger(),
	})
	h.orch.lookupEnv = noEnv
	return h
}
