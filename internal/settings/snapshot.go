package settings

import (
	"maps"
)

// Snapshot is the effective configuration at one point in time. Callers take a fresh
// snapshot per stage, so configuration edits land at the next stage boundary.
type Snapshot struct {
	overrides map[string]string
	env       EnvLookup

	Model          string
	ModelScorer    string
	ModelTailoring string

	SearchTerms            []string
	BlockedCompanyKeywords []string

	AutoSkipScoreThreshold      int
	PipelineTopN                int
	PipelineMinSuitabilityScore int
	PipelineWebhookURL          string
	PDFGenerationEnabled        bool
	PipelineScheduleEnabled     bool
	PipelineScheduleHour        int
}

func NewSnapshot(overrides map[string]string, env EnvLookup) *Snapshot {
	s := &Snapshot{overrides: maps.Clone(overrides), env: env}
	if s.overrides == nil {
		s.overrides = map[string]string{}
	}

	s.Model = resolve(s, Model)
	s.ModelScorer = orDefault(resolve(s, ModelScorer), s.Model)
	s.ModelTailoring = orDefault(resolve(s, ModelTailoring), s.Model)
	s.SearchTerms = resolve(s, SearchTerms)
	s.BlockedCompanyKeywords = resolve(s, BlockedCompanyKeywords)
	s.AutoSkipScoreThreshold = resolve(s, AutoSkipScoreThreshold)
	s.PipelineTopN = resolve(s, PipelineTopN)
	s.PipelineMinSuitabilityScore = resolve(s, PipelineMinSuitabilityScore)
	s.PipelineWebhookURL = resolve(s, PipelineWebhookURL)
	s.PDFGenerationEnabled = resolve(s, PDFGenerationEnabled)
	s.PipelineScheduleEnabled = resolve(s, PipelineScheduleEnabled)
	s.PipelineScheduleHour = resolve(s, PipelineScheduleHour)
	return s
}

func (s *Snapshot) SourceEnabled(source string) bool {
	return resolve(s, SourceEnabled(source))
}

func (s *Snapshot) MaxJobs(source string) int {
	return resolve(s, SourceMaxJobs(source))
}

// Raw returns the stored override for key, if any.
func (s *Snapshot) Raw(key string) (string, bool) {
	v, ok := s.overrides[key]
	return v, ok
}

func resolve[T any](s *Snapshot, def Definition[T]) T {
	var raw *string
	if v, ok := s.overrides[def.Key]; ok {
		raw = &v
	}
	return def.Resolve(raw, s.env).Value
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
