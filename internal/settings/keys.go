package settings

import (
	"strings"
)

var (
	Model          = String("model", []string{"MODEL"}, "gemini-2.5-flash")
	ModelScorer    = String("modelScorer", nil, "")
	ModelTailoring = String("modelTailoring", nil, "")

	SearchTerms            = List("searchTerms", "JOBSPY_SEARCH_TERMS", "|", []string{"web developer"})
	BlockedCompanyKeywords = List("blockedCompanyKeywords", "", "", []string{})

	UkvisajobsMaxJobs         = Number("ukvisajobsMaxJobs", "UKVISAJOBS_MAX_JOBS", 50, 1, 1000)
	AdzunaMaxJobsPerTerm      = Number("adzunaMaxJobsPerTerm", "ADZUNA_MAX_JOBS_PER_TERM", 50, 1, 1000)
	GradcrackerMaxJobsPerTerm = Number("gradcrackerMaxJobsPerTerm", "GRADCRACKER_MAX_JOBS_PER_TERM", 50, 1, 1000)

	AutoSkipScoreThreshold      = Number("autoSkipScoreThreshold", "", 0, 0, 100)
	PipelineTopN                = Number("pipelineTopN", "PIPELINE_TOP_N", 10, 1, 100)
	PipelineMinSuitabilityScore = Number("pipelineMinSuitabilityScore", "PIPELINE_MIN_SUITABILITY_SCORE", 50, 0, 100)
	PipelineWebhookURL          = String("pipelineWebhookUrl", []string{"PIPELINE_WEBHOOK_URL", "WEBHOOK_URL"}, "")
	PDFGenerationEnabled        = Bool("pdfGenerationEnabled", "PDF_GENERATION_ENABLED", true)
	PipelineScheduleEnabled     = Bool("pipelineScheduleEnabled", "PIPELINE_SCHEDULE_ENABLED", false)
	PipelineScheduleHour        = Number("pipelineScheduleHour", "PIPELINE_SCHEDULE_HOUR", 6, 0, 23)
)

const (
	enabledSuffix = "Enabled"
	maxJobsSuffix = "MaxJobsPerTerm"
)

var known = map[string]Setting{}

func init() {
	for _, s := range []Setting{
		Model, ModelScorer, ModelTailoring,
		SearchTerms, BlockedCompanyKeywords,
		UkvisajobsMaxJobs, AdzunaMaxJobsPerTerm, GradcrackerMaxJobsPerTerm,
		AutoSkipScoreThreshold, PipelineTopN, PipelineMinSuitabilityScore,
		PipelineWebhookURL, PDFGenerationEnabled,
		PipelineScheduleEnabled, PipelineScheduleHour,
	} {
		known[s.SettingKey()] = s
	}
}

// SourceEnabled is the per-source scanner flag, e.g. "linkedinEnabled".
func SourceEnabled(source string) Definition[bool] {
	return Bool(source+enabledSuffix, envName(source)+"_ENABLED", true)
}

// SourceMaxJobs is the per-source result limit. A few sources keep their historical key.
func SourceMaxJobs(source string) Definition[int] {
	switch source {
	case "ukvisajobs":
		return UkvisajobsMaxJobs
	case "adzuna":
		return AdzunaMaxJobsPerTerm
	case "gradcracker":
		return GradcrackerMaxJobsPerTerm
	}
	return Number(source+maxJobsSuffix, envName(source)+"_MAX_JOBS_PER_TERM", 50, 1, 1000)
}

// Lookup finds the definition behind a stored key, including per-source keys.
func Lookup(key string) (Setting, bool) {
	if s, ok := known[key]; ok {
		return s, true
	}
	if source, ok := strings.CutSuffix(key, enabledSuffix); ok && source != "" {
		return SourceEnabled(source), true
	}
	if source, ok := strings.CutSuffix(key, maxJobsSuffix); ok && source != "" {
		return SourceMaxJobs(source), true
	}
	return nil, false
}

func envName(source string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(source))
}
