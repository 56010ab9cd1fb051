package dtos

type JobExtractionRequest struct {
	RawHTML string `json:"raw_html" binding:"required"`
	URL     string `json:"url"`
}

type JobCreationRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Title       string `json:"role_title" binding:"required"`
	JobLink     string `json:"job_link" binding:"required,url"`
	Description string `json:"description" binding:"required"`

	// Optional Fields
	Source      string   `json:"source"`
	Location    string   `json:"location"`
	SalaryRange string   `json:"salary_range"`
	TechStack   []string `json:"tech_stack"`
}

// BulkJobActionRequest only checks shape. Batch size and eligibility are validated by
// the executor.
type BulkJobActionRequest struct {
	Action string   `json:"action" binding:"required,oneof=skip move_to_ready rescore"`
	JobIDs []string `json:"jobIds" binding:"required,min=1"`
}

type PipelineRunRequest struct {
	Sources             []string `json:"sources"`
	TopN                *int     `json:"topN" binding:"omitempty,min=1,max=100"`
	MinSuitabilityScore *int     `json:"minSuitabilityScore" binding:"omitempty,min=0,max=100"`
	EnableCrawling      *bool    `json:"enableCrawling"`
	EnableScoring       *bool    `json:"enableScoring"`
	EnableImporting     *bool    `json:"enableImporting"`
	EnableAutoTailoring *bool    `json:"enableAutoTailoring"`
}
