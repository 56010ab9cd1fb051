package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/jobops-pipeline/internal/dtos"
	"github.com/justsurfingit/jobops-pipeline/internal/extractor"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/pipeline"
)

type PipelineController interface {
	Start(ctx context.Context, opts pipeline.RunOptions) (<-chan pipeline.Result, error)
	RequestCancel() pipeline.CancelResult
	Status() pipeline.Status
}

type RunLister interface {
	ListPipelineRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

type PipelineHandler struct {
	Pipeline      PipelineController
	Runs          RunLister
	Registry      pipeline.RegistryProvider
	WebhookSecret string
	Logger        *slog.Logger
}

func NewPipelineHandler(p PipelineController, runs RunLister, registry pipeline.RegistryProvider, webhookSecret string, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		Pipeline:      p,
		Runs:          runs,
		Registry:      registry,
		WebhookSecret: webhookSecret,
		Logger:        logger,
	}
}

// Run is POST /pipeline/run. The run outlives the request.
func (h *PipelineHandler) Run(c *gin.Context) {
	var req dtos.PipelineRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
			return
		}
	}
	h.start(c, runOptions(req))
}

// Trigger is POST /webhook/trigger for external schedulers.
func (h *PipelineHandler) Trigger(c *gin.Context) {
	if h.WebhookSecret != "" {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.WebhookSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}
	h.start(c, pipeline.RunOptions{})
}

func (h *PipelineHandler) start(c *gin.Context, opts pipeline.RunOptions) {
	_, err := h.Pipeline.Start(context.WithoutCancel(c.Request.Context()), opts)
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.Logger.Error("failed to start pipeline", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start pipeline: " + err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "Pipeline started"})
}

func (h *PipelineHandler) Cancel(c *gin.Context) {
	res := h.Pipeline.RequestCancel()
	if !res.Accepted {
		c.JSON(http.StatusConflict, gin.H{"error": "No pipeline is running", "data": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *PipelineHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.Pipeline.Status()})
}

func (h *PipelineHandler) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}
	runs, err := h.Runs.ListPipelineRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pipeline runs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": runs})
}

type extractorView struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"displayName"`
	ProvidesSources []string `json:"providesSources"`
	RequiredEnvVars []string `json:"requiredEnvVars"`
}

func (h *PipelineHandler) ListExtractors(c *gin.Context) {
	reg, err := h.Registry.Initialize(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load extractors: " + err.Error()})
		return
	}
	out := []extractorView{}
	for _, m := range reg.Manifests() {
		out = append(out, viewOf(m))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

func viewOf(m extractor.Manifest) extractorView {
	return extractorView{
		ID:              m.ID,
		DisplayName:     m.DisplayName,
		ProvidesSources: m.ProvidesSources,
		RequiredEnvVars: m.RequiredEnvVars,
	}
}

func runOptions(req dtos.PipelineRunRequest) pipeline.RunOptions {
	return pipeline.RunOptions{
		Sources:             req.Sources,
		TopN:                req.TopN,
		MinSuitabilityScore: req.MinSuitabilityScore,
		EnableCrawling:      req.EnableCrawling,
		EnableImporting:     req.EnableImporting,
		EnableScoring:       req.EnableScoring,
		EnableAutoTailoring: req.EnableAutoTailoring,
	}
}
