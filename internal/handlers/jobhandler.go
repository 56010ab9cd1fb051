package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/jobops-pipeline/internal/dtos"
	"github.com/justsurfingit/jobops-pipeline/internal/models"
)

type JobExtractor interface {
	ExtractJobDetails(ctx context.Context, rawHTML string) (string, error)
}

type JobCreator interface {
	CreateJob(ctx context.Context, req *dtos.JobCreationRequest) (*models.Job, error)
}

type JobHandler struct {
	LLMService JobExtractor
	JobService JobCreator
}

// NewJobHandler creates the handler with dependencies
func NewJobHandler(llm JobExtractor, j JobCreator) *JobHandler {
	return &JobHandler{LLMService: llm,
		JobService: j,
	}
}

// ParseJob is the POST /jobs/extract endpoint
func (h *JobHandler) ParseJob(c *gin.Context) {
	var req dtos.JobExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	if h.LLMService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI extraction is not configured"})
		return
	}
	extractedJSON, err := h.LLMService.ExtractJobDetails(c.Request.Context(), req.RawHTML)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI Extraction failed: " + err.Error()})
		return
	}

	// RawMessage keeps the model's JSON from being escaped as a string.
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    json.RawMessage(extractedJSON),
	})
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dtos.JobCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	job, err := h.JobService.CreateJob(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, job)
}
