package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/jobops-pipeline/internal/dtos"
	"github.com/justsurfingit/jobops-pipeline/internal/jobaction"
)

const heartbeatInterval = 15 * time.Second

type ActionRunner interface {
	Execute(ctx context.Context, req jobaction.Request) (jobaction.Response, error)
	Stream(ctx context.Context, req jobaction.Request) (<-chan jobaction.Event, error)
}

type ActionHandler struct {
	Actions   ActionRunner
	Logger    *slog.Logger
	heartbeat time.Duration
}

func NewActionHandler(actions ActionRunner, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{Actions: actions, Logger: logger, heartbeat: heartbeatInterval}
}

// Run is POST /jobs/actions and answers with the final tally.
func (h *ActionHandler) Run(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	resp, err := h.Actions.Execute(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// Stream is POST /jobs/actions/stream. Each event is written as an SSE data line.
// Closing the connection cancels the work that has not started yet.
func (h *ActionHandler) Stream(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	events, err := h.Actions.Stream(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			if err := sse.Encode(c.Writer, sse.Event{Data: ev}); err != nil {
				h.Logger.Info("client disconnected while writing action stream", "action", req.Action, "error", err)
				return
			}
			c.Writer.Flush()
			if ev.Type == jobaction.EventError {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *ActionHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, jobaction.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Logger.Error("job action failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Job action failed: " + err.Error()})
}

func bindAction(c *gin.Context) (jobaction.Request, bool) {
	var body dtos.BulkJobActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job action request: " + err.Error()})
		return jobaction.Request{}, false
	}
	return jobaction.Request{Action: jobaction.Action(body.Action), JobIDs: body.JobIDs}, true
}
