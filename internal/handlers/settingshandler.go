package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/jobops-pipeline/internal/settings"
)

type SettingsEditor interface {
	Describe(ctx context.Context, key string) (settings.Description, error)
	Set(ctx context.Context, key, raw string) (string, error)
	Clear(ctx context.Context, key string) error
}

type SettingsHandler struct {
	Settings SettingsEditor
}

func NewSettingsHandler(s SettingsEditor) *SettingsHandler {
	return &SettingsHandler{Settings: s}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	desc, err := h.Settings.Describe(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": desc})
}

type settingValue struct {
	Value *string `json:"value"`
}

// Put stores an override. A null value clears it.
func (h *SettingsHandler) Put(c *gin.Context) {
	key := c.Param("key")
	var body settingValue
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	if body.Value == nil {
		if err := h.Settings.Clear(c.Request.Context(), key); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else if _, err := h.Settings.Set(c.Request.Context(), key, *body.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Get(c)
}
