package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Router struct {
	Jobs     *JobHandler
	Pipeline *PipelineHandler
	Actions  *ActionHandler
	Settings *SettingsHandler
}

// Engine wires every route under /api/v1.
func (r Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(config))

	api := engine.Group("/api/v1")
	{
		api.GET("/health", HealthCheck)

		api.POST("/jobs/extract", r.Jobs.ParseJob)
		api.POST("/jobs", r.Jobs.CreateJob)
		api.POST("/jobs/actions", r.Actions.Run)
		api.POST("/jobs/actions/stream", r.Actions.Stream)

		api.POST("/pipeline/run", r.Pipeline.Run)
		api.POST("/pipeline/cancel", r.Pipeline.Cancel)
		api.GET("/pipeline/status", r.Pipeline.Status)
		api.GET("/pipeline/runs", r.Pipeline.ListRuns)
		api.POST("/webhook/trigger", r.Pipeline.Trigger)
		api.GET("/extractors", r.Pipeline.ListExtractors)

		api.GET("/settings/:key", r.Settings.Get)
		api.PUT("/settings/:key", r.Settings.Put)
	}
	return engine
}
