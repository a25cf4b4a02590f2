package api

import (
	"github.com/gin-gonic/gin"

	"github.com/datacite/lupo-sub003/internal/connection"
)

// memoMiddleware scopes connection search reuse to one request.
func memoMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(connection.WithMemo(c.Request.Context()))
		c.Next()
	}
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, handler *Handler) {
	v1 := router.Group("/api/v1")
	v1.Use(memoMiddleware())
	{
		v1.GET("/connections/:name", handler.Connection)
		v1.POST("/query", handler.Query)
		v1.GET("/works/*id", handler.Work)
		v1.GET("/relations", handler.Relation)

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", handler.EnqueueJob)
			jobs.GET("", handler.ListJobs)
			jobs.GET("/operations", handler.Operations)
			jobs.GET("/stats", handler.JobStats)
			jobs.GET("/:id", handler.GetJob)
		}
	}
}
