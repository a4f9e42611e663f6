package handler

import (
	"github.com/erp/docprint/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// PrintRoutes creates the route group for print endpoints.
// renderLimit guards the routes that open a browser tab; it may be a passthrough.
func PrintRoutes(handler *PrintHandler, renderLimit gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("print", "/print")

	// Rendering
	group.POST("/export", renderLimit, handler.Export)
	group.POST("/preview", renderLimit, handler.Preview)

	// Sessions
	sessions := group.Group("sessions", "/sessions")
	sessions.POST("", renderLimit, handler.StartSession)
	sessions.GET("/:id", handler.GetSession)
	sessions.GET("/:id/events", handler.StreamSession)
	sessions.GET("/:id/artifact", handler.SessionArtifact)
	sessions.POST("/:id/complete", handler.CompleteSession)
	sessions.POST("/:id/cancel", handler.CancelSession)

	// Downloads
	group.GET("/downloads/:token", handler.Download)

	// Print jobs
	group.GET("/jobs", handler.ListJobs)
	group.GET("/jobs/:id", handler.GetJob)

	// Reference data
	group.GET("/document-types", handler.GetDocumentTypes)
	group.GET("/paper-sizes", handler.GetPaperSizes)

	return group
}
