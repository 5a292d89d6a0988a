package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all the routes for the nlp worker.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/health", api.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/detect-structure", api.DetectStructureHandler)
		v1.POST("/detect-structure/async", api.DetectStructureAsyncHandler)
		v1.GET("/decks/:id/structure", api.GetStructureHandler)
		v1.GET("/decks/:id/kpis", api.GetKPIsHandler)
	}
}
