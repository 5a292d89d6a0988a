package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all the routes for the parse worker.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/health", api.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/parse", api.ParseHandler)
		v1.POST("/parse/async", api.ParseAsyncHandler)
		v1.GET("/decks/:id", api.GetDeckHandler)
	}
}
