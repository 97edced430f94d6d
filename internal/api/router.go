package api

import (
	routes "bim2osm/internal/api/handlers"
	"bim2osm/internal/service/conversion"

	"github.com/gin-gonic/gin"
)

// SetupRouter initializes all application routes
func SetupRouter(r *gin.Engine, config map[string]string, conversionService *conversion.ConversionService) {
	// API group
	api := r.Group("/api")

	// Setup main handlers
	routes.SetupMainHandlers(r.Group(""), config)

	// Setup conversion handlers
	routes.SetupConversionHandlers(api, conversionService)
}
