package api

import (
	"github.com/semenkulikov/Online-school/internal/monitoring"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", monitoring.PrometheusHandler())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/imports", handler.UploadImport)
		v1.GET("/imports/:run_id", handler.GetImportRun)
		v1.GET("/summary", handler.GetSummary)
		v1.GET("/students/:id/statistic", handler.GetStudentStatistic)
	}
}

// NewRouter builds the engine with the middleware chain every binary uses.
func NewRouter(handler *Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.Use(LoggingMiddleware())
	router.Use(CORSMiddleware(allowedOrigins))
	router.Use(monitoring.MetricsMiddleware())

	SetupRoutes(router, handler)
	return router
}
