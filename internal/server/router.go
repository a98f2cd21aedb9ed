package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/handlers"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/middleware"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/services"
)

type RouterConfig struct {
	AuthMiddleware *middleware.AuthMiddleware
	CodeHandler    *handlers.CodeHandler
	VerifyHandler  *handlers.VerifyHandler
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/api/verify", cfg.VerifyHandler.Verify)
	router.GET("/verify/:codeId", cfg.VerifyHandler.VerifyPage)

	// Protected
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	issuance := protected.Group("/batches")
	issuance.Use(cfg.AuthMiddleware.RequireRole(services.RoleManufacturer, services.RoleAdmin))
	issuance.POST("/:batchId/codes", cfg.CodeHandler.IssueCodes)
	issuance.GET("/:batchId/codes", cfg.CodeHandler.ListCodes)
	issuance.POST("/:batchId/codes/download", cfg.CodeHandler.DownloadCodes)

	return router
}
