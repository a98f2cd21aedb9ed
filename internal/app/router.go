package app

import (
	"github.com/gin-gonic/gin"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/server"
)

func wireRouter(cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthMiddleware: middleware.Auth,
		CodeHandler:    handlers.Code,
		VerifyHandler:  handlers.Verify,
		AllowOrigins:   cfg.AllowOrigins,
	})
}
