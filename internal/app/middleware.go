package app

import (
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/middleware"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, services.Auth),
	}
}
