package app

import (
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/handlers"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
)

type Handlers struct {
	Code   *handlers.CodeHandler
	Verify *handlers.VerifyHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Code:   handlers.NewCodeHandler(log, services.Issuer, services.Codes),
		Verify: handlers.NewVerifyHandler(log, services.Verification),
	}
}
