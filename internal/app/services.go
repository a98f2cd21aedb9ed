package app

import (
	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/services"
)

type Services struct {
	Auth         services.AuthService
	Generator    services.CodeGenerator
	Issuer       services.IssuerService
	Codes        services.CodeService
	Verification services.VerificationService
	LedgerSync   services.LedgerSyncService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) Services {
	log.Info("Wiring services...")

	authService := services.NewAuthService(log, cfg.JWTSecretKey)
	generator := services.NewCodeGenerator(cfg.VerifyBaseURL, nil)
	issuerService := services.NewIssuerService(
		db,
		log,
		repos.Batch,
		repos.Code,
		generator,
		clients.Ledger,
		cfg.IssuerWorkers,
		cfg.CodeRetryAttempts,
		cfg.LedgerSubmitTimeout,
	)
	codeService := services.NewCodeService(db, log, repos.Batch, repos.Code)
	verificationService := services.NewVerificationService(db, log, repos.Code, clients.SnapshotCache, nil)
	ledgerSyncService := services.NewLedgerSyncService(db, log, repos.Code, clients.Ledger, cfg.LedgerSweepBatch, cfg.LedgerSubmitTimeout)

	return Services{
		Auth:         authService,
		Generator:    generator,
		Issuer:       issuerService,
		Codes:        codeService,
		Verification: verificationService,
		LedgerSync:   ledgerSyncService,
	}
}
