package app

import (
	"strings"
	"time"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/utils"
)

type Config struct {
	JWTSecretKey        string
	VerifyBaseURL       string
	AllowOrigins        []string
	IssuerWorkers       int
	CodeRetryAttempts   int
	LedgerSubmitTimeout time.Duration
	LedgerSweepInterval time.Duration
	LedgerSweepBatch    int
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	verifyBaseURL := utils.GetEnv("VERIFY_BASE_URL", "http://localhost:8080", log)
	allowOrigins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log), ",")
	issuerWorkers := utils.GetEnvAsInt("ISSUER_WORKERS", 4, log)
	codeRetryAttempts := utils.GetEnvAsInt("CODE_RETRY_ATTEMPTS", 3, log)
	ledgerSubmitTimeout := utils.GetEnvAsDuration("LEDGER_SUBMIT_TIMEOUT", 15*time.Second, log)
	ledgerSweepInterval := utils.GetEnvAsDuration("LEDGER_SWEEP_INTERVAL", 30*time.Second, log)
	ledgerSweepBatch := utils.GetEnvAsInt("LEDGER_SWEEP_BATCH", 100, log)
	return Config{
		JWTSecretKey:        jwtSecretKey,
		VerifyBaseURL:       verifyBaseURL,
		AllowOrigins:        allowOrigins,
		IssuerWorkers:       issuerWorkers,
		CodeRetryAttempts:   codeRetryAttempts,
		LedgerSubmitTimeout: ledgerSubmitTimeout,
		LedgerSweepInterval: ledgerSweepInterval,
		LedgerSweepBatch:    ledgerSweepBatch,
	}
}
