package app

import (
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/clients/ledger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/clients/rediscache"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
)

type Clients struct {
	Ledger        ledger.Client
	SnapshotCache rediscache.SnapshotCache
}

// wireClients builds the external collaborators. Both are optional: with
// no LEDGER_BASE_URL codes stay unanchored (ledgerRef none), and with no
// REDIS_ADDR the verify page just reads the store directly.
func wireClients(log *logger.Logger) Clients {
	log.Info("Wiring clients...")

	ledgerClient, err := ledger.NewFromEnv(log)
	if err != nil {
		log.Warn("Ledger anchor client disabled", "error", err)
		ledgerClient = nil
	}

	cache, err := rediscache.NewFromEnv(log)
	if err != nil {
		log.Warn("Snapshot cache disabled", "error", err)
		cache = nil
	}

	return Clients{
		Ledger:        ledgerClient,
		SnapshotCache: cache,
	}
}
