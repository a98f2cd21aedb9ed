package jobs

import (
	"context"
	"time"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/services"
)

// LedgerSweeper periodically settles pending ledger submissions. It is
// the only writer that moves ledgerRef out of pending.
type LedgerSweeper struct {
	log      *logger.Logger
	syncSvc  services.LedgerSyncService
	interval time.Duration
}

func NewLedgerSweeper(baseLog *logger.Logger, syncSvc services.LedgerSyncService, interval time.Duration) *LedgerSweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &LedgerSweeper{
		log:      baseLog.With("component", "LedgerSweeper"),
		syncSvc:  syncSvc,
		interval: interval,
	}
}

func (w *LedgerSweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.syncSvc.SweepOnce(ctx); err != nil && ctx.Err() == nil {
					w.log.Warn("Ledger sweep failed", "error", err)
				}
			}
		}
	}()
}
