package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/clients/ledger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/repos"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
)

// LedgerSyncService settles pending ledger submissions. It is driven by
// the background sweeper; one sweep polls a bounded slice of pending
// codes and records whatever the ledger reports.
type LedgerSyncService interface {
	SweepOnce(ctx context.Context) (int, error)
}

type ledgerSyncService struct {
	db          *gorm.DB
	log         *logger.Logger
	codeRepo    repos.CodeRepo
	anchor      ledger.Client
	batchSize   int
	pollTimeout time.Duration
}

func NewLedgerSyncService(db *gorm.DB, baseLog *logger.Logger, codeRepo repos.CodeRepo, anchor ledger.Client, batchSize int, pollTimeout time.Duration) LedgerSyncService {
	if batchSize < 1 {
		batchSize = 100
	}
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	return &ledgerSyncService{
		db:          db,
		log:         baseLog.With("service", "LedgerSyncService"),
		codeRepo:    codeRepo,
		anchor:      anchor,
		batchSize:   batchSize,
		pollTimeout: pollTimeout,
	}
}

// SweepOnce returns the number of submissions settled (confirmed or
// failed). Poll errors leave the code pending for the next sweep.
func (s *ledgerSyncService) SweepOnce(ctx context.Context) (int, error) {
	if s.anchor == nil {
		return 0, nil
	}
	pending, err := s.codeRepo.ListPendingLedger(ctx, nil, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending submissions: %w", err)
	}
	settled := 0
	for _, code := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		ref, ok := s.pollOne(ctx, code)
		if !ok {
			continue
		}
		if err := s.codeRepo.UpdateLedgerRef(ctx, nil, code.CodeID, ref); err != nil {
			s.log.Error("Failed to record settled ledger ref", "code_id", code.CodeID, "error", err)
			continue
		}
		settled++
	}
	if settled > 0 {
		s.log.Info("Ledger sweep settled submissions", "settled", settled, "pending_seen", len(pending))
	}
	return settled, nil
}

func (s *ledgerSyncService) pollOne(ctx context.Context, code *types.Code) (types.LedgerRef, bool) {
	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	status, err := s.anchor.PollStatus(pollCtx, code.Ledger.SubmissionID)
	if err != nil {
		s.log.Warn("Ledger status poll failed, will retry next sweep",
			"code_id", code.CodeID,
			"submission_id", code.Ledger.SubmissionID,
			"error", err,
		)
		return types.LedgerRef{}, false
	}
	switch status.State {
	case ledger.StateConfirmed:
		return types.LedgerConfirmed(status.TxHash, status.BlockHeight), true
	case ledger.StateFailed:
		return types.LedgerFailed(status.Reason), true
	default:
		return types.LedgerRef{}, false
	}
}
