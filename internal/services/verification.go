package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/clients/rediscache"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/repos"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
)

const (
	ReasonUnknownCode  = "unknown code"
	ReasonExpired      = "code expired"
	ReasonLedgerFailed = "ledger anchor failed"
)

type VerificationResult struct {
	Found   bool        `json:"found"`
	IsValid bool        `json:"isValid"`
	Code    *types.Code `json:"code,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// VerificationService resolves a presented code to an authenticity
// verdict. Every successful lookup counts as a scan.
type VerificationService interface {
	Verify(ctx context.Context, codeID string) (*VerificationResult, error)
}

type verificationService struct {
	db       *gorm.DB
	log      *logger.Logger
	codeRepo repos.CodeRepo
	cache    rediscache.SnapshotCache
	now      func() time.Time
}

// NewVerificationService builds the service. cache may be nil when redis
// is not configured; nowFn may be nil outside tests.
func NewVerificationService(db *gorm.DB, baseLog *logger.Logger, codeRepo repos.CodeRepo, cache rediscache.SnapshotCache, nowFn func() time.Time) VerificationService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &verificationService{
		db:       db,
		log:      baseLog.With("service", "VerificationService"),
		codeRepo: codeRepo,
		cache:    cache,
		now:      nowFn,
	}
}

// Verify looks the code up, judges validity, and atomically bumps the
// scan counter. Unknown codes are a normal negative result and mutate
// nothing.
func (s *verificationService) Verify(ctx context.Context, codeID string) (*VerificationResult, error) {
	code, err := s.codeRepo.GetByCodeID(ctx, nil, codeID)
	if err != nil {
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	if code == nil {
		return &VerificationResult{Found: false, IsValid: false, Reason: ReasonUnknownCode}, nil
	}

	snap := s.snapshot(ctx, code)
	isValid, reason := judge(snap, code.Ledger, s.now())

	updated, err := s.codeRepo.IncrementScanCount(ctx, nil, codeID, s.now())
	if err != nil {
		return nil, fmt.Errorf("increment scan count: %w", err)
	}
	if updated != nil {
		code = updated
	}
	code.Metadata = snap

	s.log.Debug("Code verified",
		"code_id", code.CodeID,
		"is_valid", isValid,
		"scan_count", code.ScanCount,
	)
	return &VerificationResult{
		Found:   true,
		IsValid: isValid,
		Code:    code,
		Reason:  reason,
	}, nil
}

// snapshot resolves the code's display metadata, preferring the cache. A
// miss falls through to the store row and backfills the cache; snapshots
// are immutable after issuance, so a cached copy is never stale.
func (s *verificationService) snapshot(ctx context.Context, code *types.Code) types.MetadataSnapshot {
	if s.cache == nil {
		return code.Metadata
	}
	if cached, ok := s.cache.Get(ctx, code.CodeID); ok {
		return *cached
	}
	s.cache.Set(ctx, code.CodeID, code.Metadata)
	return code.Metadata
}

// judge computes the verdict from the immutable snapshot and the ledger
// state. A pending or absent ledger anchor is valid-but-unconfirmed; only
// a failed anchor invalidates the code.
func judge(snap types.MetadataSnapshot, ref types.LedgerRef, now time.Time) (bool, string) {
	if snap.Expired(now) {
		return false, ReasonExpired
	}
	if ref.State == types.LedgerStateFailed {
		reason := ReasonLedgerFailed
		if ref.Reason != "" {
			reason = fmt.Sprintf("%s: %s", ReasonLedgerFailed, ref.Reason)
		}
		return false, reason
	}
	return true, ""
}
