package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
)

// InsertResult reports how InsertIfAbsent resolved against the store's
// uniqueness constraints.
type InsertResult int

const (
	InsertInserted InsertResult = iota
	// InsertConflictCodeID means another code already holds this code_id.
	InsertConflictCodeID
	// InsertConflictSerial means this (batch_id, serial_number) pair is
	// already issued.
	InsertConflictSerial
)

type CodeRepo interface {
	InsertIfAbsent(ctx context.Context, tx *gorm.DB, code *types.Code) (InsertResult, error)
	GetByCodeID(ctx context.Context, tx *gorm.DB, codeID string) (*types.Code, error)
	IncrementScanCount(ctx context.Context, tx *gorm.DB, codeID string, scannedAt time.Time) (*types.Code, error)
	IncrementDownloadCounts(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error)
	CountByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error)
	ListSerialsByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]int, error)
	ListByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, limit, offset int) ([]*types.Code, error)
	ListPendingLedger(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Code, error)
	UpdateLedgerRef(ctx context.Context, tx *gorm.DB, codeID string, ref types.LedgerRef) error
}

type codeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCodeRepo(db *gorm.DB, baseLog *logger.Logger) CodeRepo {
	return &codeRepo{
		db:  db,
		log: baseLog.With("repo", "CodeRepo"),
	}
}

// InsertIfAbsent attempts a plain insert and classifies unique-constraint
// violations instead of surfacing them as errors. The store is the
// authority on uniqueness; callers regenerate and retry on
// InsertConflictCodeID and treat InsertConflictSerial as already issued.
func (r *codeRepo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, code *types.Code) (InsertResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	err := transaction.WithContext(ctx).Create(code).Error
	if err == nil {
		return InsertInserted, nil
	}
	if res, ok := classifyUniqueViolation(err); ok {
		return res, nil
	}
	return 0, err
}

// classifyUniqueViolation maps a driver error to the violated constraint.
// Postgres reports the constraint name; sqlite (used by repo tests) only
// reports the column list in the message text.
func classifyUniqueViolation(err error) (InsertResult, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return 0, false
		}
		if pgErr.ConstraintName == "uniq_code_batch_serial" {
			return InsertConflictSerial, true
		}
		return InsertConflictCodeID, true
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || errors.Is(err, gorm.ErrDuplicatedKey) {
		if strings.Contains(msg, "serial_number") {
			return InsertConflictSerial, true
		}
		return InsertConflictCodeID, true
	}
	return 0, false
}

func (r *codeRepo) GetByCodeID(ctx context.Context, tx *gorm.DB, codeID string) (*types.Code, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if codeID == "" {
		return nil, nil
	}
	var code types.Code
	err := transaction.WithContext(ctx).
		Where("code_id = ?", codeID).
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// IncrementScanCount is a single UPDATE statement so concurrent scans of
// the same code never lose an increment. It also stamps first_scanned_at
// exactly once and moves the code to scanned.
func (r *codeRepo) IncrementScanCount(ctx context.Context, tx *gorm.DB, codeID string, scannedAt time.Time) (*types.Code, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Code{}).
		Where("code_id = ?", codeID).
		Updates(map[string]interface{}{
			"scan_count":       gorm.Expr("scan_count + 1"),
			"status":           types.CodeStatusScanned,
			"first_scanned_at": gorm.Expr("COALESCE(first_scanned_at, ?)", scannedAt),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByCodeID(ctx, transaction, codeID)
}

func (r *codeRepo) IncrementDownloadCounts(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Code{}).
		Where("batch_id = ?", batchID).
		Update("download_count", gorm.Expr("download_count + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *codeRepo) CountByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Code{}).
		Where("batch_id = ?", batchID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *codeRepo) ListSerialsByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var serials []int
	err := transaction.WithContext(ctx).
		Model(&types.Code{}).
		Where("batch_id = ?", batchID).
		Order("serial_number ASC").
		Pluck("serial_number", &serials).Error
	if err != nil {
		return nil, err
	}
	return serials, nil
}

func (r *codeRepo) ListByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, limit, offset int) ([]*types.Code, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Code
	q := transaction.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("serial_number ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *codeRepo) ListPendingLedger(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Code, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Code
	q := transaction.WithContext(ctx).
		Where("ledger_state = ?", types.LedgerStatePending).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *codeRepo) UpdateLedgerRef(ctx context.Context, tx *gorm.DB, codeID string, ref types.LedgerRef) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Code{}).
		Where("code_id = ?", codeID).
		Updates(map[string]interface{}{
			"ledger_state":         ref.State,
			"ledger_submission_id": ref.SubmissionID,
			"ledger_tx_hash":       ref.TxHash,
			"ledger_block_height":  ref.BlockHeight,
			"ledger_fail_reason":   ref.Reason,
		}).Error
}
