package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
)

type BatchRepo interface {
	Create(ctx context.Context, tx *gorm.DB, batches []*types.Batch) ([]*types.Batch, error)
	GetByID(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (*types.Batch, error)
	UpdateIssuedCount(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, issued int64, status types.BatchStatus) error
	SetIssueReport(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, report datatypes.JSON) error
}

type batchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRepo(db *gorm.DB, baseLog *logger.Logger) BatchRepo {
	return &batchRepo{
		db:  db,
		log: baseLog.With("repo", "BatchRepo"),
	}
}

func (r *batchRepo) Create(ctx context.Context, tx *gorm.DB, batches []*types.Batch) ([]*types.Batch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(batches) == 0 {
		return []*types.Batch{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepo) GetByID(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (*types.Batch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if batchID == uuid.Nil {
		return nil, nil
	}
	var batch types.Batch
	err := transaction.WithContext(ctx).
		Where("id = ?", batchID).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepo) UpdateIssuedCount(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, issued int64, status types.BatchStatus) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Batch{}).
		Where("id = ?", batchID).
		Updates(map[string]interface{}{
			"issued_count": issued,
			"status":       status,
		}).Error
}

func (r *batchRepo) SetIssueReport(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, report datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Batch{}).
		Where("id = ?", batchID).
		Update("last_issue_report", report).Error
}
