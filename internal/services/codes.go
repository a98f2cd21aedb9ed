package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	pkgerrors "github.com/Goodnessmbakara/shield-drug-sub003/internal/pkg/errors"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/repos"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
)

// CodeService covers read access to issued codes plus the download
// action, which is the only mutation it performs.
type CodeService interface {
	ListByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*types.Code, error)
	Download(ctx context.Context, batchID uuid.UUID) ([]*types.Code, error)
}

type codeService struct {
	db        *gorm.DB
	log       *logger.Logger
	batchRepo repos.BatchRepo
	codeRepo  repos.CodeRepo
}

func NewCodeService(db *gorm.DB, baseLog *logger.Logger, batchRepo repos.BatchRepo, codeRepo repos.CodeRepo) CodeService {
	return &codeService{
		db:        db,
		log:       baseLog.With("service", "CodeService"),
		batchRepo: batchRepo,
		codeRepo:  codeRepo,
	}
}

func (s *codeService) ListByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*types.Code, error) {
	batch, err := s.batchRepo.GetByID(ctx, nil, batchID)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, fmt.Errorf("batch %s: %w", batchID, pkgerrors.ErrNotFound)
	}
	return s.codeRepo.ListByBatch(ctx, nil, batchID, limit, offset)
}

// Download returns every code of the batch for export and bumps each
// code's download counter in one atomic statement.
func (s *codeService) Download(ctx context.Context, batchID uuid.UUID) ([]*types.Code, error) {
	batch, err := s.batchRepo.GetByID(ctx, nil, batchID)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, fmt.Errorf("batch %s: %w", batchID, pkgerrors.ErrNotFound)
	}
	if _, err := s.codeRepo.IncrementDownloadCounts(ctx, nil, batchID); err != nil {
		return nil, fmt.Errorf("increment download counts: %w", err)
	}
	codes, err := s.codeRepo.ListByBatch(ctx, nil, batchID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	s.log.Info("Codes downloaded", "batch_id", batchID, "count", len(codes))
	return codes, nil
}
