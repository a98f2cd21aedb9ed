package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/clients/ledger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	pkgerrors "github.com/Goodnessmbakara/shield-drug-sub003/internal/pkg/errors"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/repos"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
)

type IssueRequest struct {
	BatchID   uuid.UUID
	Quantity  int
	FullBatch bool
}

// UnitFailure records one serial number that could not be issued. The
// rest of the run is unaffected.
type UnitFailure struct {
	SerialNumber int    `json:"serialNumber"`
	Reason       string `json:"reason"`
}

type IssueResult struct {
	IssuedCount  int           `json:"issuedCount"`
	SkippedCount int           `json:"skippedCount"`
	FailedCount  int           `json:"failedCount"`
	Codes        []*types.Code `json:"codes"`
	Failed       []UnitFailure `json:"failed,omitempty"`
}

type IssuerService interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
}

type issuerService struct {
	db            *gorm.DB
	log           *logger.Logger
	batchRepo     repos.BatchRepo
	codeRepo      repos.CodeRepo
	generator     CodeGenerator
	anchor        ledger.Client
	workers       int
	maxAttempts   int
	submitTimeout time.Duration
}

func NewIssuerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	batchRepo repos.BatchRepo,
	codeRepo repos.CodeRepo,
	generator CodeGenerator,
	anchor ledger.Client,
	workers int,
	maxAttempts int,
	submitTimeout time.Duration,
) IssuerService {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if submitTimeout <= 0 {
		submitTimeout = 15 * time.Second
	}
	return &issuerService{
		db:            db,
		log:           baseLog.With("service", "IssuerService"),
		batchRepo:     batchRepo,
		codeRepo:      codeRepo,
		generator:     generator,
		anchor:        anchor,
		workers:       workers,
		maxAttempts:   maxAttempts,
		submitTimeout: submitTimeout,
	}
}

// Issue fills a serial range for the batch. The operation is best effort
// and idempotent at the unit level: serials already issued are skipped via
// the (batch_id, serial_number) constraint, a single unit's failure never
// aborts the run, and a cancelled run leaves a resumable partial state.
func (s *issuerService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	batch, err := s.batchRepo.GetByID(ctx, nil, req.BatchID)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, fmt.Errorf("batch %s: %w", req.BatchID, pkgerrors.ErrNotFound)
	}

	serials, err := s.serialsToFill(ctx, batch, req)
	if err != nil {
		return nil, err
	}

	outcomes, runErr := s.runWorkers(ctx, batch, serials)

	result := foldOutcomes(outcomes)

	// A cancelled run must still leave issued_count matching what is
	// actually persisted, so finalize on a fresh context if needed.
	finalizeCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		finalizeCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := s.finalizeBatch(finalizeCtx, batch, result); err != nil {
		return result, err
	}

	for _, code := range result.Codes {
		s.anchorAsync(code)
	}

	s.log.Info("Issuance run complete",
		"batch_id", batch.ID,
		"requested", len(serials),
		"issued", result.IssuedCount,
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
	)
	return result, runErr
}

// serialsToFill resolves the request into concrete serial numbers: the
// whole 1..quantity range for full-batch issuance, or the lowest k serials
// not yet issued for partial issuance.
func (s *issuerService) serialsToFill(ctx context.Context, batch *types.Batch, req IssueRequest) ([]int, error) {
	if req.FullBatch {
		serials := make([]int, 0, batch.Quantity)
		for serial := 1; serial <= batch.Quantity; serial++ {
			serials = append(serials, serial)
		}
		return serials, nil
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be positive: %w", pkgerrors.ErrInvalidArgument)
	}
	existing, err := s.codeRepo.ListSerialsByBatch(ctx, nil, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("list issued serials: %w", err)
	}
	taken := make(map[int]bool, len(existing))
	for _, serial := range existing {
		taken[serial] = true
	}
	serials := make([]int, 0, req.Quantity)
	for serial := 1; serial <= batch.Quantity && len(serials) < req.Quantity; serial++ {
		if !taken[serial] {
			serials = append(serials, serial)
		}
	}
	if len(serials) == 0 {
		return nil, fmt.Errorf("batch %s already fully issued: %w", batch.ID, pkgerrors.ErrInvalidArgument)
	}
	return serials, nil
}

type unitOutcome struct {
	serialNumber int
	code         *types.Code
	skipped      bool
	err          error
}

// runWorkers splits the serial range into disjoint contiguous sub-ranges,
// one per worker. The store's uniqueness constraints are the guard against
// double issuance, so workers never coordinate beyond the split.
func (s *issuerService) runWorkers(ctx context.Context, batch *types.Batch, serials []int) ([]unitOutcome, error) {
	chunks := splitSerials(serials, s.workers)
	perWorker := make([][]unitOutcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			for _, serial := range chunk {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				perWorker[i] = append(perWorker[i], s.issueOne(gctx, batch, serial))
			}
			return nil
		})
	}
	runErr := g.Wait()

	var outcomes []unitOutcome
	for _, part := range perWorker {
		outcomes = append(outcomes, part...)
	}
	sort.Slice(outcomes, func(a, b int) bool {
		return outcomes[a].serialNumber < outcomes[b].serialNumber
	})
	return outcomes, runErr
}

// issueOne attempts a single serial number with a bounded collision-retry
// budget. A fresh identifier is generated per attempt; the store's insert
// is the authority on whether it is usable.
func (s *issuerService) issueOne(ctx context.Context, batch *types.Batch, serialNumber int) unitOutcome {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		gen, err := s.generator.Generate(batch.ID, serialNumber)
		if err != nil {
			return unitOutcome{serialNumber: serialNumber, err: fmt.Errorf("generate: %w", err)}
		}
		code := &types.Code{
			CodeID:          gen.CodeID,
			BatchID:         batch.ID,
			SerialNumber:    serialNumber,
			Metadata:        batch.Snapshot(),
			Ledger:          types.LedgerNone(),
			VerificationURL: gen.VerificationURL,
			Status:          types.CodeStatusGenerated,
		}
		res, err := s.codeRepo.InsertIfAbsent(ctx, nil, code)
		if err != nil {
			return unitOutcome{serialNumber: serialNumber, err: fmt.Errorf("insert: %w", err)}
		}
		switch res {
		case repos.InsertInserted:
			return unitOutcome{serialNumber: serialNumber, code: code}
		case repos.InsertConflictSerial:
			return unitOutcome{serialNumber: serialNumber, skipped: true}
		case repos.InsertConflictCodeID:
			s.log.Warn("Code id collision, regenerating",
				"batch_id", batch.ID,
				"serial_number", serialNumber,
				"attempt", attempt,
			)
		}
	}
	return unitOutcome{
		serialNumber: serialNumber,
		err:          fmt.Errorf("code id collision retries exhausted after %d attempts", s.maxAttempts),
	}
}

func foldOutcomes(outcomes []unitOutcome) *IssueResult {
	result := &IssueResult{Codes: []*types.Code{}}
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			result.Failed = append(result.Failed, UnitFailure{
				SerialNumber: o.serialNumber,
				Reason:       o.err.Error(),
			})
		case o.skipped:
			result.SkippedCount++
		default:
			result.Codes = append(result.Codes, o.code)
		}
	}
	result.IssuedCount = len(result.Codes)
	result.FailedCount = len(result.Failed)
	return result
}

// finalizeBatch reconciles the batch record against what actually got
// persisted, never against what was requested.
func (s *issuerService) finalizeBatch(ctx context.Context, batch *types.Batch, result *IssueResult) error {
	count, err := s.codeRepo.CountByBatch(ctx, nil, batch.ID)
	if err != nil {
		return fmt.Errorf("count persisted codes: %w", err)
	}
	status := batch.Status
	switch {
	case count >= int64(batch.Quantity):
		status = types.BatchStatusCompleted
	case count > 0:
		status = types.BatchStatusActive
	}
	if err := s.batchRepo.UpdateIssuedCount(ctx, nil, batch.ID, count, status); err != nil {
		return fmt.Errorf("update issued count: %w", err)
	}

	var report datatypes.JSON
	if len(result.Failed) > 0 {
		raw, err := json.Marshal(result.Failed)
		if err != nil {
			return fmt.Errorf("marshal issue report: %w", err)
		}
		report = datatypes.JSON(raw)
	}
	if err := s.batchRepo.SetIssueReport(ctx, nil, batch.ID, report); err != nil {
		return fmt.Errorf("persist issue report: %w", err)
	}
	return nil
}

// anchorAsync submits the code to the ledger without blocking issuance.
// The outcome only ever lands on the code's ledgerRef; issuance has
// already completed from the caller's perspective.
func (s *issuerService) anchorAsync(code *types.Code) {
	if s.anchor == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
		defer cancel()

		submissionID, err := s.anchor.Submit(ctx, code.CodeID, code.Metadata)
		ref := types.LedgerPending(submissionID)
		if err != nil {
			s.log.Warn("Ledger submission failed", "code_id", code.CodeID, "error", err)
			ref = types.LedgerFailed(err.Error())
		}

		updateCtx, updateCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer updateCancel()
		if err := s.codeRepo.UpdateLedgerRef(updateCtx, nil, code.CodeID, ref); err != nil {
			s.log.Error("Failed to record ledger ref", "code_id", code.CodeID, "error", err)
		}
	}()
}

func splitSerials(serials []int, workers int) [][]int {
	if workers > len(serials) {
		workers = len(serials)
	}
	if workers < 1 {
		return nil
	}
	chunkSize := (len(serials) + workers - 1) / workers
	var chunks [][]int
	for start := 0; start < len(serials); start += chunkSize {
		end := start + chunkSize
		if end > len(serials) {
			end = len(serials)
		}
		chunks = append(chunks, serials[start:end])
	}
	return chunks
}
