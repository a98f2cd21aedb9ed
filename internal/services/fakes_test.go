package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/clients/ledger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/repos"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
)

type ledgerStatus = ledger.Status

// fakeCodeRepo mimics the store's uniqueness constraints and atomic
// counter semantics in memory.
type fakeCodeRepo struct {
	mu        sync.Mutex
	byCodeID  map[string]*types.Code
	bySerial  map[string]*types.Code // key batchID/serial
	insertErr error
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{
		byCodeID: map[string]*types.Code{},
		bySerial: map[string]*types.Code{},
	}
}

func serialKey(batchID uuid.UUID, serial int) string {
	return fmt.Sprintf("%s/%d", batchID, serial)
}

func (f *fakeCodeRepo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, code *types.Code) (repos.InsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	if _, ok := f.byCodeID[code.CodeID]; ok {
		return repos.InsertConflictCodeID, nil
	}
	key := serialKey(code.BatchID, code.SerialNumber)
	if _, ok := f.bySerial[key]; ok {
		return repos.InsertConflictSerial, nil
	}
	stored := *code
	f.byCodeID[code.CodeID] = &stored
	f.bySerial[key] = &stored
	return repos.InsertInserted, nil
}

func (f *fakeCodeRepo) GetByCodeID(ctx context.Context, tx *gorm.DB, codeID string) (*types.Code, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.byCodeID[codeID]
	if !ok {
		return nil, nil
	}
	out := *code
	return &out, nil
}

func (f *fakeCodeRepo) IncrementScanCount(ctx context.Context, tx *gorm.DB, codeID string, scannedAt time.Time) (*types.Code, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.byCodeID[codeID]
	if !ok {
		return nil, nil
	}
	code.ScanCount++
	code.Status = types.CodeStatusScanned
	if code.FirstScannedAt == nil {
		at := scannedAt
		code.FirstScannedAt = &at
	}
	out := *code
	return &out, nil
}

func (f *fakeCodeRepo) IncrementDownloadCounts(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, code := range f.byCodeID {
		if code.BatchID == batchID {
			code.DownloadCount++
			n++
		}
	}
	return n, nil
}

func (f *fakeCodeRepo) CountByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, code := range f.byCodeID {
		if code.BatchID == batchID {
			n++
		}
	}
	return n, nil
}

func (f *fakeCodeRepo) ListSerialsByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var serials []int
	for _, code := range f.byCodeID {
		if code.BatchID == batchID {
			serials = append(serials, code.SerialNumber)
		}
	}
	return serials, nil
}

func (f *fakeCodeRepo) ListByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, limit, offset int) ([]*types.Code, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Code
	for _, code := range f.byCodeID {
		if code.BatchID == batchID {
			c := *code
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeCodeRepo) ListPendingLedger(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Code, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Code
	for _, code := range f.byCodeID {
		if code.Ledger.State == types.LedgerStatePending {
			c := *code
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeCodeRepo) UpdateLedgerRef(ctx context.Context, tx *gorm.DB, codeID string, ref types.LedgerRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code, ok := f.byCodeID[codeID]; ok {
		code.Ledger = ref
	}
	return nil
}

type fakeBatchRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*types.Batch
}

func newFakeBatchRepo(batches ...*types.Batch) *fakeBatchRepo {
	f := &fakeBatchRepo{batches: map[uuid.UUID]*types.Batch{}}
	for _, b := range batches {
		f.batches[b.ID] = b
	}
	return f
}

func (f *fakeBatchRepo) Create(ctx context.Context, tx *gorm.DB, batches []*types.Batch) ([]*types.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range batches {
		f.batches[b.ID] = b
	}
	return batches, nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (*types.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch, ok := f.batches[batchID]
	if !ok {
		return nil, nil
	}
	out := *batch
	return &out, nil
}

func (f *fakeBatchRepo) UpdateIssuedCount(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, issued int64, status types.BatchStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if batch, ok := f.batches[batchID]; ok {
		batch.IssuedCount = issued
		batch.Status = status
	}
	return nil
}

func (f *fakeBatchRepo) SetIssueReport(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, report datatypes.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if batch, ok := f.batches[batchID]; ok {
		batch.LastIssueReport = report
	}
	return nil
}

type pollResult struct {
	state       string
	txHash      string
	blockHeight int64
	reason      string
	err         error
}

// fakeAnchor records ledger submissions and serves scripted poll results.
type fakeAnchor struct {
	mu             sync.Mutex
	submitted      []string
	submitErr      error
	pollResults    map[string]*pollResult
	nextSubmission int
}

func newFakeAnchor() *fakeAnchor {
	return &fakeAnchor{pollResults: map[string]*pollResult{}}
}

func (f *fakeAnchor) Submit(ctx context.Context, codeID string, meta types.MetadataSnapshot) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextSubmission++
	f.submitted = append(f.submitted, codeID)
	return fmt.Sprintf("sub-%d", f.nextSubmission), nil
}

func (f *fakeAnchor) PollStatus(ctx context.Context, submissionID string) (*ledgerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.pollResults[submissionID]
	if !ok {
		return &ledgerStatus{State: "pending"}, nil
	}
	if res.err != nil {
		return nil, res.err
	}
	return &ledgerStatus{
		State:       res.state,
		TxHash:      res.txHash,
		BlockHeight: res.blockHeight,
		Reason:      res.reason,
	}, nil
}

// scriptedGenerator returns queued identifiers in order, falling back to
// unique ones once the script runs out.
type scriptedGenerator struct {
	mu     sync.Mutex
	script []string
	next   int
}

func (g *scriptedGenerator) Generate(batchID uuid.UUID, serialNumber int) (GeneratedCode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var id string
	if g.next < len(g.script) {
		id = g.script[g.next]
		g.next++
	} else {
		g.next++
		id = fmt.Sprintf("GEN-%s-%d-%d", batchID.String()[:8], serialNumber, g.next)
	}
	return GeneratedCode{CodeID: id, VerificationURL: "http://localhost:8080/verify/" + id}, nil
}

// fakeSnapshotCache records hits and misses so tests can assert the
// cache-first, store-fallthrough read path.
type fakeSnapshotCache struct {
	mu      sync.Mutex
	entries map[string]types.MetadataSnapshot
	gets    int
	hits    int
	sets    int
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{entries: map[string]types.MetadataSnapshot{}}
}

func (f *fakeSnapshotCache) Get(ctx context.Context, codeID string) (*types.MetadataSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	snap, ok := f.entries[codeID]
	if !ok {
		return nil, false
	}
	f.hits++
	return &snap, true
}

func (f *fakeSnapshotCache) Set(ctx context.Context, codeID string, snap types.MetadataSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.entries[codeID] = snap
}

func (f *fakeSnapshotCache) Close() error { return nil }
