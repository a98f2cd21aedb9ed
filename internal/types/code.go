package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CodeStatus string

const (
	CodeStatusGenerated CodeStatus = "generated"
	CodeStatusScanned   CodeStatus = "scanned"
)

type LedgerState string

const (
	LedgerStateNone      LedgerState = "none"
	LedgerStatePending   LedgerState = "pending"
	LedgerStateConfirmed LedgerState = "confirmed"
	LedgerStateFailed    LedgerState = "failed"
)

// LedgerRef is the code's anchor on the external ledger. Only the fields
// belonging to the current state are set; the rest stay zero.
type LedgerRef struct {
	State        LedgerState `gorm:"not null;default:'none';column:ledger_state" json:"state"`
	SubmissionID string      `gorm:"column:ledger_submission_id" json:"submissionId,omitempty"`
	TxHash       string      `gorm:"column:ledger_tx_hash" json:"txHash,omitempty"`
	BlockHeight  int64       `gorm:"column:ledger_block_height" json:"blockHeight,omitempty"`
	Reason       string      `gorm:"column:ledger_fail_reason" json:"reason,omitempty"`
}

func LedgerNone() LedgerRef {
	return LedgerRef{State: LedgerStateNone}
}

func LedgerPending(submissionID string) LedgerRef {
	return LedgerRef{State: LedgerStatePending, SubmissionID: submissionID}
}

func LedgerConfirmed(txHash string, blockHeight int64) LedgerRef {
	return LedgerRef{State: LedgerStateConfirmed, TxHash: txHash, BlockHeight: blockHeight}
}

func LedgerFailed(reason string) LedgerRef {
	return LedgerRef{State: LedgerStateFailed, Reason: reason}
}

// MetadataSnapshot is copied from the batch at issuance time and never
// mutated afterwards, even if the batch record later changes.
type MetadataSnapshot struct {
	DrugName     string    `gorm:"not null;column:meta_drug_name" json:"drugName"`
	BatchNumber  string    `gorm:"not null;column:meta_batch_number" json:"batchNumber"`
	Manufacturer string    `gorm:"not null;column:meta_manufacturer" json:"manufacturer"`
	ExpiryDate   time.Time `gorm:"not null;column:meta_expiry_date" json:"expiryDate"`
}

func (m MetadataSnapshot) Expired(now time.Time) bool {
	return now.After(m.ExpiryDate)
}

// Code is one per-unit identifier. CodeID is globally unique; SerialNumber
// is unique within its batch. Both constraints are enforced at the store
// and carry stable names the insert-conflict classifier depends on.
type Code struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CodeID          string           `gorm:"uniqueIndex:uniq_code_code_id;not null;column:code_id" json:"codeId"`
	BatchID         uuid.UUID        `gorm:"type:uuid;uniqueIndex:uniq_code_batch_serial;not null;column:batch_id" json:"batchId"`
	SerialNumber    int              `gorm:"uniqueIndex:uniq_code_batch_serial;not null;column:serial_number" json:"serialNumber"`
	Metadata        MetadataSnapshot `gorm:"embedded" json:"metadata"`
	Ledger          LedgerRef        `gorm:"embedded" json:"ledgerRef"`
	VerificationURL string           `gorm:"column:verification_url" json:"verificationUrl"`
	ScanCount       int64            `gorm:"not null;default:0;column:scan_count" json:"scanCount"`
	DownloadCount   int64            `gorm:"not null;default:0;column:download_count" json:"downloadCount"`
	FirstScannedAt  *time.Time       `gorm:"column:first_scanned_at" json:"firstScannedAt,omitempty"`
	Status          CodeStatus       `gorm:"not null;default:'generated'" json:"status"`
	CreatedAt       time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Code) TableName() string {
	return "code"
}

func (c *Code) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
