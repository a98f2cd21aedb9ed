package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusActive    BatchStatus = "active"
	BatchStatusCompleted BatchStatus = "completed"
)

// Batch is a registered production lot. It is created by the intake
// process; issuance only ever touches IssuedCount, Status and
// LastIssueReport.
type Batch struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DrugName        string         `gorm:"not null;column:drug_name" json:"drugName"`
	BatchNumber     string         `gorm:"uniqueIndex;not null;column:batch_number" json:"batchNumber"`
	Manufacturer    string         `gorm:"not null;column:manufacturer" json:"manufacturer"`
	ExpiryDate      time.Time      `gorm:"not null;column:expiry_date" json:"expiryDate"`
	Quantity        int            `gorm:"not null" json:"quantity"`
	Status          BatchStatus    `gorm:"not null;default:'pending'" json:"status"`
	IssuedCount     int64          `gorm:"not null;default:0;column:issued_count" json:"issuedCount"`
	LastIssueReport datatypes.JSON `gorm:"column:last_issue_report" json:"lastIssueReport,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Batch) TableName() string {
	return "batch"
}

func (b *Batch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Snapshot captures the point-in-time batch facts that get frozen onto
// every code issued against this batch.
func (b *Batch) Snapshot() MetadataSnapshot {
	return MetadataSnapshot{
		DrugName:     b.DrugName,
		BatchNumber:  b.BatchNumber,
		Manufacturer: b.Manufacturer,
		ExpiryDate:   b.ExpiryDate,
	}
}
