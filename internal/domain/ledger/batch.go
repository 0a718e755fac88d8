package ledger

import (
	"time"

	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QualityGrade classifies the condition of a received lot
type QualityGrade string

const (
	QualityGradeA QualityGrade = "A"
	QualityGradeB QualityGrade = "B"
	QualityGradeC QualityGrade = "C"
	QualityGradeD QualityGrade = "D"
)

// IsValid returns true if the quality grade is valid
func (g QualityGrade) IsValid() bool {
	switch g {
	case QualityGradeA, QualityGradeB, QualityGradeC, QualityGradeD:
		return true
	}
	return false
}

// BatchStatus represents the lifecycle state of an inventory batch
type BatchStatus string

const (
	// BatchStatusActive means the batch still carries available or reserved stock
	BatchStatusActive BatchStatus = "ACTIVE"
	// BatchStatusDepleted means every bag has been consumed or written off
	BatchStatusDepleted BatchStatus = "DEPLETED"
)

// InventoryBatch is a physically received lot tracked for FIFO consumption.
// Batches are never deleted, only quantity-decremented, so the receiving
// history stays auditable.
type InventoryBatch struct {
	shared.BaseEntity
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_batch_tenant"`
	GodownID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_batch_scope,priority:1"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_batch_scope,priority:2"`
	SourceRef       string          `gorm:"type:varchar(100);index"` // arrival/source document reference
	ReceivedAt      time.Time       `gorm:"type:timestamptz;not null;index:idx_batch_scope,priority:3"`
	TotalReceived   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Available       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reserved        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Damaged         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QualityGrade    QualityGrade    `gorm:"type:varchar(2);not null"`
	ExpiryAlertDate *time.Time      `gorm:"type:timestamptz"`
	Status          BatchStatus     `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (InventoryBatch) TableName() string {
	return "inventory_batch"
}

// NewInventoryBatch creates a batch for a freshly received lot.
// Good quantity starts as available; damaged quantity is tracked separately
// and never enters the FIFO pool.
func NewInventoryBatch(
	tenantID, godownID, productID uuid.UUID,
	sourceRef string,
	receivedAt time.Time,
	goodQty, damagedQty decimal.Decimal,
	grade QualityGrade,
) (*InventoryBatch, error) {
	if tenantID == uuid.Nil || godownID == uuid.Nil || productID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	if goodQty.IsNegative() || damagedQty.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Received quantities cannot be negative")
	}
	total := goodQty.Add(damagedQty)
	if total.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Batch must receive at least one unit")
	}
	if !grade.IsValid() {
		grade = QualityGradeA
	}

	return &InventoryBatch{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		GodownID:      godownID,
		ProductID:     productID,
		SourceRef:     sourceRef,
		ReceivedAt:    receivedAt,
		TotalReceived: total,
		Available:     goodQty,
		Reserved:      decimal.Zero,
		Damaged:       damagedQty,
		QualityGrade:  grade,
		Status:        BatchStatusActive,
	}, nil
}

// WithExpiryAlert sets the expiry-alert date for the batch
func (b *InventoryBatch) WithExpiryAlert(date time.Time) *InventoryBatch {
	b.ExpiryAlertDate = &date
	return b
}

// Reserve moves qty from available to reserved
func (b *InventoryBatch) Reserve(qty decimal.Decimal) error {
	if qty.IsNegative() || qty.IsZero() {
		return shared.NewDomainError("INVALID_QUANTITY", "Reservation quantity must be positive")
	}
	if qty.GreaterThan(b.Available) {
		return shared.ErrInsufficientStock
	}
	b.Available = b.Available.Sub(qty)
	b.Reserved = b.Reserved.Add(qty)
	b.UpdatedAt = time.Now()
	return nil
}

// Release reverses a reservation, moving qty from reserved back to available
func (b *InventoryBatch) Release(qty decimal.Decimal) error {
	if qty.IsNegative() || qty.IsZero() {
		return shared.NewDomainError("INVALID_QUANTITY", "Release quantity must be positive")
	}
	if qty.GreaterThan(b.Reserved) {
		return shared.ErrInsufficientStock
	}
	b.Reserved = b.Reserved.Sub(qty)
	b.Available = b.Available.Add(qty)
	b.UpdatedAt = time.Now()
	return nil
}

// Consume decrements reserved quantity. It assumes a prior reservation;
// consuming straight from available is not allowed.
func (b *InventoryBatch) Consume(qty decimal.Decimal) error {
	if qty.IsNegative() || qty.IsZero() {
		return shared.NewDomainError("INVALID_QUANTITY", "Consumption quantity must be positive")
	}
	if qty.GreaterThan(b.Reserved) {
		return shared.ErrInsufficientStock
	}
	b.Reserved = b.Reserved.Sub(qty)
	b.refreshStatus()
	b.UpdatedAt = time.Now()
	return nil
}

// Deduct removes qty directly from available stock, used by FIFO allocation
// where no reservation step precedes the outward movement.
func (b *InventoryBatch) Deduct(qty decimal.Decimal) error {
	if qty.IsNegative() || qty.IsZero() {
		return shared.NewDomainError("INVALID_QUANTITY", "Deduction quantity must be positive")
	}
	if qty.GreaterThan(b.Available) {
		return shared.ErrInsufficientStock
	}
	b.Available = b.Available.Sub(qty)
	b.refreshStatus()
	b.UpdatedAt = time.Now()
	return nil
}

func (b *InventoryBatch) refreshStatus() {
	if b.Available.IsZero() && b.Reserved.IsZero() {
		b.Status = BatchStatusDepleted
	} else {
		b.Status = BatchStatusActive
	}
}

// OnHand returns available plus reserved quantity
func (b *InventoryBatch) OnHand() decimal.Decimal {
	return b.Available.Add(b.Reserved)
}

// HasStock returns true if the batch still has allocatable quantity
func (b *InventoryBatch) HasStock() bool {
	return b.Available.GreaterThan(decimal.Zero)
}

// AgeDays returns the age of the batch in whole days as of the given time
func (b *InventoryBatch) AgeDays(now time.Time) int {
	return int(now.Sub(b.ReceivedAt).Hours() / 24)
}

// CheckCounters verifies available+reserved+damaged never exceeds total received
func (b *InventoryBatch) CheckCounters() error {
	sum := b.Available.Add(b.Reserved).Add(b.Damaged)
	if sum.GreaterThan(b.TotalReceived) {
		return shared.NewDomainError("INVALID_STATE", "Batch counters exceed total received quantity")
	}
	if b.Available.IsNegative() || b.Reserved.IsNegative() {
		return shared.NewDomainError("INVALID_STATE", "Batch counters cannot be negative")
	}
	return nil
}
