package ledger

import (
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchMapping links one ledger entry to one batch it touched, capturing the
// batch balance on either side of the movement. Written atomically with the
// entry so the FIFO audit trail can never drift from the ledger.
type BatchMapping struct {
	shared.BaseEntity
	TenantID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	EntryID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_mapping_entry"`
	BatchID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_mapping_batch"`
	QuantityAffected   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BatchBalanceBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BatchBalanceAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (BatchMapping) TableName() string {
	return "ledger_batch_mapping"
}

// NewBatchMapping creates a mapping row for one entry/batch pair
func NewBatchMapping(
	tenantID, entryID, batchID uuid.UUID,
	quantityAffected, balanceBefore, balanceAfter decimal.Decimal,
) (*BatchMapping, error) {
	if tenantID == uuid.Nil || entryID == uuid.Nil || batchID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	if quantityAffected.IsNegative() || quantityAffected.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Mapping quantity must be positive")
	}
	return &BatchMapping{
		BaseEntity:         shared.NewBaseEntity(),
		TenantID:           tenantID,
		EntryID:            entryID,
		BatchID:            batchID,
		QuantityAffected:   quantityAffected,
		BatchBalanceBefore: balanceBefore,
		BatchBalanceAfter:  balanceAfter,
	}, nil
}

// TotalMapped sums quantity affected across a set of mappings
func TotalMapped(mappings []BatchMapping) decimal.Decimal {
	total := decimal.Zero
	for i := range mappings {
		total = total.Add(mappings[i].QuantityAffected)
	}
	return total
}
