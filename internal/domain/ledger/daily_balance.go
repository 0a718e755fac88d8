package ledger

import (
	"time"

	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceStatus represents the verification state of a daily balance row
type BalanceStatus string

const (
	// BalanceStatusCalculated means the row is derived from the ledger only
	BalanceStatusCalculated BalanceStatus = "CALCULATED"
	// BalanceStatusVerified means a physical count matched the closing balance
	BalanceStatusVerified BalanceStatus = "VERIFIED"
	// BalanceStatusDiscrepancy means a physical count disagreed with the ledger
	BalanceStatusDiscrepancy BalanceStatus = "DISCREPANCY"
	// BalanceStatusAdjusted means a correcting entry resolved a discrepancy
	BalanceStatusAdjusted BalanceStatus = "ADJUSTED"
)

// DailyBalance is one materialized row per (godown, product, calendar date).
// The chain invariant opening[d] == closing[d-1] is maintained by the
// materializer, not here; this type only guarantees closing = opening +
// inward - outward for its own row.
type DailyBalance struct {
	shared.BaseEntity
	TenantID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	GodownID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uq_daily_balance,priority:1"`
	ProductID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uq_daily_balance,priority:2"`
	BalanceDate    time.Time        `gorm:"type:date;not null;uniqueIndex:uq_daily_balance,priority:3"`
	Opening        decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	TotalInward    decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	TotalOutward   decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Closing        decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	PhysicalCount  *decimal.Decimal `gorm:"type:decimal(18,4)"`
	VarianceQty    decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Status         BalanceStatus    `gorm:"type:varchar(20);not null;index"`
	ActiveBatches  int              `gorm:"not null"`
	OldestBatchAge int              `gorm:"not null"` // days
	GoodBags       decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	DamagedBags    decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (DailyBalance) TableName() string {
	return "daily_balance"
}

// NewDailyBalance creates a balance row for one scope and date
func NewDailyBalance(tenantID, godownID, productID uuid.UUID, date time.Time) *DailyBalance {
	return &DailyBalance{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		GodownID:     godownID,
		ProductID:    productID,
		BalanceDate:  DateOnly(date),
		Opening:      decimal.Zero,
		TotalInward:  decimal.Zero,
		TotalOutward: decimal.Zero,
		Closing:      decimal.Zero,
		VarianceQty:  decimal.Zero,
		Status:       BalanceStatusCalculated,
		GoodBags:     decimal.Zero,
		DamagedBags:  decimal.Zero,
	}
}

// SetTotals replaces the day's aggregates and recomputes closing
func (d *DailyBalance) SetTotals(inward, outward decimal.Decimal) {
	d.TotalInward = inward
	d.TotalOutward = outward
	d.recomputeClosing()
}

// SetOpening replaces the opening balance and recomputes closing
func (d *DailyBalance) SetOpening(opening decimal.Decimal) {
	d.Opening = opening
	d.recomputeClosing()
}

func (d *DailyBalance) recomputeClosing() {
	d.Closing = d.Opening.Add(d.TotalInward).Sub(d.TotalOutward)
	if d.PhysicalCount != nil {
		d.recomputeVariance()
	}
	d.UpdatedAt = time.Now()
}

// ApplyPhysicalCount records a physical stock count and recomputes variance
// and status against the current closing balance.
func (d *DailyBalance) ApplyPhysicalCount(count decimal.Decimal) error {
	if count.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Physical count cannot be negative")
	}
	c := count
	d.PhysicalCount = &c
	d.recomputeVariance()
	d.UpdatedAt = time.Now()
	return nil
}

func (d *DailyBalance) recomputeVariance() {
	if d.PhysicalCount == nil {
		return
	}
	d.VarianceQty = d.PhysicalCount.Sub(d.Closing)
	if d.Status == BalanceStatusAdjusted {
		return
	}
	if d.VarianceQty.IsZero() {
		d.Status = BalanceStatusVerified
	} else {
		d.Status = BalanceStatusDiscrepancy
	}
}

// MarkAdjusted records that a correcting ledger entry resolved the discrepancy
func (d *DailyBalance) MarkAdjusted() {
	d.Status = BalanceStatusAdjusted
	d.UpdatedAt = time.Now()
}

// SetBatchSummary records the batch-store snapshot for the day
func (d *DailyBalance) SetBatchSummary(activeBatches, oldestAgeDays int, goodBags, damagedBags decimal.Decimal) {
	d.ActiveBatches = activeBatches
	d.OldestBatchAge = oldestAgeDays
	d.GoodBags = goodBags
	d.DamagedBags = damagedBags
}

// ChainConsistentWith reports whether this row's opening matches the previous
// row's closing.
func (d *DailyBalance) ChainConsistentWith(previous *DailyBalance) bool {
	if previous == nil {
		return d.Opening.IsZero()
	}
	return d.Opening.Equal(previous.Closing)
}
