package ledger

import (
	"fmt"
	"time"

	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind represents the transaction kind of a ledger entry
type EntryKind string

const (
	EntryKindInwardReceipt     EntryKind = "INWARD_RECEIPT"
	EntryKindInwardAdjustment  EntryKind = "INWARD_ADJUSTMENT"
	EntryKindInwardReturn      EntryKind = "INWARD_RETURN"
	EntryKindInwardOpening     EntryKind = "INWARD_OPENING"
	EntryKindOutwardLoading    EntryKind = "OUTWARD_LOADING"
	EntryKindOutwardCrossover  EntryKind = "OUTWARD_CROSSOVER"
	EntryKindOutwardDamage     EntryKind = "OUTWARD_DAMAGE"
	EntryKindOutwardAdjustment EntryKind = "OUTWARD_ADJUSTMENT"
	EntryKindOutwardClosing    EntryKind = "OUTWARD_CLOSING"
	EntryKindBalanceAdjustment EntryKind = "BALANCE_ADJUSTMENT"
)

// String returns the string representation of EntryKind
func (k EntryKind) String() string {
	return string(k)
}

// IsValid returns true if the entry kind is valid
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryKindInwardReceipt,
		EntryKindInwardAdjustment,
		EntryKindInwardReturn,
		EntryKindInwardOpening,
		EntryKindOutwardLoading,
		EntryKindOutwardCrossover,
		EntryKindOutwardDamage,
		EntryKindOutwardAdjustment,
		EntryKindOutwardClosing,
		EntryKindBalanceAdjustment:
		return true
	}
	return false
}

// IsInward returns true for kinds that add stock
func (k EntryKind) IsInward() bool {
	switch k {
	case EntryKindInwardReceipt, EntryKindInwardAdjustment, EntryKindInwardReturn, EntryKindInwardOpening:
		return true
	}
	return false
}

// IsOutward returns true for kinds that remove stock
func (k EntryKind) IsOutward() bool {
	switch k {
	case EntryKindOutwardLoading, EntryKindOutwardCrossover, EntryKindOutwardDamage,
		EntryKindOutwardAdjustment, EntryKindOutwardClosing:
		return true
	}
	return false
}

// AllowsZeroMovement returns true for kinds where both quantities may be zero.
// Opening and closing entries are bookkeeping markers, not movements.
func (k EntryKind) AllowsZeroMovement() bool {
	return k == EntryKindInwardOpening || k == EntryKindOutwardClosing
}

// EntryStatus represents the lifecycle state of a ledger entry
type EntryStatus string

const (
	// EntryStatusPending means the entry awaits approval and does not count
	// toward the running balance
	EntryStatusPending EntryStatus = "PENDING"
	// EntryStatusConfirmed means the entry is effective
	EntryStatusConfirmed EntryStatus = "CONFIRMED"
	// EntryStatusSystemGenerated marks entries written by the translator
	// rather than a human; effective like confirmed
	EntryStatusSystemGenerated EntryStatus = "SYSTEM_GENERATED"
	// EntryStatusCancelled means the entry was voided before confirmation
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// IsEffective returns true if entries in this status count toward balances
func (s EntryStatus) IsEffective() bool {
	return s == EntryStatusConfirmed || s == EntryStatusSystemGenerated
}

// StockCondition classifies the physical condition a movement concerns
type StockCondition string

const (
	StockConditionGood    StockCondition = "GOOD"
	StockConditionDamaged StockCondition = "DAMAGED"
	StockConditionMixed   StockCondition = "MIXED"
)

// SourceType identifies the external document that caused a ledger entry
type SourceType string

const (
	SourceTypeArrival          SourceType = "ARRIVAL"
	SourceTypeLoading          SourceType = "LOADING"
	SourceTypeCrossover        SourceType = "CROSSOVER"
	SourceTypeChallan          SourceType = "CHALLAN"
	SourceTypeDirectReceipt    SourceType = "DIRECT_RECEIPT"
	SourceTypeManualAdjustment SourceType = "MANUAL_ADJUSTMENT"
	SourceTypeVariance         SourceType = "VARIANCE"
)

// LedgerEntry is one immutable record of a single stock movement. Corrections
// are never in-place edits; they are new entries referencing the original via
// ParentEntryID.
type LedgerEntry struct {
	shared.BaseEntity
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_ledger_entry_number,priority:1"`
	EntryNumber     string          `gorm:"type:varchar(40);not null;uniqueIndex:uq_ledger_entry_number,priority:2"`
	GodownID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_scope,priority:1"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_scope,priority:2"`
	Kind            EntryKind       `gorm:"type:varchar(30);not null;index"`
	InwardQty       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OutwardQty      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SourceType      SourceType      `gorm:"type:varchar(30);index:idx_ledger_source,priority:1"`
	SourceID        string          `gorm:"type:varchar(100);index:idx_ledger_source,priority:2"`
	ParentEntryID   *uuid.UUID      `gorm:"type:uuid;index"`
	Status          EntryStatus     `gorm:"type:varchar(20);not null;index"`
	SystemGenerated bool            `gorm:"not null"`
	Condition       StockCondition  `gorm:"type:varchar(10);not null"`
	Notes           string          `gorm:"type:varchar(500)"`
	TransactionDate time.Time       `gorm:"type:timestamptz;not null;index:idx_ledger_scope,priority:3"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "ledger_entry"
}

// NewLedgerEntry creates a ledger entry and validates the movement invariant:
// exactly one of inward/outward must be non-zero, except opening and closing
// kinds which may carry zero on both sides.
func NewLedgerEntry(
	tenantID, godownID, productID uuid.UUID,
	kind EntryKind,
	inwardQty, outwardQty decimal.Decimal,
	previousBalance decimal.Decimal,
	transactionDate time.Time,
) (*LedgerEntry, error) {
	if tenantID == uuid.Nil || godownID == uuid.Nil || productID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRANSACTION", "Unknown ledger entry kind")
	}
	if inwardQty.IsNegative() || outwardQty.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TRANSACTION", "Ledger quantities cannot be negative")
	}

	hasInward := inwardQty.GreaterThan(decimal.Zero)
	hasOutward := outwardQty.GreaterThan(decimal.Zero)
	if hasInward && hasOutward {
		return nil, shared.ErrInvalidTransaction
	}
	if !hasInward && !hasOutward && !kind.AllowsZeroMovement() {
		return nil, shared.ErrInvalidTransaction
	}

	balanceAfter := previousBalance.Add(inwardQty).Sub(outwardQty)

	return &LedgerEntry{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        tenantID,
		GodownID:        godownID,
		ProductID:       productID,
		Kind:            kind,
		InwardQty:       inwardQty,
		OutwardQty:      outwardQty,
		BalanceAfter:    balanceAfter,
		Status:          EntryStatusConfirmed,
		Condition:       StockConditionGood,
		TransactionDate: transactionDate,
	}, nil
}

// WithEntryNumber sets the scoped sequential identifier
func (e *LedgerEntry) WithEntryNumber(number string) *LedgerEntry {
	e.EntryNumber = number
	return e
}

// WithSource sets the source document reference
func (e *LedgerEntry) WithSource(sourceType SourceType, sourceID string) *LedgerEntry {
	e.SourceType = sourceType
	e.SourceID = sourceID
	return e
}

// WithCondition sets the stock condition for the movement
func (e *LedgerEntry) WithCondition(condition StockCondition) *LedgerEntry {
	e.Condition = condition
	return e
}

// WithNotes sets free-form notes on the entry
func (e *LedgerEntry) WithNotes(notes string) *LedgerEntry {
	e.Notes = notes
	return e
}

// WithStatus sets the entry status
func (e *LedgerEntry) WithStatus(status EntryStatus) *LedgerEntry {
	e.Status = status
	e.SystemGenerated = status == EntryStatusSystemGenerated
	return e
}

// AsSystemGenerated marks the entry as written by the translator
func (e *LedgerEntry) AsSystemGenerated() *LedgerEntry {
	e.Status = EntryStatusSystemGenerated
	e.SystemGenerated = true
	return e
}

// WithParent links a correction entry to the original it corrects.
// A correction cannot reference another correction; the parent chain is at
// most one level deep.
func (e *LedgerEntry) WithParent(parent *LedgerEntry) (*LedgerEntry, error) {
	if parent == nil {
		return nil, shared.ErrInvalidInput
	}
	if parent.ParentEntryID != nil {
		return nil, shared.NewDomainError("INVALID_TRANSACTION", "Cannot correct a correction entry")
	}
	if parent.ID == e.ID {
		return nil, shared.NewDomainError("INVALID_TRANSACTION", "Entry cannot reference itself as parent")
	}
	id := parent.ID
	e.ParentEntryID = &id
	return e, nil
}

// SignedQuantity returns the net movement: inward positive, outward negative
func (e *LedgerEntry) SignedQuantity() decimal.Decimal {
	return e.InwardQty.Sub(e.OutwardQty)
}

// IsEffective returns true if the entry counts toward running balances
func (e *LedgerEntry) IsEffective() bool {
	return e.Status.IsEffective()
}

// Confirm transitions a pending entry to confirmed and recomputes its balance
// against the balance current at approval time.
func (e *LedgerEntry) Confirm(previousBalance decimal.Decimal) error {
	if e.Status != EntryStatusPending {
		return shared.ErrInvalidState
	}
	e.Status = EntryStatusConfirmed
	e.BalanceAfter = previousBalance.Add(e.InwardQty).Sub(e.OutwardQty)
	e.UpdatedAt = time.Now()
	return nil
}

// Cancel voids a pending entry
func (e *LedgerEntry) Cancel() error {
	if e.Status != EntryStatusPending {
		return shared.ErrInvalidState
	}
	e.Status = EntryStatusCancelled
	e.UpdatedAt = time.Now()
	return nil
}

// BalanceDate returns the entry's transaction date truncated to midnight UTC,
// the granularity daily balances are keyed on.
func (e *LedgerEntry) BalanceDate() time.Time {
	return DateOnly(e.TransactionDate)
}

// DateOnly truncates a timestamp to midnight UTC
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatEntryNumber renders the scoped sequential identifier,
// e.g. LED-3f2a8c1d-20260115-0007.
func FormatEntryNumber(godownID uuid.UUID, date time.Time, seq int64) string {
	return fmt.Sprintf("LED-%s-%s-%04d", godownID.String()[:8], date.UTC().Format("20060102"), seq)
}
