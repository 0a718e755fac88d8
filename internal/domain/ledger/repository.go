package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScopeKey identifies one (godown, product) inventory scope
type ScopeKey struct {
	GodownID  uuid.UUID
	ProductID uuid.UUID
}

// MovementSummary aggregates inward and outward quantities over a date range
type MovementSummary struct {
	TotalInward  decimal.Decimal
	TotalOutward decimal.Decimal
}

// Net returns inward minus outward
func (s MovementSummary) Net() decimal.Decimal {
	return s.TotalInward.Sub(s.TotalOutward)
}

// BatchRepository persists inventory batches
type BatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryBatch, error)
	// FindAvailableForAllocation loads batches with available stock for the
	// scope, oldest received first, row-locked so the read-then-decrement of
	// the FIFO walk cannot race a concurrent outward event.
	FindAvailableForAllocation(ctx context.Context, tenantID uuid.UUID, scope ScopeKey) ([]InventoryBatch, error)
	// FindActiveByScope loads all active batches for the scope without locking
	FindActiveByScope(ctx context.Context, tenantID uuid.UUID, scope ScopeKey) ([]InventoryBatch, error)
	// ActiveScopes lists every (godown, product) pair that has active batches
	ActiveScopes(ctx context.Context, tenantID uuid.UUID) ([]ScopeKey, error)
	// SumOnHand returns the sum of available+reserved+damaged across active batches
	SumOnHand(ctx context.Context, tenantID uuid.UUID, scope ScopeKey) (decimal.Decimal, error)
	Save(ctx context.Context, batch *InventoryBatch) error
	Update(ctx context.Context, batch *InventoryBatch) error
}

// EntryRepository persists ledger entries
type EntryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)
	// ExistsBySource reports whether an effective or pending entry already
	// references the same source document and kind. The translator's
	// idempotency check.
	ExistsBySource(ctx context.Context, tenantID uuid.UUID, sourceType SourceType, sourceID string, kind EntryKind) (bool, error)
	// LatestBalance returns the balance-after of the most recent effective
	// entry for the scope, ordered by transaction date then creation order,
	// row-locked to serialize concurrent appends. Returns zero when the
	// scope has no entries.
	LatestBalance(ctx context.Context, tenantID uuid.UUID, scope ScopeKey) (decimal.Decimal, error)
	// NextEntryNumber returns the next monotonic suffix for (godown, date)
	NextEntryNumber(ctx context.Context, tenantID, godownID uuid.UUID, date time.Time) (int64, error)
	Append(ctx context.Context, entry *LedgerEntry) error
	// Update persists status transitions of pending entries. Effective
	// entries are immutable and must not pass through here.
	Update(ctx context.Context, entry *LedgerEntry) error
	// SumForDate aggregates effective entries for one exact date
	SumForDate(ctx context.Context, tenantID uuid.UUID, scope ScopeKey, date time.Time) (MovementSummary, error)
	// SumThroughDate aggregates effective entries up to and including a date
	SumThroughDate(ctx context.Context, tenantID uuid.UUID, scope ScopeKey, date time.Time) (MovementSummary, error)
	// SumInwardByCondition totals effective inward quantity for one condition
	SumInwardByCondition(ctx context.Context, tenantID uuid.UUID, scope ScopeKey, condition StockCondition) (decimal.Decimal, error)
	// DistinctDates lists dates having effective entries for the scope,
	// ascending, within the inclusive range
	DistinctDates(ctx context.Context, tenantID uuid.UUID, scope ScopeKey, from, to time.Time) ([]time.Time, error)
}

// MappingRepository persists entry-to-batch mapping rows
type MappingRepository interface {
	FindByEntry(ctx context.Context, entryID uuid.UUID) ([]BatchMapping, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]BatchMapping, error)
	Save(ctx context.Context, mapping *BatchMapping) error
	SaveAll(ctx context.Context, mappings []*BatchMapping) error
}

// DailyBalanceRepository persists materialized daily balance rows
type DailyBalanceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*DailyBalance, error)
	FindByDate(ctx context.Context, tenantID uuid.UUID, scope ScopeKey, date time.Time) (*DailyBalance, error)
	// FindLatestBefore returns the most recent row strictly before the date
	FindLatestBefore(ctx context.Context, tenantID uuid.UUID, scope ScopeKey, date time.Time) (*DailyBalance, error)
	// FindAfterForUpdate loads rows strictly after the date in ascending
	// order, row-locked for the cascade rewrite, up to the limit
	FindAfterForUpdate(ctx context.Context, tenantID uuid.UUID, scope ScopeKey, date time.Time, limit int) ([]DailyBalance, error)
	// CountAfter counts rows strictly after the date
	CountAfter(ctx context.Context, tenantID uuid.UUID, scope ScopeKey, date time.Time) (int64, error)
	// FindWithPhysicalCount loads rows carrying a physical count for the
	// tenant, the count-based detector's work list
	FindWithPhysicalCount(ctx context.Context, tenantID uuid.UUID) ([]DailyBalance, error)
	Save(ctx context.Context, balance *DailyBalance) error
}

// VarianceRepository persists variance investigation records
type VarianceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Variance, error)
	// FindOpenByDailyBalance returns a non-terminal variance linked to the
	// balance row, or nil
	FindOpenByDailyBalance(ctx context.Context, tenantID, dailyBalanceID uuid.UUID) (*Variance, error)
	// FindOpenByTypeAndScope returns a non-terminal variance of the given
	// type for the scope, or nil
	FindOpenByTypeAndScope(ctx context.Context, tenantID uuid.UUID, varianceType VarianceType, scope ScopeKey) (*Variance, error)
	FindOpen(ctx context.Context, tenantID uuid.UUID) ([]Variance, error)
	// NextVarianceNumber returns the next monotonic suffix for the tenant day
	NextVarianceNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (int64, error)
	Save(ctx context.Context, variance *Variance) error
	Update(ctx context.Context, variance *Variance) error
}
