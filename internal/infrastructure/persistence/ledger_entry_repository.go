package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// effectiveStatuses are the entry statuses that count toward balances
var effectiveStatuses = []ledger.EntryStatus{
	ledger.EntryStatusConfirmed,
	ledger.EntryStatusSystemGenerated,
}

// GormEntryRepository implements ledger.EntryRepository using GORM
type GormEntryRepository struct {
	db *gorm.DB
}

// NewGormEntryRepository creates a new GormEntryRepository
func NewGormEntryRepository(db *gorm.DB) *GormEntryRepository {
	return &GormEntryRepository{db: db}
}

// FindByID finds an entry by its ID
func (r *GormEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.LedgerEntry, error) {
	var entry ledger.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ExistsBySource reports whether a non-cancelled entry already references the
// same source document and kind
func (r *GormEntryRepository) ExistsBySource(ctx context.Context, tenantID uuid.UUID, sourceType ledger.SourceType, sourceID string, kind ledger.EntryKind) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledger.LedgerEntry{}).
		Where("tenant_id = ? AND source_type = ? AND source_id = ? AND kind = ? AND status <> ?",
			tenantID, sourceType, sourceID, kind, ledger.EntryStatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestBalance returns the running balance of the most recent effective
// entry for the scope, row-locked to serialize concurrent appends against the
// same scope. Returns zero for a scope with no history.
func (r *GormEntryRepository) LatestBalance(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey) (decimal.Decimal, error) {
	var entry ledger.LedgerEntry
	err := forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND status IN ?",
			tenantID, scope.GodownID, scope.ProductID, effectiveStatuses).
		Order("transaction_date DESC, created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return entry.BalanceAfter, nil
}

// NextEntryNumber returns the next monotonic suffix for (godown, date).
// Counts every entry regardless of status so cancelled numbers are never
// reissued. Callers must hold the scope lock taken by LatestBalance.
func (r *GormEntryRepository) NextEntryNumber(ctx context.Context, tenantID, godownID uuid.UUID, date time.Time) (int64, error) {
	dayStart := ledger.DateOnly(date)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledger.LedgerEntry{}).
		Where("tenant_id = ? AND godown_id = ? AND transaction_date >= ? AND transaction_date < ?",
			tenantID, godownID, dayStart, dayEnd).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// Append persists a new entry. A unique-index violation on the entry number
// means a concurrent append won the scope.
func (r *GormEntryRepository) Append(ctx context.Context, entry *ledger.LedgerEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// Update persists status transitions of pending entries
func (r *GormEntryRepository) Update(ctx context.Context, entry *ledger.LedgerEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

// SumForDate aggregates effective entries for one exact date
func (r *GormEntryRepository) SumForDate(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, date time.Time) (ledger.MovementSummary, error) {
	dayStart := ledger.DateOnly(date)
	return r.sumBetween(ctx, tenantID, scope, dayStart, dayStart.AddDate(0, 0, 1))
}

// SumThroughDate aggregates effective entries up to and including the date
func (r *GormEntryRepository) SumThroughDate(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, date time.Time) (ledger.MovementSummary, error) {
	end := ledger.DateOnly(date).AddDate(0, 0, 1)
	return r.sumBetween(ctx, tenantID, scope, time.Time{}, end)
}

func (r *GormEntryRepository) sumBetween(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, start, end time.Time) (ledger.MovementSummary, error) {
	var result struct {
		TotalInward  decimal.Decimal
		TotalOutward decimal.Decimal
	}
	query := r.db.WithContext(ctx).
		Model(&ledger.LedgerEntry{}).
		Select("COALESCE(SUM(inward_qty), 0) AS total_inward, COALESCE(SUM(outward_qty), 0) AS total_outward").
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND status IN ? AND transaction_date < ?",
			tenantID, scope.GodownID, scope.ProductID, effectiveStatuses, end)
	if !start.IsZero() {
		query = query.Where("transaction_date >= ?", start)
	}
	if err := query.Scan(&result).Error; err != nil {
		return ledger.MovementSummary{}, err
	}
	return ledger.MovementSummary{TotalInward: result.TotalInward, TotalOutward: result.TotalOutward}, nil
}

// SumInwardByCondition totals effective inward quantity for one condition
func (r *GormEntryRepository) SumInwardByCondition(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, condition ledger.StockCondition) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&ledger.LedgerEntry{}).
		Select("COALESCE(SUM(inward_qty), 0) AS total").
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND status IN ? AND condition = ?",
			tenantID, scope.GodownID, scope.ProductID, effectiveStatuses, condition).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// DistinctDates lists dates with effective entries in the inclusive range,
// ascending. Timestamps are truncated in Go to stay portable across dialect
// date functions.
func (r *GormEntryRepository) DistinctDates(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, from, to time.Time) ([]time.Time, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).
		Model(&ledger.LedgerEntry{}).
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND status IN ? AND transaction_date >= ? AND transaction_date < ?",
			tenantID, scope.GodownID, scope.ProductID, effectiveStatuses,
			ledger.DateOnly(from), ledger.DateOnly(to).AddDate(0, 0, 1)).
		Order("transaction_date ASC").
		Pluck("transaction_date", &stamps).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[time.Time]bool, len(stamps))
	dates := make([]time.Time, 0, len(stamps))
	for _, ts := range stamps {
		day := ledger.DateOnly(ts)
		if !seen[day] {
			seen[day] = true
			dates = append(dates, day)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// Ensure GormEntryRepository implements ledger.EntryRepository
var _ ledger.EntryRepository = (*GormEntryRepository)(nil)
