package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDailyBalanceRepository implements ledger.DailyBalanceRepository using GORM
type GormDailyBalanceRepository struct {
	db *gorm.DB
}

// NewGormDailyBalanceRepository creates a new GormDailyBalanceRepository
func NewGormDailyBalanceRepository(db *gorm.DB) *GormDailyBalanceRepository {
	return &GormDailyBalanceRepository{db: db}
}

// FindByID finds a balance row by its ID
func (r *GormDailyBalanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.DailyBalance, error) {
	var row ledger.DailyBalance
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// FindByDate finds the row for one scope and date, nil when absent
func (r *GormDailyBalanceRepository) FindByDate(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, date time.Time) (*ledger.DailyBalance, error) {
	var row ledger.DailyBalance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND balance_date = ?",
			tenantID, scope.GodownID, scope.ProductID, ledger.DateOnly(date)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// FindLatestBefore finds the most recent row strictly before the date, nil
// when the scope has no earlier rows
func (r *GormDailyBalanceRepository) FindLatestBefore(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, date time.Time) (*ledger.DailyBalance, error) {
	var row ledger.DailyBalance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND balance_date < ?",
			tenantID, scope.GodownID, scope.ProductID, ledger.DateOnly(date)).
		Order("balance_date DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// FindAfterForUpdate loads rows strictly after the date ascending, row-locked
// for the cascade rewrite
func (r *GormDailyBalanceRepository) FindAfterForUpdate(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, date time.Time, limit int) ([]ledger.DailyBalance, error) {
	var rows []ledger.DailyBalance
	err := forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND balance_date > ?",
			tenantID, scope.GodownID, scope.ProductID, ledger.DateOnly(date)).
		Order("balance_date ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountAfter counts rows strictly after the date
func (r *GormDailyBalanceRepository) CountAfter(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey, date time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledger.DailyBalance{}).
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND balance_date > ?",
			tenantID, scope.GodownID, scope.ProductID, ledger.DateOnly(date)).
		Count(&count).Error
	return count, err
}

// FindWithPhysicalCount loads rows carrying a recorded physical count
func (r *GormDailyBalanceRepository) FindWithPhysicalCount(ctx context.Context, tenantID uuid.UUID) ([]ledger.DailyBalance, error) {
	var rows []ledger.DailyBalance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND physical_count IS NOT NULL", tenantID).
		Order("balance_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Save upserts a balance row. A unique-index violation on (godown, product,
// date) means a concurrent materialization inserted the row first; the caller
// retries the whole transaction.
func (r *GormDailyBalanceRepository) Save(ctx context.Context, balance *ledger.DailyBalance) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledger.DailyBalance{}).
		Where("id = ?", balance.ID).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count == 0 {
		if err := r.db.WithContext(ctx).Create(balance).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrConcurrencyConflict
			}
			return err
		}
		return nil
	}
	return r.db.WithContext(ctx).Save(balance).Error
}

// Ensure GormDailyBalanceRepository implements ledger.DailyBalanceRepository
var _ ledger.DailyBalanceRepository = (*GormDailyBalanceRepository)(nil)
