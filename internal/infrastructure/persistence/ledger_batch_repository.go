package persistence

import (
	"context"
	"errors"

	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds a row-level exclusive lock on dialects that support it.
// SQLite serializes writers at the database level, so the clause is skipped
// there rather than producing invalid SQL.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// GormBatchRepository implements ledger.BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.InventoryBatch, error) {
	var batch ledger.InventoryBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindAvailableForAllocation loads allocatable batches oldest first,
// row-locked for the FIFO walk.
func (r *GormBatchRepository) FindAvailableForAllocation(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey) ([]ledger.InventoryBatch, error) {
	var batches []ledger.InventoryBatch
	err := forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND available > 0", tenantID, scope.GodownID, scope.ProductID).
		Order("received_at ASC, created_at ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// FindActiveByScope loads all active batches for the scope
func (r *GormBatchRepository) FindActiveByScope(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey) ([]ledger.InventoryBatch, error) {
	var batches []ledger.InventoryBatch
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND status = ?", tenantID, scope.GodownID, scope.ProductID, ledger.BatchStatusActive).
		Order("received_at ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// ActiveScopes lists every (godown, product) pair with active batches
func (r *GormBatchRepository) ActiveScopes(ctx context.Context, tenantID uuid.UUID) ([]ledger.ScopeKey, error) {
	var scopes []ledger.ScopeKey
	err := r.db.WithContext(ctx).
		Model(&ledger.InventoryBatch{}).
		Distinct("godown_id", "product_id").
		Where("tenant_id = ? AND status = ?", tenantID, ledger.BatchStatusActive).
		Find(&scopes).Error
	if err != nil {
		return nil, err
	}
	return scopes, nil
}

// SumOnHand totals the physical stock held by active batches for the scope.
// Damaged bags count: they sit in the godown and the ledger balance includes
// them, so the integrity comparison must too.
func (r *GormBatchRepository) SumOnHand(ctx context.Context, tenantID uuid.UUID, scope ledger.ScopeKey) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&ledger.InventoryBatch{}).
		Select("COALESCE(SUM(available + reserved + damaged), 0) AS total").
		Where("tenant_id = ? AND godown_id = ? AND product_id = ? AND status = ?", tenantID, scope.GodownID, scope.ProductID, ledger.BatchStatusActive).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Save persists a new batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *ledger.InventoryBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// Update persists counter changes on an existing batch
func (r *GormBatchRepository) Update(ctx context.Context, batch *ledger.InventoryBatch) error {
	result := r.db.WithContext(ctx).Save(batch)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormBatchRepository implements ledger.BatchRepository
var _ ledger.BatchRepository = (*GormBatchRepository)(nil)
