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

// terminalVarianceStatuses close an investigation
var terminalVarianceStatuses = []ledger.VarianceStatus{
	ledger.VarianceStatusResolved,
	ledger.VarianceStatusWrittenOff,
	ledger.VarianceStatusDismissed,
}

// GormVarianceRepository implements ledger.VarianceRepository using GORM
type GormVarianceRepository struct {
	db *gorm.DB
}

// NewGormVarianceRepository creates a new GormVarianceRepository
func NewGormVarianceRepository(db *gorm.DB) *GormVarianceRepository {
	return &GormVarianceRepository{db: db}
}

// FindByID finds a variance by its ID
func (r *GormVarianceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Variance, error) {
	var variance ledger.Variance
	if err := r.db.WithContext(ctx).First(&variance, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &variance, nil
}

// FindOpenByDailyBalance returns a non-terminal variance linked to the
// balance row, nil when none is open
func (r *GormVarianceRepository) FindOpenByDailyBalance(ctx context.Context, tenantID, dailyBalanceID uuid.UUID) (*ledger.Variance, error) {
	var variance ledger.Variance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND daily_balance_id = ? AND status NOT IN ?", tenantID, dailyBalanceID, terminalVarianceStatuses).
		First(&variance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variance, nil
}

// FindOpenByTypeAndScope returns a non-terminal variance of the given type
// for the scope, nil when none is open
func (r *GormVarianceRepository) FindOpenByTypeAndScope(ctx context.Context, tenantID uuid.UUID, varianceType ledger.VarianceType, scope ledger.ScopeKey) (*ledger.Variance, error) {
	var variance ledger.Variance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND godown_id = ? AND product_id = ? AND status NOT IN ?",
			tenantID, varianceType, scope.GodownID, scope.ProductID, terminalVarianceStatuses).
		First(&variance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variance, nil
}

// FindOpen loads every open variance for the tenant
func (r *GormVarianceRepository) FindOpen(ctx context.Context, tenantID uuid.UUID) ([]ledger.Variance, error) {
	var variances []ledger.Variance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status NOT IN ?", tenantID, terminalVarianceStatuses).
		Order("created_at ASC").
		Find(&variances).Error
	if err != nil {
		return nil, err
	}
	return variances, nil
}

// NextVarianceNumber returns the next monotonic suffix for the tenant day
func (r *GormVarianceRepository) NextVarianceNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (int64, error) {
	prefix := "VAR-" + date.UTC().Format("20060102") + "-%"
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledger.Variance{}).
		Where("tenant_id = ? AND variance_number LIKE ?", tenantID, prefix).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// Save persists a new variance
func (r *GormVarianceRepository) Save(ctx context.Context, variance *ledger.Variance) error {
	if err := r.db.WithContext(ctx).Create(variance).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// Update persists lifecycle transitions
func (r *GormVarianceRepository) Update(ctx context.Context, variance *ledger.Variance) error {
	return r.db.WithContext(ctx).Save(variance).Error
}

// Ensure GormVarianceRepository implements ledger.VarianceRepository
var _ ledger.VarianceRepository = (*GormVarianceRepository)(nil)
