package persistence

import (
	"context"

	"github.com/godown/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMappingRepository implements ledger.MappingRepository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// FindByEntry loads all mappings written for one ledger entry
func (r *GormMappingRepository) FindByEntry(ctx context.Context, entryID uuid.UUID) ([]ledger.BatchMapping, error) {
	var mappings []ledger.BatchMapping
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("created_at ASC").
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

// FindByIDs loads mappings by their identifiers
func (r *GormMappingRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.BatchMapping, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var mappings []ledger.BatchMapping
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

// Save persists one mapping row
func (r *GormMappingRepository) Save(ctx context.Context, mapping *ledger.BatchMapping) error {
	return r.db.WithContext(ctx).Create(mapping).Error
}

// SaveAll persists a set of mapping rows
func (r *GormMappingRepository) SaveAll(ctx context.Context, mappings []*ledger.BatchMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(mappings).Error
}

// Ensure GormMappingRepository implements ledger.MappingRepository
var _ ledger.MappingRepository = (*GormMappingRepository)(nil)
