package persistence

import (
	"context"

	appledger "github.com/godown/backend/internal/application/ledger"
	"github.com/godown/backend/internal/domain/ledger"
	"gorm.io/gorm"
)

// GormTransactionScope implements the ledger TransactionScope using GORM
// transactions. Every repository handed to the callback shares one database
// transaction, so a failure anywhere rolls back the entry, its mappings, the
// batch mutations, and the balance rewrite together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Batches returns the batch repository scoped to the current transaction
func (r *gormTransactionalRepositories) Batches() ledger.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

// Entries returns the entry repository scoped to the current transaction
func (r *gormTransactionalRepositories) Entries() ledger.EntryRepository {
	return NewGormEntryRepository(r.tx)
}

// Mappings returns the mapping repository scoped to the current transaction
func (r *gormTransactionalRepositories) Mappings() ledger.MappingRepository {
	return NewGormMappingRepository(r.tx)
}

// DailyBalances returns the daily balance repository scoped to the current transaction
func (r *gormTransactionalRepositories) DailyBalances() ledger.DailyBalanceRepository {
	return NewGormDailyBalanceRepository(r.tx)
}

// Variances returns the variance repository scoped to the current transaction
func (r *gormTransactionalRepositories) Variances() ledger.VarianceRepository {
	return NewGormVarianceRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appledger.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appledger.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
