package ledger

import (
	"context"

	"github.com/godown/backend/internal/domain/ledger"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every business event in this subsystem (translation, materialization,
// adjustment) runs as one atomic unit; any failure rolls back the whole unit
// so a ledger entry is never persisted without its batch mappings and balance
// update.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within
// a transaction. All repositories returned share the same underlying database
// transaction.
type TransactionalRepositories interface {
	// Batches returns the inventory batch repository scoped to the current transaction
	Batches() ledger.BatchRepository
	// Entries returns the ledger entry repository scoped to the current transaction
	Entries() ledger.EntryRepository
	// Mappings returns the batch mapping repository scoped to the current transaction
	Mappings() ledger.MappingRepository
	// DailyBalances returns the daily balance repository scoped to the current transaction
	DailyBalances() ledger.DailyBalanceRepository
	// Variances returns the variance repository scoped to the current transaction
	Variances() ledger.VarianceRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for tests running against plain repositories.
type NoOpTransactionScope struct {
	batchRepo    ledger.BatchRepository
	entryRepo    ledger.EntryRepository
	mappingRepo  ledger.MappingRepository
	balanceRepo  ledger.DailyBalanceRepository
	varianceRepo ledger.VarianceRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	batchRepo ledger.BatchRepository,
	entryRepo ledger.EntryRepository,
	mappingRepo ledger.MappingRepository,
	balanceRepo ledger.DailyBalanceRepository,
	varianceRepo ledger.VarianceRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		batchRepo:    batchRepo,
		entryRepo:    entryRepo,
		mappingRepo:  mappingRepo,
		balanceRepo:  balanceRepo,
		varianceRepo: varianceRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Batches returns the inventory batch repository.
func (s *NoOpTransactionScope) Batches() ledger.BatchRepository {
	return s.batchRepo
}

// Entries returns the ledger entry repository.
func (s *NoOpTransactionScope) Entries() ledger.EntryRepository {
	return s.entryRepo
}

// Mappings returns the batch mapping repository.
func (s *NoOpTransactionScope) Mappings() ledger.MappingRepository {
	return s.mappingRepo
}

// DailyBalances returns the daily balance repository.
func (s *NoOpTransactionScope) DailyBalances() ledger.DailyBalanceRepository {
	return s.balanceRepo
}

// Variances returns the variance repository.
func (s *NoOpTransactionScope) Variances() ledger.VarianceRepository {
	return s.varianceRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
