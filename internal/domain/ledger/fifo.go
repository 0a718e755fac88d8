package ledger

import (
	"sort"

	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchConsumption is one planned deduction against a single batch
type BatchConsumption struct {
	BatchID       uuid.UUID
	Quantity      decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	FullyConsumed bool
}

// AllocationPlan is the outcome of a FIFO walk over the available batches.
// Shortfall is non-zero only when the caller opted into back-ordering.
type AllocationPlan struct {
	Requested    decimal.Decimal
	Consumptions []BatchConsumption
	Allocated    decimal.Decimal
	Shortfall    decimal.Decimal
}

// FullyAllocated returns true if the plan covers the requested quantity
func (p *AllocationPlan) FullyAllocated() bool {
	return p.Shortfall.IsZero()
}

// AllocationOptions tunes FIFO allocation behavior
type AllocationOptions struct {
	// AllowShortfall permits a plan that covers less than the requested
	// quantity. Without it, an exhausted batch pool fails the allocation.
	AllowShortfall bool
}

// FIFOAllocator plans batch consumption oldest-received-first. It is a pure
// calculation; applying the plan to batch entities and persisting mappings is
// the caller's responsibility, inside the same transaction as the ledger
// write.
type FIFOAllocator struct {
	options AllocationOptions
}

// NewFIFOAllocator creates an allocator that fails on under-allocation
func NewFIFOAllocator() *FIFOAllocator {
	return &FIFOAllocator{}
}

// NewFIFOAllocatorWithOptions creates an allocator with explicit options
func NewFIFOAllocatorWithOptions(options AllocationOptions) *FIFOAllocator {
	return &FIFOAllocator{options: options}
}

// Allocate walks the candidate batches oldest-received-first and plans
// consumption until the requested quantity is covered. If the batches are
// exhausted first, it returns ErrUnderAllocated unless AllowShortfall is set,
// in which case the plan carries the uncovered remainder in Shortfall.
func (a *FIFOAllocator) Allocate(requested decimal.Decimal, batches []InventoryBatch) (*AllocationPlan, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	candidates := make([]InventoryBatch, 0, len(batches))
	for _, b := range batches {
		if b.HasStock() {
			candidates = append(candidates, b)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ReceivedAt.Equal(candidates[j].ReceivedAt) {
			return candidates[i].ReceivedAt.Before(candidates[j].ReceivedAt)
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	plan := &AllocationPlan{
		Requested:    requested,
		Consumptions: make([]BatchConsumption, 0, len(candidates)),
		Allocated:    decimal.Zero,
	}

	remaining := requested
	for _, batch := range candidates {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, batch.Available)
		after := batch.Available.Sub(take)
		plan.Consumptions = append(plan.Consumptions, BatchConsumption{
			BatchID:       batch.ID,
			Quantity:      take,
			BalanceBefore: batch.Available,
			BalanceAfter:  after,
			FullyConsumed: after.IsZero(),
		})
		plan.Allocated = plan.Allocated.Add(take)
		remaining = remaining.Sub(take)
	}

	plan.Shortfall = remaining
	if !plan.FullyAllocated() && !a.options.AllowShortfall {
		return nil, shared.ErrUnderAllocated
	}
	return plan, nil
}

// ApplyPlan executes a plan against the loaded batch entities. The caller
// must pass the same batch rows the plan was computed from, row-locked for
// the duration of the surrounding transaction.
func ApplyPlan(plan *AllocationPlan, batches []*InventoryBatch) error {
	if plan == nil {
		return shared.ErrInvalidInput
	}

	byID := make(map[uuid.UUID]*InventoryBatch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}

	for _, c := range plan.Consumptions {
		batch, ok := byID[c.BatchID]
		if !ok {
			return shared.NewDomainError("BATCH_NOT_FOUND", "Batch not found: "+c.BatchID.String())
		}
		if !batch.Available.Equal(c.BalanceBefore) {
			return shared.ErrConcurrencyConflict
		}
		if err := batch.Deduct(c.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// BuildMappings converts a plan into mapping rows for the given entry
func BuildMappings(plan *AllocationPlan, entry *LedgerEntry) ([]*BatchMapping, error) {
	if plan == nil || entry == nil {
		return nil, shared.ErrInvalidInput
	}
	mappings := make([]*BatchMapping, 0, len(plan.Consumptions))
	for _, c := range plan.Consumptions {
		m, err := NewBatchMapping(entry.TenantID, entry.ID, c.BatchID, c.Quantity, c.BalanceBefore, c.BalanceAfter)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}
