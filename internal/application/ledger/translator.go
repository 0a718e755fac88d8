package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TranslationResult reports what a translation produced. Duplicate means the
// idempotency check found an existing entry for the same source and kind; the
// call is a successful no-op, not an error, so at-least-once delivery is safe.
type TranslationResult struct {
	Entries   []*ledger.LedgerEntry
	Duplicate bool
}

// TranslatorConfig tunes the translator
type TranslatorConfig struct {
	// AllowShortfall lets crossover allocation proceed when the batch pool
	// cannot cover the transferred quantity. The uncovered remainder is
	// recorded on the entry notes as a back-order marker. Without it,
	// exhausted batches fail the whole transaction.
	AllowShortfall bool
}

// TranslatorService converts inbound domain events into ledger entries.
// Every Handle method runs one atomic transaction spanning the idempotency
// check, the balance lookup, the entry append, any batch work, and the daily
// balance materialization.
type TranslatorService struct {
	scope        TransactionScope
	materializer *MaterializerService
	config       TranslatorConfig
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewTranslatorService creates a translator
func NewTranslatorService(
	scope TransactionScope,
	materializer *MaterializerService,
	config TranslatorConfig,
	logger *zap.Logger,
) *TranslatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranslatorService{
		scope:        scope,
		materializer: materializer,
		config:       config,
		validate:     validator.New(),
		logger:       logger,
	}
}

// HandleArrivalConfirmed writes one inward-receipt entry for the good
// quantity and, when damaged bags arrived, a second inward-receipt entry
// tagged with the damaged condition. A new FIFO batch is opened for the lot.
func (s *TranslatorService) HandleArrivalConfirmed(ctx context.Context, evt *ledger.ArrivalConfirmed) (*TranslationResult, error) {
	if err := s.validate.Struct(evt); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid arrival event: %v", err))
	}
	if evt.GoodQty.Add(evt.DamagedQty).LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Arrival must carry at least one unit")
	}

	result := &TranslationResult{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Entries().ExistsBySource(ctx, evt.TenantID(), ledger.SourceTypeArrival, evt.SourceRef, ledger.EntryKindInwardReceipt)
		if err != nil {
			return err
		}
		if exists {
			result.Duplicate = true
			return nil
		}

		scope := ledger.ScopeKey{GodownID: evt.GodownID, ProductID: evt.ProductID}
		balance, err := repos.Entries().LatestBalance(ctx, evt.TenantID(), scope)
		if err != nil {
			return err
		}

		if evt.GoodQty.GreaterThan(decimal.Zero) {
			entry, err := appendEntry(ctx, repos, entrySpec{
				tenantID:  evt.TenantID(),
				scope:     scope,
				kind:      ledger.EntryKindInwardReceipt,
				inward:    evt.GoodQty,
				previous:  balance,
				source:    ledger.SourceTypeArrival,
				sourceID:  evt.SourceRef,
				condition: ledger.StockConditionGood,
				notes:     evt.Notes,
				date:      evt.OccurredAt(),
			})
			if err != nil {
				return err
			}
			balance = entry.BalanceAfter
			result.Entries = append(result.Entries, entry)
		}

		if evt.DamagedQty.GreaterThan(decimal.Zero) {
			entry, err := appendEntry(ctx, repos, entrySpec{
				tenantID:  evt.TenantID(),
				scope:     scope,
				kind:      ledger.EntryKindInwardReceipt,
				inward:    evt.DamagedQty,
				previous:  balance,
				source:    ledger.SourceTypeArrival,
				sourceID:  evt.SourceRef,
				condition: ledger.StockConditionDamaged,
				notes:     "Damaged on arrival",
				date:      evt.OccurredAt(),
			})
			if err != nil {
				return err
			}
			result.Entries = append(result.Entries, entry)
		}

		grade := evt.Grade
		if grade == "" {
			grade = ledger.QualityGradeA
		}
		batch, err := ledger.NewInventoryBatch(evt.TenantID(), evt.GodownID, evt.ProductID,
			evt.SourceRef, evt.OccurredAt(), evt.GoodQty, evt.DamagedQty, grade)
		if err != nil {
			return err
		}
		if err := repos.Batches().Save(ctx, batch); err != nil {
			return err
		}

		return s.materializeAll(ctx, repos, result.Entries)
	})
	if err != nil {
		return nil, err
	}
	s.logTranslation("arrival_confirmed", evt.SourceRef, result)
	return result, nil
}

// HandleLoadingConfirmed writes one outward-loading entry. Loadings carry no
// FIFO batch linkage by business rule.
func (s *TranslatorService) HandleLoadingConfirmed(ctx context.Context, evt *ledger.LoadingConfirmed) (*TranslationResult, error) {
	if err := s.validate.Struct(evt); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid loading event: %v", err))
	}
	if evt.LoadedQty.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Loaded quantity must be positive")
	}

	result := &TranslationResult{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Entries().ExistsBySource(ctx, evt.TenantID(), ledger.SourceTypeLoading, evt.SourceRef, ledger.EntryKindOutwardLoading)
		if err != nil {
			return err
		}
		if exists {
			result.Duplicate = true
			return nil
		}

		scope := ledger.ScopeKey{GodownID: evt.GodownID, ProductID: evt.ProductID}
		balance, err := repos.Entries().LatestBalance(ctx, evt.TenantID(), scope)
		if err != nil {
			return err
		}

		notes := ""
		if evt.AuthorizedBy != "" {
			notes = "Authorized by " + evt.AuthorizedBy
		}
		entry, err := appendEntry(ctx, repos, entrySpec{
			tenantID:  evt.TenantID(),
			scope:     scope,
			kind:      ledger.EntryKindOutwardLoading,
			outward:   evt.LoadedQty,
			previous:  balance,
			source:    ledger.SourceTypeLoading,
			sourceID:  evt.SourceRef,
			condition: ledger.StockConditionGood,
			notes:     notes,
			date:      evt.OccurredAt(),
		})
		if err != nil {
			return err
		}
		result.Entries = append(result.Entries, entry)

		return s.materializeAll(ctx, repos, result.Entries)
	})
	if err != nil {
		return nil, err
	}
	s.logTranslation("loading_confirmed", evt.SourceRef, result)
	return result, nil
}

// HandleCrossoverApproved writes one outward-crossover entry at the source
// godown and runs the FIFO allocator against its batches, persisting the
// consumption mappings atomically with the entry.
func (s *TranslatorService) HandleCrossoverApproved(ctx context.Context, evt *ledger.CrossoverApproved) (*TranslationResult, error) {
	if err := s.validate.Struct(evt); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid crossover event: %v", err))
	}
	if evt.TransferredQty.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Transferred quantity must be positive")
	}

	result := &TranslationResult{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Entries().ExistsBySource(ctx, evt.TenantID(), ledger.SourceTypeCrossover, evt.SourceRef, ledger.EntryKindOutwardCrossover)
		if err != nil {
			return err
		}
		if exists {
			result.Duplicate = true
			return nil
		}

		scope := ledger.ScopeKey{GodownID: evt.GodownID, ProductID: evt.ProductID}
		balance, err := repos.Entries().LatestBalance(ctx, evt.TenantID(), scope)
		if err != nil {
			return err
		}

		// batches come back row-locked so the plan cannot race another
		// outward event against the same pool
		batches, err := repos.Batches().FindAvailableForAllocation(ctx, evt.TenantID(), scope)
		if err != nil {
			return err
		}
		allocator := ledger.NewFIFOAllocatorWithOptions(ledger.AllocationOptions{AllowShortfall: s.config.AllowShortfall})
		plan, err := allocator.Allocate(evt.TransferredQty, batches)
		if err != nil {
			return err
		}

		notes := ""
		if evt.AuthorizedBy != "" {
			notes = "Authorized by " + evt.AuthorizedBy
		}
		if !plan.FullyAllocated() {
			notes = fmt.Sprintf("Back-ordered: %s units unallocated. %s", plan.Shortfall.String(), notes)
		}

		entry, err := appendEntry(ctx, repos, entrySpec{
			tenantID:  evt.TenantID(),
			scope:     scope,
			kind:      ledger.EntryKindOutwardCrossover,
			outward:   evt.TransferredQty,
			previous:  balance,
			source:    ledger.SourceTypeCrossover,
			sourceID:  evt.SourceRef,
			condition: ledger.StockConditionGood,
			notes:     notes,
			date:      evt.OccurredAt(),
		})
		if err != nil {
			return err
		}
		result.Entries = append(result.Entries, entry)

		locked := make([]*ledger.InventoryBatch, len(batches))
		for i := range batches {
			locked[i] = &batches[i]
		}
		if err := ledger.ApplyPlan(plan, locked); err != nil {
			return err
		}
		for _, c := range plan.Consumptions {
			for _, b := range locked {
				if b.ID == c.BatchID {
					if err := repos.Batches().Update(ctx, b); err != nil {
						return err
					}
					break
				}
			}
		}

		mappings, err := ledger.BuildMappings(plan, entry)
		if err != nil {
			return err
		}
		if err := repos.Mappings().SaveAll(ctx, mappings); err != nil {
			return err
		}

		return s.materializeAll(ctx, repos, result.Entries)
	})
	if err != nil {
		return nil, err
	}
	s.logTranslation("crossover_approved", evt.SourceRef, result)
	return result, nil
}

// HandleChallanDelivered writes one outward-loading entry per line item.
// Batch consumption already happened when the lines were packed, so delivery
// reuses the recorded mappings instead of running a second FIFO walk.
func (s *TranslatorService) HandleChallanDelivered(ctx context.Context, evt *ledger.ChallanDelivered) (*TranslationResult, error) {
	if err := s.validate.Struct(evt); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid challan event: %v", err))
	}

	result := &TranslationResult{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Entries().ExistsBySource(ctx, evt.TenantID(), ledger.SourceTypeChallan, evt.SourceRef, ledger.EntryKindOutwardLoading)
		if err != nil {
			return err
		}
		if exists {
			result.Duplicate = true
			return nil
		}

		for _, line := range evt.LineItems {
			if line.Bags.LessThanOrEqual(decimal.Zero) {
				return shared.NewDomainError("INVALID_QUANTITY", "Challan line quantity must be positive")
			}
			scope := ledger.ScopeKey{GodownID: evt.GodownID, ProductID: line.ProductID}
			balance, err := repos.Entries().LatestBalance(ctx, evt.TenantID(), scope)
			if err != nil {
				return err
			}

			entry, err := appendEntry(ctx, repos, entrySpec{
				tenantID:  evt.TenantID(),
				scope:     scope,
				kind:      ledger.EntryKindOutwardLoading,
				outward:   line.Bags,
				previous:  balance,
				source:    ledger.SourceTypeChallan,
				sourceID:  evt.SourceRef,
				condition: ledger.StockConditionGood,
				date:      evt.OccurredAt(),
			})
			if err != nil {
				return err
			}
			result.Entries = append(result.Entries, entry)

			if err := s.reuseLineMappings(ctx, repos, entry, line); err != nil {
				return err
			}
		}

		return s.materializeAll(ctx, repos, result.Entries)
	})
	if err != nil {
		return nil, err
	}
	s.logTranslation("challan_delivered", evt.SourceRef, result)
	return result, nil
}

// reuseLineMappings copies the packing-time mappings onto the delivery entry.
// Batches were decremented at packing; the balances recorded here reconstruct
// the pre-deduction state from the current available count.
func (s *TranslatorService) reuseLineMappings(
	ctx context.Context,
	repos TransactionalRepositories,
	entry *ledger.LedgerEntry,
	line ledger.ChallanLineItem,
) error {
	if len(line.ExistingMappingIDs) == 0 {
		return nil
	}
	originals, err := repos.Mappings().FindByIDs(ctx, line.ExistingMappingIDs)
	if err != nil {
		return err
	}

	mappings := make([]*ledger.BatchMapping, 0, len(originals))
	for i := range originals {
		batch, err := repos.Batches().FindByID(ctx, originals[i].BatchID)
		if err != nil {
			return err
		}
		m, err := ledger.NewBatchMapping(
			entry.TenantID, entry.ID, batch.ID,
			originals[i].QuantityAffected,
			batch.Available.Add(originals[i].QuantityAffected),
			batch.Available,
		)
		if err != nil {
			return err
		}
		mappings = append(mappings, m)
	}
	return repos.Mappings().SaveAll(ctx, mappings)
}

// DirectReceiptParams describes a batch intake that has no arrival document,
// e.g. opening stock loaded straight into a godown.
type DirectReceiptParams struct {
	TenantID  uuid.UUID
	GodownID  uuid.UUID
	ProductID uuid.UUID
	Quantity  decimal.Decimal
	Grade     ledger.QualityGrade
	Reference string
	Notes     string
}

// RecordDirectReceipt opens a batch and writes an inward-receipt entry for
// stock received outside the arrival workflow.
func (s *TranslatorService) RecordDirectReceipt(ctx context.Context, params DirectReceiptParams) (*TranslationResult, error) {
	if params.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Receipt quantity must be positive")
	}
	if params.Reference == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Direct receipt requires a reference")
	}

	result := &TranslationResult{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Entries().ExistsBySource(ctx, params.TenantID, ledger.SourceTypeDirectReceipt, params.Reference, ledger.EntryKindInwardReceipt)
		if err != nil {
			return err
		}
		if exists {
			result.Duplicate = true
			return nil
		}

		scope := ledger.ScopeKey{GodownID: params.GodownID, ProductID: params.ProductID}
		balance, err := repos.Entries().LatestBalance(ctx, params.TenantID, scope)
		if err != nil {
			return err
		}

		now := time.Now()
		entry, err := appendEntry(ctx, repos, entrySpec{
			tenantID:  params.TenantID,
			scope:     scope,
			kind:      ledger.EntryKindInwardReceipt,
			inward:    params.Quantity,
			previous:  balance,
			source:    ledger.SourceTypeDirectReceipt,
			sourceID:  params.Reference,
			condition: ledger.StockConditionGood,
			notes:     params.Notes,
			date:      now,
		})
		if err != nil {
			return err
		}
		result.Entries = append(result.Entries, entry)

		batch, err := ledger.NewInventoryBatch(params.TenantID, params.GodownID, params.ProductID,
			params.Reference, now, params.Quantity, decimal.Zero, params.Grade)
		if err != nil {
			return err
		}
		if err := repos.Batches().Save(ctx, batch); err != nil {
			return err
		}

		return s.materializeAll(ctx, repos, result.Entries)
	})
	if err != nil {
		return nil, err
	}
	s.logTranslation("direct_receipt", params.Reference, result)
	return result, nil
}

// entrySpec collects everything appendEntry needs for one ledger write.
// A zero status means system-generated, the translator default.
type entrySpec struct {
	tenantID  uuid.UUID
	scope     ledger.ScopeKey
	kind      ledger.EntryKind
	inward    decimal.Decimal
	outward   decimal.Decimal
	previous  decimal.Decimal
	source    ledger.SourceType
	sourceID  string
	condition ledger.StockCondition
	notes     string
	date      time.Time
	status    ledger.EntryStatus
}

// appendEntry builds, numbers, and persists one ledger entry
func appendEntry(ctx context.Context, repos TransactionalRepositories, spec entrySpec) (*ledger.LedgerEntry, error) {
	entry, err := ledger.NewLedgerEntry(spec.tenantID, spec.scope.GodownID, spec.scope.ProductID,
		spec.kind, spec.inward, spec.outward, spec.previous, spec.date)
	if err != nil {
		return nil, err
	}

	seq, err := repos.Entries().NextEntryNumber(ctx, spec.tenantID, spec.scope.GodownID, spec.date)
	if err != nil {
		return nil, err
	}
	entry.WithEntryNumber(ledger.FormatEntryNumber(spec.scope.GodownID, spec.date, seq)).
		WithSource(spec.source, spec.sourceID).
		WithCondition(spec.condition).
		WithNotes(spec.notes)
	if spec.status == "" {
		entry.AsSystemGenerated()
	} else {
		entry.WithStatus(spec.status)
	}

	if err := repos.Entries().Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *TranslatorService) materializeAll(ctx context.Context, repos TransactionalRepositories, entries []*ledger.LedgerEntry) error {
	for _, entry := range entries {
		if err := s.materializer.Materialize(ctx, repos, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *TranslatorService) logTranslation(event, sourceRef string, result *TranslationResult) {
	if result.Duplicate {
		s.logger.Info("duplicate event ignored",
			zap.String("event", event),
			zap.String("source_ref", sourceRef),
		)
		return
	}
	s.logger.Info("event translated",
		zap.String("event", event),
		zap.String("source_ref", sourceRef),
		zap.Int("entries", len(result.Entries)),
	)
}
