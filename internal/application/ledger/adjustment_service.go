package ledger

import (
	"context"
	"time"

	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ManualAdjustmentParams describes an adjustment a person wants to make to
// the ledger. Positive Quantity adds stock, negative removes it.
type ManualAdjustmentParams struct {
	TenantID  uuid.UUID
	GodownID  uuid.UUID
	ProductID uuid.UUID
	Quantity  decimal.Decimal
	Reason    string
	Reference string
}

// AdjustmentService owns the manual correction workflow. Manual adjustments
// enter the ledger as pending entries and only count toward balances once a
// second person confirms them; variance resolutions write a confirmed
// balance-adjustment entry directly and link it back to the investigation.
type AdjustmentService struct {
	scope        TransactionScope
	materializer *MaterializerService
	logger       *zap.Logger
}

// NewAdjustmentService creates an adjustment service
func NewAdjustmentService(scope TransactionScope, materializer *MaterializerService, logger *zap.Logger) *AdjustmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdjustmentService{scope: scope, materializer: materializer, logger: logger}
}

// CreateManualAdjustment writes a pending adjustment entry awaiting approval
func (s *AdjustmentService) CreateManualAdjustment(ctx context.Context, params ManualAdjustmentParams) (*ledger.LedgerEntry, error) {
	if params.Quantity.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Adjustment quantity cannot be zero")
	}
	if params.Reason == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Adjustment requires a reason")
	}

	kind := ledger.EntryKindInwardAdjustment
	inward := params.Quantity
	outward := decimal.Zero
	if params.Quantity.IsNegative() {
		kind = ledger.EntryKindOutwardAdjustment
		inward = decimal.Zero
		outward = params.Quantity.Neg()
	}

	var entry *ledger.LedgerEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		key := ledger.ScopeKey{GodownID: params.GodownID, ProductID: params.ProductID}
		balance, err := repos.Entries().LatestBalance(ctx, params.TenantID, key)
		if err != nil {
			return err
		}

		entry, err = appendEntry(ctx, repos, entrySpec{
			tenantID:  params.TenantID,
			scope:     key,
			kind:      kind,
			inward:    inward,
			outward:   outward,
			previous:  balance,
			source:    ledger.SourceTypeManualAdjustment,
			sourceID:  params.Reference,
			condition: ledger.StockConditionGood,
			notes:     params.Reason,
			date:      time.Now(),
			status:    ledger.EntryStatusPending,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("manual adjustment created",
		zap.String("entry_number", entry.EntryNumber),
		zap.String("quantity", params.Quantity.String()),
	)
	return entry, nil
}

// ConfirmAdjustment approves a pending adjustment. The balance is recomputed
// against the ledger as it stands at approval time, not creation time, and
// the daily balance chain is rematerialized from the entry's date.
func (s *AdjustmentService) ConfirmAdjustment(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.LedgerEntry, error) {
	var entry *ledger.LedgerEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, err = repos.Entries().FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.TenantID != tenantID {
			return shared.ErrNotFound
		}

		key := ledger.ScopeKey{GodownID: entry.GodownID, ProductID: entry.ProductID}
		balance, err := repos.Entries().LatestBalance(ctx, tenantID, key)
		if err != nil {
			return err
		}
		if err := entry.Confirm(balance); err != nil {
			return err
		}
		if err := repos.Entries().Update(ctx, entry); err != nil {
			return err
		}
		return s.materializer.Materialize(ctx, repos, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("manual adjustment confirmed", zap.String("entry_number", entry.EntryNumber))
	return entry, nil
}

// CancelAdjustment voids a pending adjustment
func (s *AdjustmentService) CancelAdjustment(ctx context.Context, tenantID, entryID uuid.UUID) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		entry, err := repos.Entries().FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.TenantID != tenantID {
			return shared.ErrNotFound
		}
		if err := entry.Cancel(); err != nil {
			return err
		}
		return repos.Entries().Update(ctx, entry)
	})
}

// ResolveVarianceWithAdjustment closes a variance by writing a confirmed
// balance-adjustment entry for the variance quantity, linking it back to the
// investigation, and marking the counted day adjusted.
func (s *AdjustmentService) ResolveVarianceWithAdjustment(ctx context.Context, tenantID, varianceID uuid.UUID, notes string) (*ledger.LedgerEntry, error) {
	var entry *ledger.LedgerEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		variance, err := repos.Variances().FindByID(ctx, varianceID)
		if err != nil {
			return err
		}
		if variance.TenantID != tenantID {
			return shared.ErrNotFound
		}
		if variance.VarianceQty.IsZero() {
			return shared.NewDomainError("INVALID_STATE", "Variance carries no quantity to adjust")
		}

		inward := decimal.Zero
		outward := decimal.Zero
		if variance.VarianceQty.IsPositive() {
			inward = variance.VarianceQty
		} else {
			outward = variance.VarianceQty.Neg()
		}

		key := ledger.ScopeKey{GodownID: variance.GodownID, ProductID: variance.ProductID}
		balance, err := repos.Entries().LatestBalance(ctx, tenantID, key)
		if err != nil {
			return err
		}

		entry, err = appendEntry(ctx, repos, entrySpec{
			tenantID:  tenantID,
			scope:     key,
			kind:      ledger.EntryKindBalanceAdjustment,
			inward:    inward,
			outward:   outward,
			previous:  balance,
			source:    ledger.SourceTypeVariance,
			sourceID:  variance.VarianceNumber,
			condition: ledger.StockConditionGood,
			notes:     notes,
			date:      time.Now(),
			status:    ledger.EntryStatusConfirmed,
		})
		if err != nil {
			return err
		}

		entryID := entry.ID
		if err := variance.Resolve(notes, &entryID); err != nil {
			return err
		}
		if err := repos.Variances().Update(ctx, variance); err != nil {
			return err
		}

		if variance.DailyBalanceID != nil {
			row, err := repos.DailyBalances().FindByID(ctx, *variance.DailyBalanceID)
			if err != nil {
				return err
			}
			row.MarkAdjusted()
			if err := repos.DailyBalances().Save(ctx, row); err != nil {
				return err
			}
		}

		return s.materializer.Materialize(ctx, repos, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("variance resolved with adjustment", zap.String("entry_number", entry.EntryNumber))
	return entry, nil
}
