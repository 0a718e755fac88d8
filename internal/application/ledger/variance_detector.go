package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultVarianceThreshold is the minimum absolute count difference that
// raises a variance.
var DefaultVarianceThreshold = decimal.NewFromInt(5)

// DetectorConfig tunes the variance detector
type DetectorConfig struct {
	Threshold decimal.Decimal
}

// DetectionReport summarizes one detector run
type DetectionReport struct {
	CountVariances     int
	IntegrityVariances int
}

// VarianceDetectorService raises investigation records in two modes:
// count-based, comparing physical counts against materialized closings, and
// integrity-based, comparing the ledger balance against the batch store.
// Both modes are idempotent against variances already open for the same
// subject, so the detector is safe to re-run on any schedule.
type VarianceDetectorService struct {
	scope  TransactionScope
	config DetectorConfig
	logger *zap.Logger
}

// NewVarianceDetectorService creates a detector
func NewVarianceDetectorService(scope TransactionScope, config DetectorConfig, logger *zap.Logger) *VarianceDetectorService {
	if config.Threshold.LessThanOrEqual(decimal.Zero) {
		config.Threshold = DefaultVarianceThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VarianceDetectorService{scope: scope, config: config, logger: logger}
}

// RecordPhysicalCount stores a physical stock count against the daily balance
// row for the scope and date, recomputing its variance and status. The row
// must already exist; counting stock for a day with no ledger activity and no
// materialized row is not meaningful.
func (s *VarianceDetectorService) RecordPhysicalCount(
	ctx context.Context,
	tenantID uuid.UUID,
	key ledger.ScopeKey,
	date time.Time,
	count decimal.Decimal,
) (*ledger.DailyBalance, error) {
	var row *ledger.DailyBalance
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		row, err = repos.DailyBalances().FindByDate(ctx, tenantID, key, date)
		if err != nil {
			return err
		}
		if row == nil {
			return shared.ErrNotFound
		}
		if err := row.ApplyPhysicalCount(count); err != nil {
			return err
		}
		return repos.DailyBalances().Save(ctx, row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// RunOnce executes both detection modes for the tenant
func (s *VarianceDetectorService) RunOnce(ctx context.Context, tenantID uuid.UUID) (*DetectionReport, error) {
	report := &DetectionReport{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := s.detectCountVariances(ctx, repos, tenantID, report); err != nil {
			return err
		}
		return s.detectIntegrityVariances(ctx, repos, tenantID, report)
	})
	if err != nil {
		return nil, err
	}
	if report.CountVariances > 0 || report.IntegrityVariances > 0 {
		s.logger.Info("variance detection raised investigations",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("count_based", report.CountVariances),
			zap.Int("integrity_based", report.IntegrityVariances),
		)
	}
	return report, nil
}

// detectCountVariances raises a variance for each counted day whose physical
// count strays from the closing balance by at least the threshold.
func (s *VarianceDetectorService) detectCountVariances(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	report *DetectionReport,
) error {
	rows, err := repos.DailyBalances().FindWithPhysicalCount(ctx, tenantID)
	if err != nil {
		return err
	}

	for i := range rows {
		row := &rows[i]
		if row.VarianceQty.Abs().LessThan(s.config.Threshold) {
			continue
		}
		open, err := repos.Variances().FindOpenByDailyBalance(ctx, tenantID, row.ID)
		if err != nil {
			return err
		}
		if open != nil {
			continue
		}

		variance, err := ledger.NewVariance(tenantID, row.GodownID, row.ProductID, "",
			row.Closing, *row.PhysicalCount)
		if err != nil {
			return err
		}
		variance.WithDailyBalance(row.ID).
			WithDescription(fmt.Sprintf("Physical count %s against closing balance %s on %s",
				row.PhysicalCount.String(), row.Closing.String(), row.BalanceDate.Format("2006-01-02")))

		if err := s.numberAndSave(ctx, repos, variance); err != nil {
			return err
		}
		report.CountVariances++
	}
	return nil
}

// detectIntegrityVariances raises a system-error variance wherever the ledger
// balance and the batch store disagree for a scope with active batches.
func (s *VarianceDetectorService) detectIntegrityVariances(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	report *DetectionReport,
) error {
	scopes, err := repos.Batches().ActiveScopes(ctx, tenantID)
	if err != nil {
		return err
	}

	for _, key := range scopes {
		ledgerBalance, err := repos.Entries().LatestBalance(ctx, tenantID, key)
		if err != nil {
			return err
		}
		batchBalance, err := repos.Batches().SumOnHand(ctx, tenantID, key)
		if err != nil {
			return err
		}
		if ledgerBalance.Equal(batchBalance) {
			continue
		}

		open, err := repos.Variances().FindOpenByTypeAndScope(ctx, tenantID, ledger.VarianceTypeSystemError, key)
		if err != nil {
			return err
		}
		if open != nil {
			continue
		}

		variance, err := ledger.NewVariance(tenantID, key.GodownID, key.ProductID,
			ledger.VarianceTypeSystemError, ledgerBalance, batchBalance)
		if err != nil {
			return err
		}
		variance.WithDescription(fmt.Sprintf("Ledger balance %s disagrees with batch store total %s",
			ledgerBalance.String(), batchBalance.String()))

		if err := s.numberAndSave(ctx, repos, variance); err != nil {
			return err
		}
		report.IntegrityVariances++
	}
	return nil
}

func (s *VarianceDetectorService) numberAndSave(ctx context.Context, repos TransactionalRepositories, variance *ledger.Variance) error {
	now := time.Now()
	seq, err := repos.Variances().NextVarianceNumber(ctx, variance.TenantID, now)
	if err != nil {
		return err
	}
	variance.WithVarianceNumber(ledger.FormatVarianceNumber(now, seq))
	return repos.Variances().Save(ctx, variance)
}
