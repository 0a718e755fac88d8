package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/godown/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultMaxCascadeDays bounds how far forward a single materialization may
// rewrite the daily balance chain. Writes against older history must go
// through RebuildRange instead.
const DefaultMaxCascadeDays = 370

// MaterializerConfig tunes the materializer
type MaterializerConfig struct {
	MaxCascadeDays int
}

// MaterializerService maintains the daily balance rows derived from the
// ledger. It re-aggregates the affected day from scratch on every write, so
// out-of-order and backdated entries converge to the same result, then
// cascades the changed closing forward through later rows.
type MaterializerService struct {
	config MaterializerConfig
	logger *zap.Logger
}

// NewMaterializerService creates a materializer
func NewMaterializerService(config MaterializerConfig, logger *zap.Logger) *MaterializerService {
	if config.MaxCascadeDays <= 0 {
		config.MaxCascadeDays = DefaultMaxCascadeDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterializerService{config: config, logger: logger}
}

// Materialize brings the daily balance row for the entry's date up to date
// and cascades the change forward. It must run inside the same transaction as
// the ledger write that triggered it.
func (s *MaterializerService) Materialize(ctx context.Context, repos TransactionalRepositories, entry *ledger.LedgerEntry) error {
	if entry == nil || !entry.IsEffective() {
		return nil
	}

	scope := ledger.ScopeKey{GodownID: entry.GodownID, ProductID: entry.ProductID}
	date := entry.BalanceDate()

	row, err := s.materializeDay(ctx, repos, entry.TenantID, scope, date)
	if err != nil {
		return err
	}
	return s.cascade(ctx, repos, entry.TenantID, scope, row)
}

// materializeDay recomputes one (scope, date) row from the ledger
func (s *MaterializerService) materializeDay(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	scope ledger.ScopeKey,
	date time.Time,
) (*ledger.DailyBalance, error) {
	row, err := repos.DailyBalances().FindByDate(ctx, tenantID, scope, date)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = ledger.NewDailyBalance(tenantID, scope.GodownID, scope.ProductID, date)
	}

	opening, err := s.openingFor(ctx, repos, tenantID, scope, date)
	if err != nil {
		return nil, err
	}
	row.SetOpening(opening)

	summary, err := repos.Entries().SumForDate(ctx, tenantID, scope, date)
	if err != nil {
		return nil, err
	}
	row.SetTotals(summary.TotalInward, summary.TotalOutward)

	if err := s.applyBatchSummary(ctx, repos, tenantID, scope, row); err != nil {
		return nil, err
	}

	if err := repos.DailyBalances().Save(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// openingFor resolves the opening balance for a date: the prior row's closing
// when one exists, otherwise the net of every effective entry before the date.
func (s *MaterializerService) openingFor(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	scope ledger.ScopeKey,
	date time.Time,
) (decimal.Decimal, error) {
	prev, err := repos.DailyBalances().FindLatestBefore(ctx, tenantID, scope, date)
	if err != nil {
		return decimal.Zero, err
	}
	if prev != nil {
		return prev.Closing, nil
	}
	summary, err := repos.Entries().SumThroughDate(ctx, tenantID, scope, date.AddDate(0, 0, -1))
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Net(), nil
}

func (s *MaterializerService) applyBatchSummary(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	scope ledger.ScopeKey,
	row *ledger.DailyBalance,
) error {
	batches, err := repos.Batches().FindActiveByScope(ctx, tenantID, scope)
	if err != nil {
		return err
	}

	now := time.Now()
	oldestAge := 0
	goodBags := decimal.Zero
	damagedBags := decimal.Zero
	for i := range batches {
		goodBags = goodBags.Add(batches[i].OnHand())
		damagedBags = damagedBags.Add(batches[i].Damaged)
		if age := batches[i].AgeDays(now); age > oldestAge {
			oldestAge = age
		}
	}
	row.SetBatchSummary(len(batches), oldestAge, goodBags, damagedBags)
	return nil
}

// cascade walks forward through later rows for the same scope and repairs the
// chain invariant opening[d] == closing[d-1]. The walk stops at the first row
// whose opening already matches: its closing is then unchanged, so every row
// after it holds too.
func (s *MaterializerService) cascade(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	scope ledger.ScopeKey,
	from *ledger.DailyBalance,
) error {
	count, err := repos.DailyBalances().CountAfter(ctx, tenantID, scope, from.BalanceDate)
	if err != nil {
		return err
	}
	if count > int64(s.config.MaxCascadeDays) {
		return fmt.Errorf("cascade from %s would rewrite %d rows, above the %d row horizon; run a range rebuild instead",
			from.BalanceDate.Format("2006-01-02"), count, s.config.MaxCascadeDays)
	}
	if count == 0 {
		return nil
	}

	later, err := repos.DailyBalances().FindAfterForUpdate(ctx, tenantID, scope, from.BalanceDate, s.config.MaxCascadeDays)
	if err != nil {
		return err
	}

	prev := from
	rewritten := 0
	for i := range later {
		row := &later[i]
		if row.ChainConsistentWith(prev) {
			break
		}
		row.SetOpening(prev.Closing)
		if err := repos.DailyBalances().Save(ctx, row); err != nil {
			return err
		}
		rewritten++
		prev = row
	}

	if rewritten > 0 {
		s.logger.Debug("cascaded daily balance rewrite",
			zap.String("godown_id", scope.GodownID.String()),
			zap.String("product_id", scope.ProductID.String()),
			zap.String("from_date", from.BalanceDate.Format("2006-01-02")),
			zap.Int("rows_rewritten", rewritten),
		)
	}
	return nil
}

// RebuildRange recomputes every daily balance row for the scope across the
// inclusive date range, in order, ignoring the cascade horizon. Intended for
// catch-up and reconciliation jobs rather than the per-write path.
func (s *MaterializerService) RebuildRange(
	ctx context.Context,
	scope TransactionScope,
	tenantID uuid.UUID,
	key ledger.ScopeKey,
	from, to time.Time,
) error {
	from = ledger.DateOnly(from)
	to = ledger.DateOnly(to)
	if to.Before(from) {
		return fmt.Errorf("rebuild range end %s precedes start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	return scope.Execute(ctx, func(repos TransactionalRepositories) error {
		dates, err := repos.Entries().DistinctDates(ctx, tenantID, key, from, to)
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			return nil
		}

		running, err := s.openingFor(ctx, repos, tenantID, key, dates[0])
		if err != nil {
			return err
		}

		for _, date := range dates {
			row, err := repos.DailyBalances().FindByDate(ctx, tenantID, key, date)
			if err != nil {
				return err
			}
			if row == nil {
				row = ledger.NewDailyBalance(tenantID, key.GodownID, key.ProductID, date)
			}
			row.SetOpening(running)

			summary, err := repos.Entries().SumForDate(ctx, tenantID, key, date)
			if err != nil {
				return err
			}
			row.SetTotals(summary.TotalInward, summary.TotalOutward)

			if err := repos.DailyBalances().Save(ctx, row); err != nil {
				return err
			}
			running = row.Closing
		}

		last, err := repos.DailyBalances().FindByDate(ctx, tenantID, key, dates[len(dates)-1])
		if err != nil {
			return err
		}
		if last != nil {
			return s.cascade(ctx, repos, tenantID, key, last)
		}
		return nil
	})
}
