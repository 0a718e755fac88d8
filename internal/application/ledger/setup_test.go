package ledger_test

import (
	"context"
	"testing"
	"time"

	appledger "github.com/godown/backend/internal/application/ledger"
	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// harness wires the application services against an in-memory database so the
// whole write path, including the real transaction scope and repositories, is
// exercised.
type harness struct {
	db           *gorm.DB
	scope        *persistence.GormTransactionScope
	materializer *appledger.MaterializerService
	translator   *appledger.TranslatorService
	adjustments  *appledger.AdjustmentService
	detector     *appledger.VarianceDetectorService

	tenantID  uuid.UUID
	godownID  uuid.UUID
	productID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every statement on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&ledger.InventoryBatch{},
		&ledger.LedgerEntry{},
		&ledger.BatchMapping{},
		&ledger.DailyBalance{},
		&ledger.Variance{},
	))

	scope := persistence.NewGormTransactionScope(db)
	materializer := appledger.NewMaterializerService(appledger.MaterializerConfig{}, zap.NewNop())

	return &harness{
		db:           db,
		scope:        scope,
		materializer: materializer,
		translator:   appledger.NewTranslatorService(scope, materializer, appledger.TranslatorConfig{}, zap.NewNop()),
		adjustments:  appledger.NewAdjustmentService(scope, materializer, zap.NewNop()),
		detector:     appledger.NewVarianceDetectorService(scope, appledger.DetectorConfig{}, zap.NewNop()),
		tenantID:     uuid.New(),
		godownID:     uuid.New(),
		productID:    uuid.New(),
	}
}

func (h *harness) key() ledger.ScopeKey {
	return ledger.ScopeKey{GodownID: h.godownID, ProductID: h.productID}
}

// day returns a fixed UTC timestamp inside the given March 2026 calendar day
// so date arithmetic in assertions is deterministic.
func day(d int) time.Time {
	return time.Date(2026, 3, d, 10, 30, 0, 0, time.UTC)
}

// arrivalOn records an arrival of good stock dated on the given timestamp
func (h *harness) arrivalOn(t *testing.T, ts time.Time, good, damaged int64, ref string) *appledger.TranslationResult {
	t.Helper()
	evt := ledger.NewArrivalConfirmed(h.tenantID, h.godownID, h.productID,
		decimal.NewFromInt(good), decimal.NewFromInt(damaged), ref)
	evt.Timestamp = ts
	res, err := h.translator.HandleArrivalConfirmed(context.Background(), evt)
	require.NoError(t, err)
	return res
}

// loadingOn records an outbound loading dated on the given timestamp
func (h *harness) loadingOn(t *testing.T, ts time.Time, loaded int64, ref string) *appledger.TranslationResult {
	t.Helper()
	evt := ledger.NewLoadingConfirmed(h.tenantID, h.godownID, h.productID,
		decimal.NewFromInt(loaded), ref)
	evt.Timestamp = ts
	res, err := h.translator.HandleLoadingConfirmed(context.Background(), evt)
	require.NoError(t, err)
	return res
}

// balanceRow loads the materialized daily balance row for the scope and date
func (h *harness) balanceRow(t *testing.T, ts time.Time) *ledger.DailyBalance {
	t.Helper()
	var row ledger.DailyBalance
	err := h.db.
		Where("godown_id = ? AND product_id = ? AND balance_date = ?",
			h.godownID, h.productID, ledger.DateOnly(ts)).
		First(&row).Error
	require.NoError(t, err)
	return &row
}

// entries loads every ledger entry for the harness scope, oldest first
func (h *harness) entries(t *testing.T) []ledger.LedgerEntry {
	t.Helper()
	var entries []ledger.LedgerEntry
	err := h.db.
		Where("godown_id = ? AND product_id = ?", h.godownID, h.productID).
		Order("transaction_date ASC, created_at ASC").
		Find(&entries).Error
	require.NoError(t, err)
	return entries
}

// batches loads every batch for the harness scope, oldest first
func (h *harness) batches(t *testing.T) []ledger.InventoryBatch {
	t.Helper()
	var batches []ledger.InventoryBatch
	err := h.db.
		Where("godown_id = ? AND product_id = ?", h.godownID, h.productID).
		Order("received_at ASC").
		Find(&batches).Error
	require.NoError(t, err)
	return batches
}
