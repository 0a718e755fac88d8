package ledger_test

import (
	"context"
	"testing"

	appledger "github.com/godown/backend/internal/application/ledger"
	"github.com/godown/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMaterializer_ChainAcrossDays(t *testing.T) {
	h := newHarness(t)

	h.arrivalOn(t, day(1), 100, 0, "ARR-100")
	h.loadingOn(t, day(2), 30, "LOAD-100")
	h.loadingOn(t, day(3), 20, "LOAD-101")

	d1 := h.balanceRow(t, day(1))
	d2 := h.balanceRow(t, day(2))
	d3 := h.balanceRow(t, day(3))

	assert.True(t, d1.Closing.Equal(decimal.NewFromInt(100)))
	assert.True(t, d2.Opening.Equal(d1.Closing))
	assert.True(t, d2.Closing.Equal(decimal.NewFromInt(70)))
	assert.True(t, d3.Opening.Equal(d2.Closing))
	assert.True(t, d3.Closing.Equal(decimal.NewFromInt(50)))
}

func TestMaterializer_BackdatedWriteCascades(t *testing.T) {
	h := newHarness(t)

	h.arrivalOn(t, day(1), 100, 0, "ARR-110")
	h.loadingOn(t, day(3), 30, "LOAD-110")
	h.loadingOn(t, day(4), 10, "LOAD-111")
	h.loadingOn(t, day(5), 5, "LOAD-112")

	// day 3 opened from day 1 because no day 2 row existed yet
	assert.True(t, h.balanceRow(t, day(3)).Opening.Equal(decimal.NewFromInt(100)))
	assert.True(t, h.balanceRow(t, day(5)).Closing.Equal(decimal.NewFromInt(55)))

	// a backdated arrival lands on day 2 and must ripple through days 3..5
	h.arrivalOn(t, day(2), 50, 0, "ARR-111")

	d2 := h.balanceRow(t, day(2))
	assert.True(t, d2.Opening.Equal(decimal.NewFromInt(100)))
	assert.True(t, d2.Closing.Equal(decimal.NewFromInt(150)))

	d3 := h.balanceRow(t, day(3))
	assert.True(t, d3.Opening.Equal(decimal.NewFromInt(150)))
	assert.True(t, d3.Closing.Equal(decimal.NewFromInt(120)))

	d4 := h.balanceRow(t, day(4))
	assert.True(t, d4.Opening.Equal(decimal.NewFromInt(120)))
	assert.True(t, d4.Closing.Equal(decimal.NewFromInt(110)))

	d5 := h.balanceRow(t, day(5))
	assert.True(t, d5.Opening.Equal(decimal.NewFromInt(110)))
	assert.True(t, d5.Closing.Equal(decimal.NewFromInt(105)))
}

func TestMaterializer_ReprocessingConverges(t *testing.T) {
	h := newHarness(t)

	h.arrivalOn(t, day(1), 100, 0, "ARR-120")
	h.loadingOn(t, day(1), 40, "LOAD-120")

	row := h.balanceRow(t, day(1))
	assert.True(t, row.TotalInward.Equal(decimal.NewFromInt(100)))
	assert.True(t, row.TotalOutward.Equal(decimal.NewFromInt(40)))
	assert.True(t, row.Closing.Equal(decimal.NewFromInt(60)))

	// rematerializing the same day from an existing entry changes nothing
	entries := h.entries(t)
	ctx := context.Background()
	err := h.scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
		return h.materializer.Materialize(ctx, repos, &entries[0])
	})
	require.NoError(t, err)

	again := h.balanceRow(t, day(1))
	assert.True(t, again.Closing.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, row.ID, again.ID)
}

func TestMaterializer_CascadeHorizon(t *testing.T) {
	h := newHarness(t)

	h.arrivalOn(t, day(1), 100, 0, "ARR-130")
	h.loadingOn(t, day(2), 10, "LOAD-130")
	h.loadingOn(t, day(3), 10, "LOAD-131")
	h.loadingOn(t, day(4), 10, "LOAD-132")

	bounded := appledger.NewMaterializerService(appledger.MaterializerConfig{MaxCascadeDays: 2}, zap.NewNop())
	entries := h.entries(t)
	require.Equal(t, ledger.EntryKindInwardReceipt, entries[0].Kind)

	ctx := context.Background()
	err := h.scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
		return bounded.Materialize(ctx, repos, &entries[0])
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range rebuild")
}

func TestMaterializer_RebuildRange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.arrivalOn(t, day(1), 100, 0, "ARR-140")
	h.loadingOn(t, day(2), 30, "LOAD-140")
	h.loadingOn(t, day(3), 20, "LOAD-141")

	// corrupt the middle of the chain
	require.NoError(t, h.db.Model(&ledger.DailyBalance{}).
		Where("balance_date = ?", ledger.DateOnly(day(2))).
		Updates(map[string]interface{}{"opening": "999", "closing": "969"}).Error)

	err := h.materializer.RebuildRange(ctx, h.scope, h.tenantID, h.key(), day(1), day(3))
	require.NoError(t, err)

	d2 := h.balanceRow(t, day(2))
	assert.True(t, d2.Opening.Equal(decimal.NewFromInt(100)))
	assert.True(t, d2.Closing.Equal(decimal.NewFromInt(70)))

	d3 := h.balanceRow(t, day(3))
	assert.True(t, d3.Opening.Equal(decimal.NewFromInt(70)))
	assert.True(t, d3.Closing.Equal(decimal.NewFromInt(50)))
}

func TestMaterializer_RebuildRange_InvalidRange(t *testing.T) {
	h := newHarness(t)
	err := h.materializer.RebuildRange(context.Background(), h.scope, h.tenantID, h.key(), day(5), day(1))
	require.Error(t, err)
}

func TestMaterializer_IgnoresIneffectiveEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.arrivalOn(t, day(1), 100, 0, "ARR-150")

	pending, err := h.adjustments.CreateManualAdjustment(ctx, appledger.ManualAdjustmentParams{
		TenantID:  h.tenantID,
		GodownID:  h.godownID,
		ProductID: h.productID,
		Quantity:  decimal.NewFromInt(10),
		Reason:    "cycle count drift",
	})
	require.NoError(t, err)
	require.Equal(t, ledger.EntryStatusPending, pending.Status)

	err = h.scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
		return h.materializer.Materialize(ctx, repos, pending)
	})
	require.NoError(t, err)

	// pending entries contribute nothing to the materialized day
	row := h.balanceRow(t, day(1))
	assert.True(t, row.Closing.Equal(decimal.NewFromInt(100)))
}
