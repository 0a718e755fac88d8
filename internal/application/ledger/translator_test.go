package ledger_test

import (
	"context"
	"testing"

	appledger "github.com/godown/backend/internal/application/ledger"
	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTranslator_HandleArrivalConfirmed(t *testing.T) {
	ctx := context.Background()

	t.Run("writes inward entry, opens batch and materializes the day", func(t *testing.T) {
		h := newHarness(t)

		res := h.arrivalOn(t, day(1), 100, 0, "ARR-001")
		require.Len(t, res.Entries, 1)
		assert.False(t, res.Duplicate)

		entry := res.Entries[0]
		assert.Equal(t, ledger.EntryKindInwardReceipt, entry.Kind)
		assert.True(t, entry.InwardQty.Equal(decimal.NewFromInt(100)))
		assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, ledger.EntryStatusSystemGenerated, entry.Status)
		assert.Contains(t, entry.EntryNumber, "LED-")

		batches := h.batches(t)
		require.Len(t, batches, 1)
		assert.True(t, batches[0].Available.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, ledger.BatchStatusActive, batches[0].Status)

		row := h.balanceRow(t, day(1))
		assert.True(t, row.Opening.IsZero())
		assert.True(t, row.TotalInward.Equal(decimal.NewFromInt(100)))
		assert.True(t, row.Closing.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, 1, row.ActiveBatches)
	})

	t.Run("damaged bags get a second entry tagged damaged", func(t *testing.T) {
		h := newHarness(t)

		res := h.arrivalOn(t, day(1), 90, 10, "ARR-002")
		require.Len(t, res.Entries, 2)

		good, damaged := res.Entries[0], res.Entries[1]
		assert.Equal(t, ledger.StockConditionGood, good.Condition)
		assert.Equal(t, ledger.StockConditionDamaged, damaged.Condition)
		assert.True(t, good.BalanceAfter.Equal(decimal.NewFromInt(90)))
		assert.True(t, damaged.BalanceAfter.Equal(decimal.NewFromInt(100)))

		batches := h.batches(t)
		require.Len(t, batches, 1)
		assert.True(t, batches[0].Available.Equal(decimal.NewFromInt(90)))
		assert.True(t, batches[0].Damaged.Equal(decimal.NewFromInt(10)))
		assert.True(t, batches[0].TotalReceived.Equal(decimal.NewFromInt(100)))
	})

	t.Run("redelivery of the same arrival is a no-op", func(t *testing.T) {
		h := newHarness(t)

		h.arrivalOn(t, day(1), 100, 0, "ARR-003")

		evt := ledger.NewArrivalConfirmed(h.tenantID, h.godownID, h.productID,
			decimal.NewFromInt(100), decimal.Zero, "ARR-003")
		evt.Timestamp = day(1)
		res, err := h.translator.HandleArrivalConfirmed(ctx, evt)
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Empty(t, res.Entries)

		assert.Len(t, h.entries(t), 1)
		assert.Len(t, h.batches(t), 1)
	})

	t.Run("rejects empty arrival", func(t *testing.T) {
		h := newHarness(t)

		evt := ledger.NewArrivalConfirmed(h.tenantID, h.godownID, h.productID,
			decimal.Zero, decimal.Zero, "ARR-004")
		_, err := h.translator.HandleArrivalConfirmed(ctx, evt)
		require.Error(t, err)
	})
}

func TestTranslator_HandleLoadingConfirmed(t *testing.T) {
	ctx := context.Background()

	t.Run("writes outward entry chained on the running balance", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 100, 0, "ARR-010")

		res := h.loadingOn(t, day(2), 40, "LOAD-001")
		require.Len(t, res.Entries, 1)

		entry := res.Entries[0]
		assert.Equal(t, ledger.EntryKindOutwardLoading, entry.Kind)
		assert.True(t, entry.OutwardQty.Equal(decimal.NewFromInt(40)))
		assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(60)))

		row := h.balanceRow(t, day(2))
		assert.True(t, row.Opening.Equal(decimal.NewFromInt(100)))
		assert.True(t, row.TotalOutward.Equal(decimal.NewFromInt(40)))
		assert.True(t, row.Closing.Equal(decimal.NewFromInt(60)))
	})

	t.Run("records the authorizer on the entry", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 100, 0, "ARR-011")

		evt := ledger.NewLoadingConfirmed(h.tenantID, h.godownID, h.productID,
			decimal.NewFromInt(10), "LOAD-002")
		evt.Timestamp = day(2)
		evt.AuthorizedBy = "supervisor-7"
		res, err := h.translator.HandleLoadingConfirmed(ctx, evt)
		require.NoError(t, err)
		assert.Equal(t, "Authorized by supervisor-7", res.Entries[0].Notes)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 100, 0, "ARR-012")
		h.loadingOn(t, day(2), 40, "LOAD-003")

		evt := ledger.NewLoadingConfirmed(h.tenantID, h.godownID, h.productID,
			decimal.NewFromInt(40), "LOAD-003")
		evt.Timestamp = day(2)
		res, err := h.translator.HandleLoadingConfirmed(ctx, evt)
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Len(t, h.entries(t), 2)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		h := newHarness(t)
		evt := ledger.NewLoadingConfirmed(h.tenantID, h.godownID, h.productID,
			decimal.Zero, "LOAD-004")
		_, err := h.translator.HandleLoadingConfirmed(ctx, evt)
		require.Error(t, err)
	})
}

func TestTranslator_HandleCrossoverApproved(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes batches oldest first and records mappings", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 30, 0, "ARR-020")
		h.arrivalOn(t, day(2), 50, 0, "ARR-021")

		evt := ledger.NewCrossoverApproved(h.tenantID, h.godownID, h.productID,
			decimal.NewFromInt(40), "XO-001")
		evt.Timestamp = day(3)
		res, err := h.translator.HandleCrossoverApproved(ctx, evt)
		require.NoError(t, err)
		require.Len(t, res.Entries, 1)

		entry := res.Entries[0]
		assert.Equal(t, ledger.EntryKindOutwardCrossover, entry.Kind)
		assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(40)))

		batches := h.batches(t)
		require.Len(t, batches, 2)
		assert.True(t, batches[0].Available.IsZero())
		assert.Equal(t, ledger.BatchStatusDepleted, batches[0].Status)
		assert.True(t, batches[1].Available.Equal(decimal.NewFromInt(40)))

		var mappings []ledger.BatchMapping
		require.NoError(t, h.db.Where("entry_id = ?", entry.ID).Find(&mappings).Error)
		require.Len(t, mappings, 2)
		total := decimal.Zero
		for _, m := range mappings {
			total = total.Add(m.QuantityAffected)
		}
		assert.True(t, total.Equal(decimal.NewFromInt(40)))
	})

	t.Run("fails when batches cannot cover the transfer", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 30, 0, "ARR-022")

		evt := ledger.NewCrossoverApproved(h.tenantID, h.godownID, h.productID,
			decimal.NewFromInt(80), "XO-002")
		evt.Timestamp = day(2)
		_, err := h.translator.HandleCrossoverApproved(ctx, evt)
		require.ErrorIs(t, err, shared.ErrUnderAllocated)

		// nothing from the failed transaction may stick
		assert.Len(t, h.entries(t), 1)
		assert.True(t, h.batches(t)[0].Available.Equal(decimal.NewFromInt(30)))
	})

	t.Run("shortfall mode dispatches what it can and flags the rest", func(t *testing.T) {
		h := newHarness(t)
		translator := appledger.NewTranslatorService(h.scope, h.materializer,
			appledger.TranslatorConfig{AllowShortfall: true}, zap.NewNop())
		h.arrivalOn(t, day(1), 30, 0, "ARR-023")

		evt := ledger.NewCrossoverApproved(h.tenantID, h.godownID, h.productID,
			decimal.NewFromInt(80), "XO-003")
		evt.Timestamp = day(2)
		res, err := translator.HandleCrossoverApproved(ctx, evt)
		require.NoError(t, err)

		entry := res.Entries[0]
		assert.True(t, entry.OutwardQty.Equal(decimal.NewFromInt(80)))
		assert.Contains(t, entry.Notes, "Back-ordered: 50")
		assert.True(t, h.batches(t)[0].Available.IsZero())
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 100, 0, "ARR-024")

		evt := ledger.NewCrossoverApproved(h.tenantID, h.godownID, h.productID,
			decimal.NewFromInt(20), "XO-004")
		evt.Timestamp = day(2)
		_, err := h.translator.HandleCrossoverApproved(ctx, evt)
		require.NoError(t, err)

		again := ledger.NewCrossoverApproved(h.tenantID, h.godownID, h.productID,
			decimal.NewFromInt(20), "XO-004")
		again.Timestamp = day(2)
		res, err := h.translator.HandleCrossoverApproved(ctx, again)
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.True(t, h.batches(t)[0].Available.Equal(decimal.NewFromInt(80)))
	})
}

func TestTranslator_HandleChallanDelivered(t *testing.T) {
	ctx := context.Background()

	t.Run("writes one outward entry per line", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 100, 0, "ARR-030")

		secondProduct := uuid.New()
		evt := ledger.NewArrivalConfirmed(h.tenantID, h.godownID, secondProduct,
			decimal.NewFromInt(60), decimal.Zero, "ARR-031")
		evt.Timestamp = day(1)
		_, err := h.translator.HandleArrivalConfirmed(ctx, evt)
		require.NoError(t, err)

		challan := ledger.NewChallanDelivered(h.tenantID, h.godownID, []ledger.ChallanLineItem{
			{ProductID: h.productID, Bags: decimal.NewFromInt(25)},
			{ProductID: secondProduct, Bags: decimal.NewFromInt(10)},
		}, "CH-001")
		challan.Timestamp = day(2)
		res, err := h.translator.HandleChallanDelivered(ctx, challan)
		require.NoError(t, err)
		require.Len(t, res.Entries, 2)

		assert.True(t, res.Entries[0].BalanceAfter.Equal(decimal.NewFromInt(75)))
		assert.True(t, res.Entries[1].BalanceAfter.Equal(decimal.NewFromInt(50)))
		for _, entry := range res.Entries {
			assert.Equal(t, ledger.EntryKindOutwardLoading, entry.Kind)
			assert.Equal(t, ledger.SourceTypeChallan, entry.SourceType)
		}
	})

	t.Run("reuses packing mappings without touching batches again", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 100, 0, "ARR-032")

		// packing already deducted the batch and recorded the mapping
		batch := h.batches(t)[0]
		require.NoError(t, batch.Deduct(decimal.NewFromInt(20)))
		require.NoError(t, h.db.Save(&batch).Error)
		packed, err := ledger.NewBatchMapping(h.tenantID, uuid.New(), batch.ID,
			decimal.NewFromInt(20), decimal.NewFromInt(100), decimal.NewFromInt(80))
		require.NoError(t, err)
		require.NoError(t, h.db.Create(packed).Error)

		challan := ledger.NewChallanDelivered(h.tenantID, h.godownID, []ledger.ChallanLineItem{
			{ProductID: h.productID, Bags: decimal.NewFromInt(20), ExistingMappingIDs: []uuid.UUID{packed.ID}},
		}, "CH-002")
		challan.Timestamp = day(2)
		res, err := h.translator.HandleChallanDelivered(ctx, challan)
		require.NoError(t, err)
		require.Len(t, res.Entries, 1)

		var mappings []ledger.BatchMapping
		require.NoError(t, h.db.Where("entry_id = ?", res.Entries[0].ID).Find(&mappings).Error)
		require.Len(t, mappings, 1)
		assert.True(t, mappings[0].QuantityAffected.Equal(decimal.NewFromInt(20)))
		assert.True(t, mappings[0].BatchBalanceAfter.Equal(decimal.NewFromInt(80)))

		// batch untouched by delivery
		assert.True(t, h.batches(t)[0].Available.Equal(decimal.NewFromInt(80)))
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		h := newHarness(t)
		h.arrivalOn(t, day(1), 100, 0, "ARR-033")

		line := []ledger.ChallanLineItem{{ProductID: h.productID, Bags: decimal.NewFromInt(5)}}
		challan := ledger.NewChallanDelivered(h.tenantID, h.godownID, line, "CH-003")
		challan.Timestamp = day(2)
		_, err := h.translator.HandleChallanDelivered(ctx, challan)
		require.NoError(t, err)

		again := ledger.NewChallanDelivered(h.tenantID, h.godownID, line, "CH-003")
		again.Timestamp = day(2)
		res, err := h.translator.HandleChallanDelivered(ctx, again)
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Len(t, h.entries(t), 2)
	})
}

func TestTranslator_RecordDirectReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a batch outside the arrival workflow", func(t *testing.T) {
		h := newHarness(t)

		res, err := h.translator.RecordDirectReceipt(ctx, appledger.DirectReceiptParams{
			TenantID:  h.tenantID,
			GodownID:  h.godownID,
			ProductID: h.productID,
			Quantity:  decimal.NewFromInt(55),
			Grade:     ledger.QualityGradeB,
			Reference: "OPEN-001",
			Notes:     "Opening stock",
		})
		require.NoError(t, err)
		require.Len(t, res.Entries, 1)
		assert.Equal(t, ledger.SourceTypeDirectReceipt, res.Entries[0].SourceType)
		assert.True(t, res.Entries[0].BalanceAfter.Equal(decimal.NewFromInt(55)))

		batches := h.batches(t)
		require.Len(t, batches, 1)
		assert.Equal(t, ledger.QualityGradeB, batches[0].QualityGrade)
	})

	t.Run("same reference is a no-op", func(t *testing.T) {
		h := newHarness(t)
		params := appledger.DirectReceiptParams{
			TenantID:  h.tenantID,
			GodownID:  h.godownID,
			ProductID: h.productID,
			Quantity:  decimal.NewFromInt(55),
			Grade:     ledger.QualityGradeA,
			Reference: "OPEN-002",
		}
		_, err := h.translator.RecordDirectReceipt(ctx, params)
		require.NoError(t, err)
		res, err := h.translator.RecordDirectReceipt(ctx, params)
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Len(t, h.batches(t), 1)
	})

	t.Run("requires a reference", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.translator.RecordDirectReceipt(ctx, appledger.DirectReceiptParams{
			TenantID:  h.tenantID,
			GodownID:  h.godownID,
			ProductID: h.productID,
			Quantity:  decimal.NewFromInt(5),
		})
		require.Error(t, err)
	})
}
