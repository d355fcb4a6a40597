package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

func seg(sku, delivery string, targets map[string]float64) domain.SegmentationRecord {
	return domain.SegmentationRecord{SKU: sku, DeliveryOption: delivery, Targets: targets}
}

func TestSegmentationReplace(t *testing.T) {
	ctx := context.Background()
	repo := NewSegmentationRepository(NewStore())

	existing, err := repo.Replace(ctx, []domain.SegmentationRecord{
		seg("A1", "shipping", map[string]float64{"S1": 5}),
		seg("B2", "shipping", map[string]float64{"S1": 1}),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, existing)

	existing, err = repo.Replace(ctx, []domain.SegmentationRecord{
		seg("A1", "shipping", map[string]float64{"S1": 7}),
		seg("C3", "pickup", map[string]float64{"S2": 2}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, existing)

	rows, err := repo.List(ctx, domain.SegmentFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1", rows[0].SKU)
	assert.Equal(t, 7.0, rows[0].Targets["S1"])
	assert.Equal(t, "C3", rows[1].SKU)

	opts, err := repo.DeliveryOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pickup", "shipping"}, opts)
}

func TestSegmentationReplaceFailureKeepsPreviousRows(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewSegmentationRepository(store)

	_, err := repo.Replace(ctx, []domain.SegmentationRecord{seg("A1", "shipping", map[string]float64{"S1": 5})})
	require.NoError(t, err)

	store.FailReplaceAfter = 1
	_, err = repo.Replace(ctx, []domain.SegmentationRecord{
		seg("X1", "shipping", nil),
		seg("X2", "shipping", nil),
	})
	require.Error(t, err)

	n, err := repo.Count(ctx, domain.SegmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSegmentationListFilterAndSort(t *testing.T) {
	ctx := context.Background()
	repo := NewSegmentationRepository(NewStore())
	_, err := repo.Replace(ctx, []domain.SegmentationRecord{
		seg("AB1", "shipping", map[string]float64{"S1": 1}),
		seg("AB2", "shipping", map[string]float64{"S1": 9}),
		seg("ZZ9", "pickup", map[string]float64{"S1": 4}),
	})
	require.NoError(t, err)

	rows, err := repo.List(ctx, domain.SegmentFilter{Query: "ab", SortKey: "S1", SortDir: "desc"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AB2", rows[0].SKU)

	rows, err = repo.List(ctx, domain.SegmentFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ZZ9", rows[0].SKU)

	byDelivery, err := repo.ListByDeliveries(ctx, []string{"pickup"})
	require.NoError(t, err)
	require.Len(t, byDelivery, 1)
	assert.Equal(t, "ZZ9", byDelivery[0].SKU)
}

func saveRun(t *testing.T, repo *ReplenishmentRepository) string {
	t.Helper()
	header := &domain.ReplenishmentHeader{
		TotalReplenishmentQty: 5,
		StartDate:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:               time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		StoresConsidered:      []string{"S2", "S1"},
	}
	id, err := repo.Save(context.Background(), header, []domain.ReplenishmentLine{
		{SKU: "B", Store: "S1", ReplenishmentQty: 2},
		{SKU: "A", Store: "S1", ReplenishmentQty: 0},
		{SKU: "A", Store: "S2", ReplenishmentQty: 3},
	})
	require.NoError(t, err)
	return id
}

func TestReplenishmentSaveAndLines(t *testing.T) {
	ctx := context.Background()
	repo := NewReplenishmentRepository(NewStore())
	id := saveRun(t, repo)
	assert.NotEmpty(t, id)

	lines, err := repo.GetLines(ctx, id)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "A", lines[0].SKU)
	assert.Equal(t, "S2", lines[0].Store)
	assert.Equal(t, "S1", lines[1].Store)
	assert.Equal(t, "B", lines[2].SKU)

	missing, err := repo.GetLines(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, missing)

	_, err = repo.GetSummary(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReplenishmentUpdateERPInfo(t *testing.T) {
	ctx := context.Background()
	repo := NewReplenishmentRepository(NewStore())
	id := saveRun(t, repo)

	lines, err := repo.GetLines(ctx, id)
	require.NoError(t, err)
	var s2Line int64
	for _, l := range lines {
		if l.Store == "S2" {
			s2Line = l.ID
		}
	}

	require.NoError(t, repo.UpdateERPInfo(ctx, id, map[string]string{"S2": "TR-000001"}, map[int64]string{s2Line: "LOT-1"}))
	require.NoError(t, repo.UpdateERPInfo(ctx, id, map[string]string{"S1": "TR-000002"}, nil))

	header, err := repo.GetSummary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"S1": "TR-000002", "S2": "TR-000001"}, header.ERPTransferOrders)

	rows, err := repo.GetOperationRows(ctx, id)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "S1", rows[0].Store)
	assert.False(t, rows[0].Exported)
	assert.Equal(t, "TR-000002", *rows[0].ERPTransferOrderNumber)
	assert.True(t, rows[1].Exported)
	assert.Equal(t, "LOT-1", *rows[1].ERPLineID)

	items, total, err := repo.List(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 3, items[0].LineCount)
	assert.Equal(t, 1, items[0].PendingLines)
}

func TestReplenishmentDeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewReplenishmentRepository(store)
	segs := NewSegmentationRepository(store)
	id := saveRun(t, repo)

	require.NoError(t, segs.SaveHistory(ctx, id, []domain.SegmentationRecord{seg("A", "shipping", map[string]float64{"S1": 1})}))
	history, err := segs.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	require.NoError(t, repo.Delete(ctx, id))
	assert.ErrorIs(t, repo.Delete(ctx, id), domain.ErrNotFound)

	history, err = segs.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = repo.GetOperationRows(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWarehouseSalesPagination(t *testing.T) {
	ctx := context.Background()
	w := NewWarehouse()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	w.AddSales(
		Sale{SKU: "A", Store: "S1", Qty: 2, Date: day},
		Sale{SKU: "A", Store: "S2", Qty: 1, Date: day},
		Sale{SKU: "B", Store: "S1", Qty: 5, Date: day},
		Sale{SKU: "C", Store: "S1", Qty: 9, Date: day.AddDate(1, 0, 0)},
	)

	f := domain.AggregateFilter{Start: day.AddDate(0, 0, -1), End: day.AddDate(0, 0, 1), PageSize: 1, Page: 1}
	rows, err := w.FetchSales(ctx, f)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	total, err := w.CountSales(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	f.SortKey, f.SortDir = "TOTAL", "desc"
	rows, err = w.FetchSales(ctx, f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B", rows[0].SKU)
}
