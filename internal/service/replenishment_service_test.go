package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/repository"
	"github.com/patagonia-core/stock-planning/internal/replenishment"
	"github.com/patagonia-core/stock-planning/internal/storage"
)

func newReplenishmentService(f *fixture, store storage.ObjectStorage) *ReplenishmentService {
	return NewReplenishmentService(f.segments, f.runs, f.warehouse, store, testStores, time.Hour)
}

func baseRequest() CalculateRequest {
	return CalculateRequest{
		StartDate:       jan1,
		EndDate:         jan31,
		DeliveryOptions: []string{"shipping"},
	}
}

func TestCalculateSingleStore(t *testing.T) {
	f := newFixture()
	f.seedA1(t)
	svc := newReplenishmentService(f, nil)

	result, err := svc.Calculate(context.Background(), baseRequest())
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, "A1", line.SKU)
	assert.Equal(t, "S1", line.Store)
	assert.Equal(t, int64(7), line.ReplenishmentQty)
	assert.Equal(t, float64(2), line.SalesQty)
	assert.Equal(t, float64(3), line.StockQty)
	assert.Equal(t, "OUTDOOR", line.Team)

	assert.Equal(t, int64(7), result.Header.TotalReplenishmentQty)
	assert.Equal(t, int64(1), result.Header.TotalBreakQty)
	require.Len(t, result.Breaks, 1)
	assert.Equal(t, float64(2), result.Breaks[0].BreakQty)
	assert.Equal(t, testStores, result.Header.StoresConsidered)
}

func TestCalculateOverrides(t *testing.T) {
	f := newFixture()
	f.seedA1(t)
	svc := newReplenishmentService(f, nil)

	req := baseRequest()
	req.EditedSales = replenishment.Overrides{"A1": {"S1": 20}}
	result, err := svc.Calculate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, int64(17), result.Lines[0].ReplenishmentQty)
}

func TestCalculateValidation(t *testing.T) {
	f := newFixture()
	svc := newReplenishmentService(f, nil)
	ctx := context.Background()

	req := baseRequest()
	req.DeliveryOptions = nil
	_, err := svc.Calculate(ctx, req)
	assert.True(t, domain.IsValidation(err))

	req = baseRequest()
	req.StorePriority = []string{"S1", "S9"}
	_, err = svc.Calculate(ctx, req)
	assert.True(t, domain.IsValidation(err))

	req = baseRequest()
	req.EndDate = jan1.AddDate(0, 0, -1)
	_, err = svc.Calculate(ctx, req)
	assert.True(t, domain.IsValidation(err))
}

func TestCalculateAndSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedA1(t)
	svc := newReplenishmentService(f, nil)

	result, err := svc.CalculateAndSave(ctx, baseRequest())
	require.NoError(t, err)
	require.NotEmpty(t, result.Header.ID)
	require.Len(t, result.Lines, 1)
	assert.NotZero(t, result.Lines[0].ID)

	header, err := svc.Summary(ctx, result.Header.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), header.TotalReplenishmentQty)
	assert.Equal(t, []string{"shipping"}, header.SelectedDeliveryOptions)

	history, err := f.segments.GetHistory(ctx, result.Header.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, float64(10), history[0].Targets["S1"])

	// Changing the segmentation afterwards leaves the snapshot alone.
	_, err = f.segments.Replace(ctx, []domain.SegmentationRecord{
		{SKU: "A1", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 1}},
	})
	require.NoError(t, err)
	history, err = f.segments.GetHistory(ctx, result.Header.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(10), history[0].Targets["S1"])

	list, err := svc.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 1, list.Items[0].PendingLines)
}

// historyFailingSegments rejects every segmentation snapshot.
type historyFailingSegments struct {
	repository.SegmentationRepository
}

func (historyFailingSegments) SaveHistory(context.Context, string, []domain.SegmentationRecord) error {
	return errors.New("history table unavailable")
}

func TestCalculateAndSaveRemovesHeaderWhenSnapshotFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedA1(t)
	svc := NewReplenishmentService(historyFailingSegments{f.segments}, f.runs, f.warehouse, nil, testStores, time.Hour)

	_, err := svc.CalculateAndSave(ctx, baseRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segmentation history")

	items, total, err := f.runs.List(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestLinesGroupBy(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedA1(t)
	svc := newReplenishmentService(f, nil)

	result, err := svc.CalculateAndSave(ctx, baseRequest())
	require.NoError(t, err)

	view, err := svc.Lines(ctx, result.Header.ID, "team")
	require.NoError(t, err)
	assert.Equal(t, domain.GroupByTeam, view.GroupBy)
	require.Len(t, view.Groups, 1)
	assert.Equal(t, "OUTDOOR", view.Groups[0].Key)
	assert.Equal(t, int64(7), view.Groups[0].ReplenishmentQty)

	view, err = svc.Lines(ctx, result.Header.ID, "")
	require.NoError(t, err)
	assert.Nil(t, view.Groups)
	assert.Len(t, view.Lines, 1)

	_, err = svc.Lines(ctx, result.Header.ID, "supplier")
	assert.True(t, domain.IsValidation(err))
}

func TestDeleteReplenishment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedA1(t)
	svc := newReplenishmentService(f, nil)

	result, err := svc.CalculateAndSave(ctx, baseRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, result.Header.ID))

	_, err = svc.Summary(ctx, result.Header.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	history, err := f.segments.GetHistory(ctx, result.Header.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, svc.Delete(ctx, result.Header.ID), domain.ErrNotFound)
}

func TestExportOperationCSV(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedA1(t)
	store := storage.NewMemoryStorage("http://files.local")
	svc := newReplenishmentService(f, store)
	now := time.Date(2024, 2, 1, 12, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	result, err := svc.CalculateAndSave(ctx, baseRequest())
	require.NoError(t, err)

	export, err := svc.ExportOperationCSV(ctx, result.Header.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(export.Key, "operations/"))
	assert.True(t, strings.HasSuffix(export.Key, "/20240201T123000Z.csv"))
	assert.Equal(t, 1, export.Rows)
	assert.Equal(t, now.Add(time.Hour), export.ExpiresAt)
	assert.Contains(t, export.URL, export.Key)

	data, ok := store.Object(export.Key)
	require.True(t, ok)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, operationCSVHeader, records[0])
	assert.Equal(t, []string{
		"S1", "A1", "ITEM-A1", "BLK", "M", "STD", "ST1", "Down jacket",
		"OUTDOOR", "JACKETS", "CC1", "7", "", "",
	}, records[1])

	noStorage := newReplenishmentService(f, nil)
	_, err = noStorage.ExportOperationCSV(ctx, result.Header.ID)
	assert.True(t, domain.IsValidation(err))
}
