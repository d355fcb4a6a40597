package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

type fakeDrive struct {
	files map[string]string
	paths map[string]string
}

func (d *fakeDrive) DownloadFile(_ context.Context, fileID string, w io.Writer) error {
	content, ok := d.files[fileID]
	if !ok {
		return errors.New("file not found: " + fileID)
	}
	_, err := io.WriteString(w, content)
	return err
}

func (d *fakeDrive) FindFileByPath(_ context.Context, filePath string) (string, error) {
	id, ok := d.paths[filePath]
	if !ok {
		return "", errors.New("path not found: " + filePath)
	}
	return id, nil
}

func TestSegmentationUploadCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := NewSegmentationService(f.segments, nil, nil, testStores)

	report, err := svc.Upload(ctx, []domain.SegmentationRecord{
		{SKU: "A-1", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 10}},
		{SKU: "B2", DeliveryOption: "shipping", Targets: map[string]float64{"s2": 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Received)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Empty(t, report.Errors)

	rows, err := f.segments.ListByDeliveries(ctx, []string{"shipping"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1", rows[0].SKU)
	assert.Equal(t, map[string]float64{"S1": 10, "S2": 0}, rows[0].Targets)
	assert.Equal(t, map[string]float64{"S1": 0, "S2": 4}, rows[1].Targets)

	report, err = svc.Upload(ctx, []domain.SegmentationRecord{
		{SKU: "A1", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 1}},
		{SKU: "A1", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 2}},
		{SKU: "C3", DeliveryOption: "pickup", Targets: map[string]float64{"S1": 3}},
		{SKU: "D4", DeliveryOption: "pickup", Targets: map[string]float64{"S9": 3}},
		{SKU: "E5", DeliveryOption: "pickup", Targets: map[string]float64{"S1": -1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Received)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.Updated)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 4, report.Errors[0].Row)
	assert.Contains(t, report.Errors[0].Message, "S9")
	assert.Equal(t, 5, report.Errors[1].Row)

	// The table was replaced: B2 is gone and A1 keeps the last row.
	rows, err = f.segments.ListByDeliveries(ctx, []string{"shipping", "pickup"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1", rows[0].SKU)
	assert.Equal(t, float64(2), rows[0].Targets["S1"])
	assert.Equal(t, "C3", rows[1].SKU)
}

func TestSegmentationUploadAllInvalidKeepsTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedA1(t)
	svc := NewSegmentationService(f.segments, nil, nil, testStores)

	report, err := svc.Upload(ctx, []domain.SegmentationRecord{
		{SKU: "", DeliveryOption: "shipping"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	require.Len(t, report.Errors, 1)

	count, err := f.segments.Count(ctx, domain.SegmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = svc.Upload(ctx, nil)
	assert.True(t, domain.IsValidation(err))
}

func TestSegmentationUploadFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedA1(t)
	f.store.FailReplaceAfter = 1
	svc := NewSegmentationService(f.segments, nil, nil, testStores)

	_, err := svc.Upload(ctx, []domain.SegmentationRecord{
		{SKU: "X1", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 1}},
		{SKU: "X2", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 1}},
	})
	require.Error(t, err)

	rows, err := f.segments.ListByDeliveries(ctx, []string{"shipping"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A1", rows[0].SKU)
}

func TestSegmentationDeliveryOptionsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := newMapCache()
	svc := NewSegmentationService(f.segments, c, nil, testStores)

	_, err := svc.Upload(ctx, []domain.SegmentationRecord{
		{SKU: "A1", DeliveryOption: "shipping"},
		{SKU: "A1", DeliveryOption: "pickup"},
	})
	require.NoError(t, err)

	options, err := svc.DeliveryOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pickup", "shipping"}, options)
	assert.Equal(t, []string{"pickup", "shipping"}, c.options)

	require.NoError(t, svc.Truncate(ctx))
	assert.Nil(t, c.options)

	options, err = svc.DeliveryOptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestSegmentationListPaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := NewSegmentationService(f.segments, nil, nil, testStores)

	records := make([]domain.SegmentationRecord, 0, 12)
	for _, sku := range strings.Split("A B C D E F G H I J K L", " ") {
		records = append(records, domain.SegmentationRecord{SKU: sku, DeliveryOption: "shipping"})
	}
	_, err := svc.Upload(ctx, records)
	require.NoError(t, err)

	page, err := svc.List(ctx, domain.SegmentFilter{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "K", page.Items[0].SKU)
}

func TestSegmentationImportFromDrive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	drive := &fakeDrive{
		files: map[string]string{"file-1": "SKU;DELIVERY;S1;S2\nA1;shipping;4;2\n"},
		paths: map[string]string{"Planning/segmentation.csv": "file-1"},
	}
	svc := NewSegmentationService(f.segments, nil, drive, testStores)

	id, err := svc.ResolveDrivePath(ctx, "Planning/segmentation.csv")
	require.NoError(t, err)

	report, err := svc.ImportFromDrive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	_, err = svc.ImportFromDrive(ctx, "missing")
	require.Error(t, err)

	noDrive := NewSegmentationService(f.segments, nil, nil, testStores)
	_, err = noDrive.ImportFromDrive(ctx, "file-1")
	assert.True(t, domain.IsValidation(err))
}

func TestSegmentationHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedA1(t)
	svc := NewSegmentationService(f.segments, nil, nil, testStores)

	id, err := f.runs.Save(ctx, &domain.ReplenishmentHeader{StoresConsidered: testStores}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.SaveHistory(ctx, id, []string{"shipping"}))
	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].ReplenishmentID)
	assert.Equal(t, float64(10), history[0].Targets["S1"])

	err = svc.SaveHistory(ctx, "missing", []string{"shipping"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
