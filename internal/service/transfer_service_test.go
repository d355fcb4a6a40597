package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/erp"
	"github.com/patagonia-core/stock-planning/internal/erp/erptest"
)

type transferFixture struct {
	*fixture
	sandbox  *erptest.Sandbox
	transfer *TransferService
	id       string
}

// newTransferFixture saves a replenishment with lines A1/S1 (7), B2/S1 (2)
// and A1/S2 (4).
func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	ctx := context.Background()
	f := newFixture()

	_, err := f.segments.Replace(ctx, []domain.SegmentationRecord{
		{SKU: "A1", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 10, "S2": 4}},
		{SKU: "B2", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 2, "S2": 0}},
	})
	require.NoError(t, err)
	f.warehouse.AddStoreStock(domain.StockRecord{SKU: "A1", Store: "S1", ERPAvailable: 3, MinQty: 1})
	f.warehouse.AddCentralStock(
		domain.CentralStock{SKU: "A1", ERPQty: 100, WMSQty: 100, MinQty: 100},
		domain.CentralStock{SKU: "B2", ERPQty: 50, WMSQty: 60, MinQty: 50},
	)
	f.warehouse.AddAttributes(
		domain.ProductAttributes{SKU: "A1", ItemNumber: "ITEM-A1", ColorID: "BLK", SizeID: "M"},
		domain.ProductAttributes{SKU: "B2", ItemNumber: "ITEM-B2"},
	)

	result, err := newReplenishmentService(f, nil).CalculateAndSave(ctx, baseRequest())
	require.NoError(t, err)
	require.Len(t, result.Lines, 3)

	sb := erptest.NewSandbox("client", "secret")
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)

	client := erp.NewClient(erp.Config{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		MaxAttempts:  2,
		Backoff:      time.Millisecond,
	}, erp.WithHTTPClient(srv.Client()))

	transfer := NewTransferService(f.runs, f.warehouse, client, LineDefaults{
		InventoryStatusID:  "Disponible",
		ShippingLocationID: "GENERICA",
		PriceType:          "CostPrice",
	})
	return &transferFixture{fixture: f, sandbox: sb, transfer: transfer, id: result.Header.ID}
}

func TestPushCreatesOneOrderPerStore(t *testing.T) {
	ctx := context.Background()
	tf := newTransferFixture(t)

	report, err := tf.transfer.PushToERP(ctx, tf.id, nil)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 3, report.Submitted)
	require.Len(t, report.Stores, 2)

	s1 := report.Stores[0]
	assert.Equal(t, "S1", s1.Store)
	assert.True(t, s1.HeaderCreated)
	require.Len(t, s1.Lines, 2)

	lines := tf.sandbox.Lines(s1.TransferOrderNumber)
	require.Len(t, lines, 2)
	assert.Equal(t, "ITEM-A1", lines[0]["ItemNumber"])
	assert.Equal(t, "BLK", lines[0]["ProductColorId"])
	assert.Equal(t, float64(7), lines[0]["TransferQuantity"])
	assert.Equal(t, float64(1), lines[0]["LineNumber"])
	assert.Equal(t, "Disponible", lines[0]["OrderedInventoryStatusId"])
	assert.Equal(t, float64(2), lines[1]["LineNumber"])

	header, ok := tf.sandbox.Header(report.Stores[1].TransferOrderNumber)
	require.True(t, ok)
	assert.Equal(t, "S2", header["ReceivingWarehouseId"])

	summary, err := tf.runs.GetSummary(ctx, tf.id)
	require.NoError(t, err)
	assert.Equal(t, s1.TransferOrderNumber, summary.ERPTransferOrders["S1"])

	stored, err := tf.runs.GetLines(ctx, tf.id)
	require.NoError(t, err)
	for _, l := range stored {
		assert.False(t, l.Pending(), l.SKU+"/"+l.Store)
	}
}

func TestPushRerunSubmitsNothing(t *testing.T) {
	ctx := context.Background()
	tf := newTransferFixture(t)

	_, err := tf.transfer.PushToERP(ctx, tf.id, nil)
	require.NoError(t, err)
	tokens, headers, lines := tf.sandbox.Calls()

	report, err := tf.transfer.PushToERP(ctx, tf.id, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Submitted)
	assert.Empty(t, report.Stores)

	t2, h2, l2 := tf.sandbox.Calls()
	assert.Equal(t, tokens, t2)
	assert.Equal(t, headers, h2)
	assert.Equal(t, lines, l2)
}

func TestPushHeaderFailureLeavesStorePending(t *testing.T) {
	ctx := context.Background()
	tf := newTransferFixture(t)
	tf.sandbox.FailHeaders["S2"] = http.StatusInternalServerError

	report, err := tf.transfer.PushToERP(ctx, tf.id, nil)
	require.NoError(t, err)
	assert.False(t, report.Complete())
	assert.Equal(t, 2, report.Submitted)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Stores, 2)
	assert.Contains(t, report.Stores[1].Error, "ERP respondió 500")
	assert.Empty(t, report.Stores[1].TransferOrderNumber)

	delete(tf.sandbox.FailHeaders, "S2")
	report, err = tf.transfer.PushToERP(ctx, tf.id, nil)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	require.Len(t, report.Stores, 1)
	assert.Equal(t, "S2", report.Stores[0].Store)
	assert.True(t, report.Stores[0].HeaderCreated)
	assert.Equal(t, 1, report.Submitted)
}

func TestPushLineFailureReusesOrder(t *testing.T) {
	ctx := context.Background()
	tf := newTransferFixture(t)
	tf.sandbox.FailItems["ITEM-B2"] = http.StatusBadRequest

	report, err := tf.transfer.PushToERP(ctx, tf.id, []string{"S1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Stores, 1)
	number := report.Stores[0].TransferOrderNumber
	assert.Contains(t, report.Stores[0].Lines[1].Error, "ERP respondió 400")

	delete(tf.sandbox.FailItems, "ITEM-B2")
	report, err = tf.transfer.PushToERP(ctx, tf.id, []string{"S1"})
	require.NoError(t, err)
	require.Len(t, report.Stores, 1)
	assert.False(t, report.Stores[0].HeaderCreated)
	assert.Equal(t, number, report.Stores[0].TransferOrderNumber)

	lines := tf.sandbox.Lines(number)
	require.Len(t, lines, 2)
	assert.Equal(t, "ITEM-B2", lines[1]["ItemNumber"])
	assert.Equal(t, float64(2), lines[1]["LineNumber"])

	// S2 was never pushed.
	stored, err := tf.runs.GetLines(ctx, tf.id)
	require.NoError(t, err)
	pending := 0
	for _, l := range stored {
		if l.Pending() {
			pending++
			assert.Equal(t, "S2", l.Store)
		}
	}
	assert.Equal(t, 1, pending)
}

func TestPushRetryKeepsLineNumberWhenFirstLineFails(t *testing.T) {
	ctx := context.Background()
	tf := newTransferFixture(t)
	tf.sandbox.FailItems["ITEM-A1"] = http.StatusBadRequest

	report, err := tf.transfer.PushToERP(ctx, tf.id, []string{"S1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Failed)
	number := report.Stores[0].TransferOrderNumber

	delete(tf.sandbox.FailItems, "ITEM-A1")
	report, err = tf.transfer.PushToERP(ctx, tf.id, []string{"S1"})
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, number, report.Stores[0].TransferOrderNumber)

	lines := tf.sandbox.Lines(number)
	require.Len(t, lines, 2)
	assert.Equal(t, "ITEM-B2", lines[0]["ItemNumber"])
	assert.Equal(t, float64(2), lines[0]["LineNumber"])
	assert.Equal(t, "ITEM-A1", lines[1]["ItemNumber"])
	assert.Equal(t, float64(1), lines[1]["LineNumber"])

	seen := make(map[float64]bool)
	for _, l := range lines {
		n := l["LineNumber"].(float64)
		assert.False(t, seen[n], "line number %v sent twice", n)
		seen[n] = true
	}
}

func TestPushLineWithoutLotIDStaysPending(t *testing.T) {
	ctx := context.Background()
	tf := newTransferFixture(t)
	tf.sandbox.OmitLotIDs["ITEM-B2"] = true

	report, err := tf.transfer.PushToERP(ctx, tf.id, []string{"S1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Stores[0].Lines, 2)
	assert.Contains(t, report.Stores[0].Lines[1].Error, "ShippingInventoryLotId")

	stored, err := tf.runs.GetLines(ctx, tf.id)
	require.NoError(t, err)
	for _, l := range stored {
		if l.SKU == "B2" {
			assert.True(t, l.Pending())
		}
	}
}

func TestAssignLineNumbers(t *testing.T) {
	lines := []domain.ReplenishmentLine{
		{ID: 1, SKU: "A1", Store: "S1", ReplenishmentQty: 7},
		{ID: 2, SKU: "A1", Store: "S2", ReplenishmentQty: 4},
		{ID: 3, SKU: "B2", Store: "S1", ReplenishmentQty: 0},
		{ID: 4, SKU: "C3", Store: "S1", ReplenishmentQty: 2},
	}
	exported := "LOT-000001"
	lines[0].ERPLineID = &exported

	assert.Equal(t, map[int64]int{1: 1, 2: 1, 4: 2}, assignLineNumbers(lines))
}

func TestPushValidation(t *testing.T) {
	ctx := context.Background()
	tf := newTransferFixture(t)

	_, err := tf.transfer.PushToERP(ctx, tf.id, []string{"S9"})
	assert.True(t, domain.IsValidation(err))

	_, err = tf.transfer.PushToERP(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = tf.transfer.CreateHeader(ctx, "")
	assert.True(t, domain.IsValidation(err))
	_, err = tf.transfer.CreateLine(ctx, "TR-1", erp.LineData{ItemNumber: "X"})
	assert.True(t, domain.IsValidation(err))
}

func TestOperatorHeaderAndLine(t *testing.T) {
	ctx := context.Background()
	tf := newTransferFixture(t)

	number, err := tf.transfer.CreateHeader(ctx, "S1")
	require.NoError(t, err)
	assert.NotEmpty(t, number)

	lineID, err := tf.transfer.CreateLine(ctx, number, erp.LineData{ItemNumber: "ITEM-A1", TransferQuantity: 3, LineNumber: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, lineID)
	assert.Len(t, tf.sandbox.Lines(number), 1)
}
