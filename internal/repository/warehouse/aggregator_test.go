package warehouse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(nil, Settings{
		Schema:             "core",
		Stores:             []string{"PUCON", "TEMUCO"},
		CentralWarehouseID: "CD",
		SalesInvoicePrefix: "39-",
	})
}

func TestSalesQueryPaginatesBySKU(t *testing.T) {
	a := newTestAggregator()
	f := domain.AggregateFilter{
		Query:    "ab",
		Start:    time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
		Page:     3,
		PageSize: 20,
		SortKey:  "pucon",
		SortDir:  "desc",
	}

	sql, args, err := a.salesQuery(f)
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM core.erp_processed_salesline")
	assert.Contains(t, sql, "IN (SELECT REPLACE(sku, '-', '')")
	assert.Contains(t, sql, "SUM(CASE WHEN inventlocationid = $")
	assert.Contains(t, sql, "LIMIT 20 OFFSET 40")
	assert.NotContains(t, sql, "?")
	assert.Contains(t, args, "%AB%")
	assert.Contains(t, args, "39-%")
	assert.Contains(t, args, "PUCON")
}

func TestSalesQueryIgnoresUnknownSortKey(t *testing.T) {
	a := newTestAggregator()

	sql, args, err := a.salesQuery(domain.AggregateFilter{SortKey: "qty; DROP TABLE x", PageSize: 10})
	require.NoError(t, err)

	assert.NotContains(t, sql, "DROP")
	for _, arg := range args {
		assert.NotEqual(t, "qty; DROP TABLE x", arg)
	}
}

func TestSalesQueryWithoutPagination(t *testing.T) {
	a := newTestAggregator()

	sql, _, err := a.salesQuery(domain.AggregateFilter{NoPagination: true})
	require.NoError(t, err)

	assert.NotContains(t, sql, "LIMIT")
	assert.Equal(t, 1, strings.Count(sql, "FROM core.erp_processed_salesline"))
}

func TestCentralQuery(t *testing.T) {
	a := newTestAggregator()

	sql, args, err := a.centralQuery(domain.AggregateFilter{SortKey: "minstock", SortDir: "desc", Page: 2, PageSize: 10})
	require.NoError(t, err)

	assert.Contains(t, sql, "LEAST(SUM(erp.availableonhandquantity), COALESCE(MAX(w.qty), 0)) AS min_qty")
	assert.Contains(t, sql, "LEFT JOIN (SELECT itemcode, SUM(qtystock - qtypendingpicking) AS qty FROM core.wms_inventory")
	assert.Contains(t, sql, "ORDER BY min_qty DESC")
	assert.Contains(t, sql, "LIMIT 10 OFFSET 10")
	assert.Contains(t, args, "CD")
}

func TestStoreStockQuery(t *testing.T) {
	a := newTestAggregator()

	sql, args, err := a.storeStockQuery(domain.AggregateFilter{NoPagination: true})
	require.NoError(t, err)

	assert.Contains(t, sql, "core.erp_item_coverage")
	assert.Contains(t, sql, "SUM(i.orderedquantity) AS ordered_qty")
	assert.Contains(t, sql, "i.inventorywarehouseid IN ($1,$2)")
	assert.Equal(t, "PUCON", args[0])
}

func TestAttributesQuery(t *testing.T) {
	a := newTestAggregator()

	sql, args, err := a.attributesQuery([]string{"A1", "B2"})
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM core.erp_product_attributes")
	assert.Equal(t, []any{"A1", "B2"}, args)
}
