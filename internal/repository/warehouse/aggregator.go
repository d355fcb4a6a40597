// Package warehouse reads sales and inventory aggregates from the analytical
// warehouse. ERP and WMS figures are returned side by side, never reconciled.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

const defaultPageSize = 10

// Settings describes the warehouse layout the aggregator reads from.
type Settings struct {
	Schema             string
	Stores             []string
	CentralWarehouseID string
	SalesInvoicePrefix string
}

// Aggregator implements repository.Aggregator over pgx.
type Aggregator struct {
	q        pgxscan.Querier
	settings Settings
	builder  sq.StatementBuilderType
}

// NewAggregator creates a new warehouse aggregator
func NewAggregator(q pgxscan.Querier, settings Settings) *Aggregator {
	if settings.Schema == "" {
		settings.Schema = "core"
	}
	if settings.CentralWarehouseID == "" {
		settings.CentralWarehouseID = "CD"
	}
	return &Aggregator{
		q:        q,
		settings: settings,
		builder:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (a *Aggregator) table(name string) string {
	return a.settings.Schema + "." + name
}

const normalizedSKU = "REPLACE(%s, '-', '')"

func skuExpr(column string) string {
	return fmt.Sprintf(normalizedSKU, column)
}

func likeQuery(query string) string {
	return "%" + strings.ToUpper(strings.TrimSpace(query)) + "%"
}

func sortDirection(dir string) string {
	if strings.EqualFold(dir, "desc") {
		return "DESC"
	}
	return "ASC"
}

func pageSize(f domain.AggregateFilter) int {
	if f.PageSize <= 0 {
		return defaultPageSize
	}
	return f.PageSize
}

func (a *Aggregator) isStore(key string) bool {
	for _, s := range a.settings.Stores {
		if strings.EqualFold(s, key) {
			return true
		}
	}
	return false
}

// salesWhere is the filter shared by the sales queries.
func (a *Aggregator) salesWhere(f domain.AggregateFilter) sq.And {
	return sq.And{
		sq.Expr("invoicedate BETWEEN ? AND ?", f.Start, f.End),
		sq.Like{"invoiceid": a.settings.SalesInvoicePrefix + "%"},
		sq.Like{"UPPER(" + skuExpr("sku") + ")": likeQuery(f.Query)},
		sq.Eq{"inventlocationid": a.settings.Stores},
	}
}

// salesOrder returns the ORDER BY clause for a sales page. Valid keys are
// SKU, TOTAL and any configured store code.
func (a *Aggregator) salesOrder(f domain.AggregateFilter) sq.Sqlizer {
	dir := sortDirection(f.SortDir)
	key := strings.ToUpper(strings.TrimSpace(f.SortKey))
	switch {
	case key == "TOTAL":
		return sq.Expr("SUM(qty) " + dir)
	case key != "SKU" && key != "" && a.isStore(key):
		return sq.Expr("SUM(CASE WHEN inventlocationid = ? THEN qty ELSE 0 END) "+dir, key)
	case key == "SKU":
		return sq.Expr(skuExpr("sku") + " " + dir)
	default:
		return sq.Expr(skuExpr("sku") + " ASC")
	}
}

func (a *Aggregator) salesQuery(f domain.AggregateFilter) (string, []any, error) {
	query := a.builder.
		Select(skuExpr("sku")+" AS sku", "inventlocationid AS store", "SUM(qty) AS qty").
		From(a.table("erp_processed_salesline")).
		Where(a.salesWhere(f)).
		GroupBy(skuExpr("sku"), "inventlocationid").
		OrderBy(skuExpr("sku"), "inventlocationid")

	if !f.NoPagination {
		page := sq.Select(skuExpr("sku")).
			From(a.table("erp_processed_salesline")).
			Where(a.salesWhere(f)).
			GroupBy(skuExpr("sku")).
			OrderByClause(a.salesOrder(f)).
			Limit(uint64(pageSize(f))).
			Offset(uint64(f.Offset()))
		query = query.Where(sq.Expr(skuExpr("sku")+" IN (?)", page))
	}

	return query.ToSql()
}

// FetchSales returns the quantity sold per SKU and store in the filter window.
// Pagination is by SKU: a page holds every store row of its SKUs.
func (a *Aggregator) FetchSales(ctx context.Context, f domain.AggregateFilter) ([]domain.SalesRecord, error) {
	sql, args, err := a.salesQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build sales query: %w", err)
	}

	var rows []domain.SalesRecord
	if err := pgxscan.Select(ctx, a.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}
	return rows, nil
}

// CountSales returns the number of distinct SKUs sold in the filter window.
func (a *Aggregator) CountSales(ctx context.Context, f domain.AggregateFilter) (int, error) {
	sql, args, err := a.builder.
		Select("COUNT(DISTINCT " + skuExpr("sku") + ")").
		From(a.table("erp_processed_salesline")).
		Where(a.salesWhere(f)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sales count: %w", err)
	}

	var total int
	if err := pgxscan.Get(ctx, a.q, &total, sql, args...); err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return total, nil
}

var centralSortKeys = map[string]string{
	"SKU":      "sku",
	"STOCKERP": "erp_qty",
	"STOCKWMS": "wms_qty",
	"MINSTOCK": "min_qty",
}

func (a *Aggregator) wmsByItem() string {
	return fmt.Sprintf(
		"(SELECT itemcode, SUM(qtystock - qtypendingpicking) AS qty FROM %s GROUP BY itemcode) AS w ON w.itemcode = %s",
		a.table("wms_inventory"), skuExpr("erp.sku"))
}

func (a *Aggregator) centralWhere(f domain.AggregateFilter) sq.And {
	return sq.And{
		sq.Eq{"erp.inventorywarehouseid": a.settings.CentralWarehouseID},
		sq.Expr("UPPER(erp.inventorystatusid) = 'DISPONIBLE'"),
		sq.Like{"UPPER(" + skuExpr("erp.sku") + ")": likeQuery(f.Query)},
	}
}

func (a *Aggregator) centralQuery(f domain.AggregateFilter) (string, []any, error) {
	order := "sku ASC"
	if col, ok := centralSortKeys[strings.ToUpper(strings.TrimSpace(f.SortKey))]; ok {
		order = col + " " + sortDirection(f.SortDir)
	}

	query := a.builder.
		Select(
			skuExpr("erp.sku")+" AS sku",
			"SUM(erp.availableonhandquantity) AS erp_qty",
			"COALESCE(MAX(w.qty), 0) AS wms_qty",
			"LEAST(SUM(erp.availableonhandquantity), COALESCE(MAX(w.qty), 0)) AS min_qty",
		).
		From(a.table("erp_inventory") + " AS erp").
		LeftJoin(a.wmsByItem()).
		Where(a.centralWhere(f)).
		GroupBy(skuExpr("erp.sku")).
		OrderBy(order)

	if !f.NoPagination {
		query = query.Limit(uint64(pageSize(f))).Offset(uint64(f.Offset()))
	}
	return query.ToSql()
}

// FetchCentralStock returns the central warehouse stock per SKU. MinQty is the
// lower of the ERP and WMS quantities.
func (a *Aggregator) FetchCentralStock(ctx context.Context, f domain.AggregateFilter) ([]domain.CentralStock, error) {
	sql, args, err := a.centralQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build central stock query: %w", err)
	}

	var rows []domain.CentralStock
	if err := pgxscan.Select(ctx, a.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("fetch central stock: %w", err)
	}
	return rows, nil
}

// CountCentralStock returns the number of SKUs with stock at the central warehouse.
func (a *Aggregator) CountCentralStock(ctx context.Context, f domain.AggregateFilter) (int, error) {
	sql, args, err := a.builder.
		Select("COUNT(DISTINCT " + skuExpr("erp.sku") + ")").
		From(a.table("erp_inventory") + " AS erp").
		Where(a.centralWhere(f)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build central stock count: %w", err)
	}

	var total int
	if err := pgxscan.Get(ctx, a.q, &total, sql, args...); err != nil {
		return 0, fmt.Errorf("count central stock: %w", err)
	}
	return total, nil
}

func (a *Aggregator) storeWhere(f domain.AggregateFilter) sq.And {
	return sq.And{
		sq.Eq{"i.inventorywarehouseid": a.settings.Stores},
		sq.Like{"UPPER(" + skuExpr("i.sku") + ")": likeQuery(f.Query)},
	}
}

func (a *Aggregator) storeStockQuery(f domain.AggregateFilter) (string, []any, error) {
	wms := fmt.Sprintf(
		"(SELECT itemcode, warehousecode, SUM(qtystock - qtypendingpicking) AS qty FROM %s GROUP BY itemcode, warehousecode) AS w "+
			"ON w.itemcode = %s AND w.warehousecode = i.inventorywarehouseid",
		a.table("wms_inventory"), skuExpr("i.sku"))
	coverage := fmt.Sprintf(
		"(SELECT %s AS sku, inventlocationid, MAX(minimuminventoryquantity) AS min_qty FROM %s GROUP BY 1, 2) AS c "+
			"ON c.sku = %s AND c.inventlocationid = i.inventorywarehouseid",
		skuExpr("sku"), a.table("erp_item_coverage"), skuExpr("i.sku"))

	query := a.builder.
		Select(
			skuExpr("i.sku")+" AS sku",
			"i.inventorywarehouseid AS store",
			"SUM(i.availableonhandquantity) AS erp_available",
			"COALESCE(MAX(w.qty), 0) AS wms_available",
			"SUM(i.orderedquantity) AS ordered_qty",
			"COALESCE(MAX(c.min_qty), 0) AS min_qty",
		).
		From(a.table("erp_inventory") + " AS i").
		LeftJoin(wms).
		LeftJoin(coverage).
		Where(a.storeWhere(f)).
		GroupBy(skuExpr("i.sku"), "i.inventorywarehouseid").
		OrderBy(skuExpr("i.sku"), "i.inventorywarehouseid")

	if !f.NoPagination {
		page := sq.Select(skuExpr("i.sku")).
			From(a.table("erp_inventory") + " AS i").
			Where(a.storeWhere(f)).
			GroupBy(skuExpr("i.sku")).
			OrderBy(skuExpr("i.sku")).
			Limit(uint64(pageSize(f))).
			Offset(uint64(f.Offset()))
		query = query.Where(sq.Expr(skuExpr("i.sku")+" IN (?)", page))
	}
	return query.ToSql()
}

// FetchStoreStock returns the stock, transit and minimum per SKU and store.
func (a *Aggregator) FetchStoreStock(ctx context.Context, f domain.AggregateFilter) ([]domain.StockRecord, error) {
	sql, args, err := a.storeStockQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build store stock query: %w", err)
	}

	var rows []domain.StockRecord
	if err := pgxscan.Select(ctx, a.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("fetch store stock: %w", err)
	}
	return rows, nil
}

// CountStoreStock returns the number of SKUs stocked in the configured stores.
func (a *Aggregator) CountStoreStock(ctx context.Context, f domain.AggregateFilter) (int, error) {
	sql, args, err := a.builder.
		Select("COUNT(DISTINCT " + skuExpr("i.sku") + ")").
		From(a.table("erp_inventory") + " AS i").
		Where(a.storeWhere(f)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build store stock count: %w", err)
	}

	var total int
	if err := pgxscan.Get(ctx, a.q, &total, sql, args...); err != nil {
		return 0, fmt.Errorf("count store stock: %w", err)
	}
	return total, nil
}

func (a *Aggregator) attributesQuery(skus []string) (string, []any, error) {
	return a.builder.
		Select(
			skuExpr("sku")+" AS sku",
			"COALESCE(team, '') AS team",
			"COALESCE(category, '') AS category",
			"COALESCE(cost_center, '') AS cost_center",
			"COALESCE(item_number, '') AS item_number",
			"COALESCE(color_id, '') AS color_id",
			"COALESCE(size_id, '') AS size_id",
			"COALESCE(configuration_id, '') AS configuration_id",
			"COALESCE(style_id, '') AS style_id",
			"COALESCE(description, '') AS description",
		).
		From(a.table("erp_product_attributes")).
		Where(sq.Eq{skuExpr("sku"): skus}).
		ToSql()
}

// FetchProductAttributes returns the product dimensions of the given SKUs.
func (a *Aggregator) FetchProductAttributes(ctx context.Context, skus []string) ([]domain.ProductAttributes, error) {
	if len(skus) == 0 {
		return []domain.ProductAttributes{}, nil
	}

	sql, args, err := a.attributesQuery(skus)
	if err != nil {
		return nil, fmt.Errorf("build product attributes query: %w", err)
	}

	var rows []domain.ProductAttributes
	if err := pgxscan.Select(ctx, a.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("fetch product attributes: %w", err)
	}
	return rows, nil
}
