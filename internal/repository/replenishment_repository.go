package repository

import (
	"context"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

// ReplenishmentRepository stores calculation runs and their lines.
type ReplenishmentRepository interface {
	// Save stores the header and its lines in one transaction. An empty header
	// ID gets a new UUID. The stored ID is returned.
	Save(ctx context.Context, header *domain.ReplenishmentHeader, lines []domain.ReplenishmentLine) (string, error)
	GetSummary(ctx context.Context, id string) (*domain.ReplenishmentHeader, error)
	// GetLines returns the lines of a replenishment ordered by SKU and store
	// priority. A missing replenishment yields an empty slice.
	GetLines(ctx context.Context, id string) ([]domain.ReplenishmentLine, error)
	// UpdateERPInfo merges transfer order numbers per store into the header and
	// stamps ERP line ids on lines. A stamped line takes the transfer order
	// number of its store.
	UpdateERPInfo(ctx context.Context, id string, transferOrders map[string]string, lineERPIDs map[int64]string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query string, page, limit int) ([]domain.ReplenishmentListItem, int, error)
	GetOperationRows(ctx context.Context, id string) ([]domain.OperationRow, error)
}

// Aggregator reads sales and stock aggregates from the analytical warehouse.
type Aggregator interface {
	FetchSales(ctx context.Context, f domain.AggregateFilter) ([]domain.SalesRecord, error)
	CountSales(ctx context.Context, f domain.AggregateFilter) (int, error)
	FetchStoreStock(ctx context.Context, f domain.AggregateFilter) ([]domain.StockRecord, error)
	CountStoreStock(ctx context.Context, f domain.AggregateFilter) (int, error)
	FetchCentralStock(ctx context.Context, f domain.AggregateFilter) ([]domain.CentralStock, error)
	CountCentralStock(ctx context.Context, f domain.AggregateFilter) (int, error)
	FetchProductAttributes(ctx context.Context, skus []string) ([]domain.ProductAttributes, error)
}
