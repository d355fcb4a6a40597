package repository

import (
	"context"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

// SegmentationRepository owns the working segmentation table and its
// per-replenishment snapshots.
type SegmentationRepository interface {
	// Replace swaps the whole table for records in one transaction and returns
	// how many of the records already had a row before the swap.
	Replace(ctx context.Context, records []domain.SegmentationRecord) (existing int, err error)
	Truncate(ctx context.Context) error
	List(ctx context.Context, filter domain.SegmentFilter) ([]domain.SegmentationRecord, error)
	Count(ctx context.Context, filter domain.SegmentFilter) (int, error)
	ListByDeliveries(ctx context.Context, deliveries []string) ([]domain.SegmentationRecord, error)
	DeliveryOptions(ctx context.Context) ([]string, error)

	SaveHistory(ctx context.Context, replenishmentID string, records []domain.SegmentationRecord) error
	GetHistory(ctx context.Context, replenishmentID string) ([]domain.SegmentationHistoryRecord, error)
}
