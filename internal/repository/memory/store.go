// Package memory keeps segmentation and replenishments in process memory. It
// backs the service tests and the DB_DRIVER=memory dev mode.
package memory

import (
	"errors"
	"sync"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

type segmentKey struct {
	sku      string
	delivery string
}

type Store struct {
	mu sync.RWMutex

	segments map[segmentKey]domain.SegmentationRecord
	history  map[string][]domain.SegmentationHistoryRecord

	headers    map[string]domain.ReplenishmentHeader
	lines      map[string][]domain.ReplenishmentLine
	nextLineID int64

	// FailReplaceAfter makes Replace fail once this many rows were staged.
	// Zero disables it.
	FailReplaceAfter int
}

var (
	errReplaceFailed   = errors.New("memory: replace aborted")
	errDuplicateHeader = errors.New("memory: duplicate replenishment id")
)

func NewStore() *Store {
	return &Store{
		segments:   make(map[segmentKey]domain.SegmentationRecord),
		history:    make(map[string][]domain.SegmentationHistoryRecord),
		headers:    make(map[string]domain.ReplenishmentHeader),
		lines:      make(map[string][]domain.ReplenishmentLine),
		nextLineID: 1,
	}
}

func cloneTargets(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func paginate[T any](items []T, offset, size int) []T {
	if size <= 0 {
		return items
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
