package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

// SegmentationRepository serves the segmentation table from a Store.
type SegmentationRepository struct {
	*Store
}

func NewSegmentationRepository(s *Store) *SegmentationRepository {
	return &SegmentationRepository{Store: s}
}

func (s *SegmentationRepository) Replace(_ context.Context, records []domain.SegmentationRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[segmentKey]domain.SegmentationRecord, len(records))
	existing := 0
	for i, rec := range records {
		if s.FailReplaceAfter > 0 && i >= s.FailReplaceAfter {
			return 0, errReplaceFailed
		}
		key := segmentKey{rec.SKU, rec.DeliveryOption}
		if _, ok := s.segments[key]; ok {
			existing++
		}
		rec.Targets = cloneTargets(rec.Targets)
		staged[key] = rec
	}

	s.segments = staged
	return existing, nil
}

func (s *SegmentationRepository) Truncate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = make(map[segmentKey]domain.SegmentationRecord)
	return nil
}

func (s *Store) sortedSegments() []domain.SegmentationRecord {
	out := make([]domain.SegmentationRecord, 0, len(s.segments))
	for _, rec := range s.segments {
		rec.Targets = cloneTargets(rec.Targets)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SKU != out[j].SKU {
			return out[i].SKU < out[j].SKU
		}
		return out[i].DeliveryOption < out[j].DeliveryOption
	})
	return out
}

func matchSegment(rec domain.SegmentationRecord, f domain.SegmentFilter) bool {
	if f.DeliveryOption != "" && rec.DeliveryOption != f.DeliveryOption {
		return false
	}
	if q := strings.ToUpper(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToUpper(rec.SKU), q) || strings.Contains(strings.ToUpper(rec.DeliveryOption), q)
	}
	return true
}

func (s *SegmentationRepository) List(_ context.Context, f domain.SegmentFilter) ([]domain.SegmentationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SegmentationRecord, 0)
	for _, rec := range s.sortedSegments() {
		if matchSegment(rec, f) {
			out = append(out, rec)
		}
	}

	desc := strings.EqualFold(f.SortDir, "desc")
	switch key := strings.ToUpper(f.SortKey); key {
	case "", "SKU":
		if desc {
			sort.SliceStable(out, func(i, j int) bool { return out[i].SKU > out[j].SKU })
		}
	case "DELIVERY":
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return out[i].DeliveryOption > out[j].DeliveryOption
			}
			return out[i].DeliveryOption < out[j].DeliveryOption
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return out[i].Targets[key] > out[j].Targets[key]
			}
			return out[i].Targets[key] < out[j].Targets[key]
		})
	}

	return paginate(out, f.Offset(), f.PageSize), nil
}

func (s *SegmentationRepository) Count(_ context.Context, f domain.SegmentFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.segments {
		if matchSegment(rec, f) {
			n++
		}
	}
	return n, nil
}

func (s *SegmentationRepository) ListByDeliveries(_ context.Context, deliveries []string) ([]domain.SegmentationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(deliveries))
	for _, d := range deliveries {
		wanted[d] = true
	}
	out := make([]domain.SegmentationRecord, 0)
	for _, rec := range s.sortedSegments() {
		if wanted[rec.DeliveryOption] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *SegmentationRepository) DeliveryOptions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]string, 0)
	for key := range s.segments {
		if key.delivery != "" && !seen[key.delivery] {
			seen[key.delivery] = true
			out = append(out, key.delivery)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *SegmentationRepository) SaveHistory(_ context.Context, replenishmentID string, records []domain.SegmentationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.headers[replenishmentID]; !ok {
		return domain.ErrNotFound
	}
	for _, rec := range records {
		s.history[replenishmentID] = append(s.history[replenishmentID], domain.SegmentationHistoryRecord{
			ReplenishmentID: replenishmentID,
			SKU:             rec.SKU,
			DeliveryOption:  rec.DeliveryOption,
			Targets:         cloneTargets(rec.Targets),
		})
	}
	return nil
}

func (s *SegmentationRepository) GetHistory(_ context.Context, replenishmentID string) ([]domain.SegmentationHistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SegmentationHistoryRecord{}, s.history[replenishmentID]...), nil
}
