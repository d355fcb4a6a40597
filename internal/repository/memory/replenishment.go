package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

// ReplenishmentRepository serves saved replenishments from a Store.
type ReplenishmentRepository struct {
	*Store
}

func NewReplenishmentRepository(s *Store) *ReplenishmentRepository {
	return &ReplenishmentRepository{Store: s}
}

func cloneHeader(h domain.ReplenishmentHeader) domain.ReplenishmentHeader {
	h.SelectedDeliveryOptions = append([]string(nil), h.SelectedDeliveryOptions...)
	h.StoresConsidered = append([]string(nil), h.StoresConsidered...)
	orders := make(map[string]string, len(h.ERPTransferOrders))
	for k, v := range h.ERPTransferOrders {
		orders[k] = v
	}
	h.ERPTransferOrders = orders
	return h
}

func (s *ReplenishmentRepository) Save(_ context.Context, header *domain.ReplenishmentHeader, lines []domain.ReplenishmentLine) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now()
	}
	if header.ERPTransferOrders == nil {
		header.ERPTransferOrders = map[string]string{}
	}
	if _, ok := s.headers[header.ID]; ok {
		return "", errDuplicateHeader
	}

	s.headers[header.ID] = cloneHeader(*header)
	stored := make([]domain.ReplenishmentLine, 0, len(lines))
	for _, l := range lines {
		l.ID = s.nextLineID
		s.nextLineID++
		l.HeaderID = header.ID
		l.ERPLineID = nil
		l.ERPTransferOrderNumber = nil
		stored = append(stored, l)
	}
	s.lines[header.ID] = stored
	return header.ID, nil
}

func (s *ReplenishmentRepository) GetSummary(_ context.Context, id string) (*domain.ReplenishmentHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.headers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneHeader(h)
	return &out, nil
}

func (s *ReplenishmentRepository) GetLines(_ context.Context, id string) ([]domain.ReplenishmentLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.ReplenishmentLine{}, s.lines[id]...)
	rank := make(map[string]int)
	if h, ok := s.headers[id]; ok {
		for i, store := range h.StoresConsidered {
			rank[store] = i
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SKU != out[j].SKU {
			return out[i].SKU < out[j].SKU
		}
		return rank[out[i].Store] < rank[out[j].Store]
	})
	return out, nil
}

func (s *ReplenishmentRepository) UpdateERPInfo(_ context.Context, id string, transferOrders map[string]string, lineERPIDs map[int64]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.headers[id]
	if !ok {
		return domain.ErrNotFound
	}
	if h.ERPTransferOrders == nil {
		h.ERPTransferOrders = map[string]string{}
	}
	for store, number := range transferOrders {
		h.ERPTransferOrders[store] = number
	}
	s.headers[id] = h

	lines := s.lines[id]
	for i := range lines {
		erpID, ok := lineERPIDs[lines[i].ID]
		if !ok {
			continue
		}
		lines[i].ERPLineID = &erpID
		if number, ok := h.ERPTransferOrders[lines[i].Store]; ok {
			lines[i].ERPTransferOrderNumber = &number
		}
	}
	return nil
}

func (s *ReplenishmentRepository) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.headers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.headers, id)
	delete(s.lines, id)
	delete(s.history, id)
	return nil
}

func (s *ReplenishmentRepository) List(_ context.Context, query string, page, limit int) ([]domain.ReplenishmentListItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	items := make([]domain.ReplenishmentListItem, 0)
	for id, h := range s.headers {
		if q != "" && !strings.Contains(strings.ToLower(id), q) &&
			!strings.Contains(strings.ToLower(strings.Join(h.SelectedDeliveryOptions, ",")), q) {
			continue
		}
		item := domain.ReplenishmentListItem{
			ID:                    id,
			TotalReplenishmentQty: h.TotalReplenishmentQty,
			TotalBreakQty:         h.TotalBreakQty,
			StartDate:             h.StartDate,
			EndDate:               h.EndDate,
			CreatedAt:             h.CreatedAt,
			LineCount:             len(s.lines[id]),
		}
		for _, l := range s.lines[id] {
			if l.Pending() {
				item.PendingLines++
			}
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	return paginate(items, (page-1)*limit, limit), len(items), nil
}

func (s *ReplenishmentRepository) GetOperationRows(_ context.Context, id string) ([]domain.OperationRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.headers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	rows := make([]domain.OperationRow, 0)
	for _, l := range s.lines[id] {
		if l.ReplenishmentQty <= 0 {
			continue
		}
		row := domain.OperationRow{
			LineID:                 l.ID,
			SKU:                    l.SKU,
			Store:                  l.Store,
			Team:                   l.Team,
			Category:               l.Category,
			CostCenter:             l.CostCenter,
			ReplenishmentQty:       l.ReplenishmentQty,
			ERPTransferOrderNumber: l.ERPTransferOrderNumber,
			ERPLineID:              l.ERPLineID,
			Exported:               l.ERPLineID != nil,
		}
		if row.ERPTransferOrderNumber == nil {
			if number, ok := h.ERPTransferOrders[l.Store]; ok {
				row.ERPTransferOrderNumber = &number
			}
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Store != rows[j].Store {
			return rows[i].Store < rows[j].Store
		}
		return rows[i].SKU < rows[j].SKU
	})
	return rows, nil
}
