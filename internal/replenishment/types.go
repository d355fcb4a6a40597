package replenishment

import (
	"time"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

// Overrides maps sku -> store -> value. A present value replaces the computed
// one outright.
type Overrides map[string]map[string]float64

func (o Overrides) lookup(sku, store string) (float64, bool) {
	if o == nil {
		return 0, false
	}
	byStore, ok := o[sku]
	if !ok {
		return 0, false
	}
	v, ok := byStore[store]
	return v, ok
}

// Input holds the request parameters of a calculation run together with the
// data fetched for it.
type Input struct {
	StartDate       time.Time
	EndDate         time.Time
	DeliveryOptions []string
	StorePriority   []string
	EditedSegments  Overrides
	EditedSales     Overrides

	Segments     []domain.SegmentationRecord
	Sales        []domain.SalesRecord
	StoreStock   []domain.StockRecord
	CentralStock []domain.CentralStock
	Attributes   []domain.ProductAttributes
}

// Validate checks the request parameters.
func (in Input) Validate() error {
	if in.StartDate.IsZero() {
		return domain.NewValidationError("startDate", "la fecha de inicio es obligatoria")
	}
	if in.EndDate.IsZero() {
		return domain.NewValidationError("endDate", "la fecha de término es obligatoria")
	}
	if in.EndDate.Before(in.StartDate) {
		return domain.NewValidationError("endDate", "la fecha de término debe ser posterior a la de inicio")
	}
	if len(in.DeliveryOptions) == 0 {
		return domain.NewValidationError("selectedDeliveryOptions", "debe seleccionar al menos un delivery")
	}
	if len(in.StorePriority) == 0 {
		return domain.NewValidationError("storePriority", "debe seleccionar al menos una tienda")
	}
	seen := make(map[string]bool, len(in.StorePriority))
	for _, store := range in.StorePriority {
		if store == "" {
			return domain.NewValidationError("storePriority", "la lista de tiendas contiene un valor vacío")
		}
		if seen[store] {
			return domain.NewValidationError("storePriority", "tienda repetida: "+store)
		}
		seen[store] = true
	}
	return nil
}
