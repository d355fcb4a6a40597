package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/erp"
	"github.com/patagonia-core/stock-planning/internal/repository"
)

// ERPClient is the part of the ERP API the transfer flow uses.
type ERPClient interface {
	GetToken(ctx context.Context) (string, error)
	CreateHeader(ctx context.Context, token, receivingWarehouseID string) (string, error)
	CreateLine(ctx context.Context, token, transferOrderNumber string, line erp.LineData) (string, error)
}

// LineDefaults are the tenant specific values put on every transfer line.
type LineDefaults struct {
	InventoryStatusID     string
	ShippingLocationID    string
	SalesTaxGroupShipment string
	SalesTaxGroupReceipt  string
	PriceType             string
}

// LinePushResult is the outcome of posting one line.
type LinePushResult struct {
	LineID    int64  `json:"lineId"`
	SKU       string `json:"sku"`
	Qty       int64  `json:"qty"`
	ERPLineID string `json:"erpLineId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StorePushResult is the outcome of one store's transfer order.
type StorePushResult struct {
	Store               string           `json:"store"`
	TransferOrderNumber string           `json:"transferOrderNumber,omitempty"`
	HeaderCreated       bool             `json:"headerCreated"`
	Error               string           `json:"error,omitempty"`
	Lines               []LinePushResult `json:"lines"`
}

// PushReport summarises a push run.
type PushReport struct {
	ReplenishmentID string            `json:"replenishmentId"`
	Stores          []StorePushResult `json:"stores"`
	Submitted       int               `json:"submitted"`
	Failed          int               `json:"failed"`
}

// Complete reports whether every attempted store and line succeeded.
func (r *PushReport) Complete() bool {
	return r.Failed == 0
}

type TransferService struct {
	repo     repository.ReplenishmentRepository
	agg      repository.Aggregator
	erp      ERPClient
	defaults LineDefaults
	now      func() time.Time
}

func NewTransferService(repo repository.ReplenishmentRepository, agg repository.Aggregator, client ERPClient, defaults LineDefaults) *TransferService {
	return &TransferService{repo: repo, agg: agg, erp: client, defaults: defaults, now: time.Now}
}

// PushToERP posts the pending lines of a replenishment to the ERP, one
// transfer order per store. stores narrows the run; empty means every store
// considered by the replenishment. A store keeps the transfer order number it
// got on an earlier run.
func (s *TransferService) PushToERP(ctx context.Context, id string, stores []string) (*PushReport, error) {
	header, err := s.repo.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}

	order, err := pushOrder(header.StoresConsidered, stores)
	if err != nil {
		return nil, err
	}

	pending := make(map[string][]domain.ReplenishmentLine)
	lineNumbers := assignLineNumbers(lines)
	skus := make([]string, 0)
	seen := make(map[string]bool)
	for _, l := range lines {
		if !l.Pending() {
			continue
		}
		pending[l.Store] = append(pending[l.Store], l)
		if !seen[l.SKU] {
			seen[l.SKU] = true
			skus = append(skus, l.SKU)
		}
	}

	report := &PushReport{ReplenishmentID: id, Stores: []StorePushResult{}}
	if len(skus) == 0 {
		log.Info().Str("replenishment_id", id).Msg("transfer: nothing pending")
		return report, nil
	}

	attrs, err := s.agg.FetchProductAttributes(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("load product attributes: %w", err)
	}
	bySKU := make(map[string]domain.ProductAttributes, len(attrs))
	for _, a := range attrs {
		bySKU[a.SKU] = a
	}

	token, err := s.erp.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	transferOrders := make(map[string]string)
	lineIDs := make(map[int64]string)
	for _, store := range order {
		storeLines := pending[store]
		if len(storeLines) == 0 {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		result := s.pushStore(ctx, token, header, store, storeLines, lineNumbers, bySKU)
		if result.TransferOrderNumber != "" {
			transferOrders[store] = result.TransferOrderNumber
		}
		if result.Error != "" {
			report.Failed++
		}
		for _, lr := range result.Lines {
			if lr.ERPLineID != "" {
				lineIDs[lr.LineID] = lr.ERPLineID
				report.Submitted++
			} else {
				report.Failed++
			}
		}
		report.Stores = append(report.Stores, result)
	}

	// Persist what went through even when the run was cut short.
	if len(transferOrders) > 0 || len(lineIDs) > 0 {
		if err := s.repo.UpdateERPInfo(context.WithoutCancel(ctx), id, transferOrders, lineIDs); err != nil {
			return report, fmt.Errorf("failed to store ERP results: %w", err)
		}
	}

	log.Info().
		Str("replenishment_id", id).
		Int("stores", len(report.Stores)).
		Int("submitted", report.Submitted).
		Int("failed", report.Failed).
		Msg("transfer: push completed")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *TransferService) pushStore(
	ctx context.Context,
	token string,
	header *domain.ReplenishmentHeader,
	store string,
	lines []domain.ReplenishmentLine,
	lineNumbers map[int64]int,
	attrs map[string]domain.ProductAttributes,
) StorePushResult {
	result := StorePushResult{Store: store, Lines: []LinePushResult{}}

	number := header.ERPTransferOrders[store]
	if number == "" {
		created, err := s.erp.CreateHeader(ctx, token, store)
		if err != nil {
			log.Error().Err(err).Str("store", store).Msg("transfer: header creation failed")
			result.Error = describeERPError(err)
			return result
		}
		number = created
		result.HeaderCreated = true
	}
	result.TransferOrderNumber = number

	now := s.now()
	for _, l := range lines {
		if ctx.Err() != nil {
			break
		}

		a := attrs[l.SKU]
		item := a.ItemNumber
		if item == "" {
			item = l.SKU
		}
		data := erp.LineData{
			ItemNumber:                    item,
			ProductColorID:                a.ColorID,
			ProductConfigurationID:        a.ConfigurationID,
			ProductSizeID:                 a.SizeID,
			ProductStyleID:                a.StyleID,
			OrderedInventoryStatusID:      s.defaults.InventoryStatusID,
			ShippingWarehouseLocationID:   s.defaults.ShippingLocationID,
			TransferQuantity:              l.ReplenishmentQty,
			RequestedReceiptDate:          now,
			RequestedShippingDate:         now,
			SalesTaxItemGroupCodeShipment: s.defaults.SalesTaxGroupShipment,
			SalesTaxItemGroupCodeReceipt:  s.defaults.SalesTaxGroupReceipt,
			PriceType:                     s.defaults.PriceType,
			LineNumber:                    lineNumbers[l.ID],
		}

		lr := LinePushResult{LineID: l.ID, SKU: l.SKU, Qty: l.ReplenishmentQty}
		erpLineID, err := s.erp.CreateLine(ctx, token, number, data)
		if err != nil {
			log.Warn().Err(err).Str("store", store).Str("sku", l.SKU).Msg("transfer: line creation failed")
			lr.Error = describeERPError(err)
		} else {
			lr.ERPLineID = erpLineID
		}
		result.Lines = append(result.Lines, lr)
	}
	return result
}

// assignLineNumbers numbers the lines of each store that carry a quantity,
// 1-based in stored order. The number of a line never depends on which lines
// are still pending, so a retried line keeps the number it was first sent
// with.
func assignLineNumbers(lines []domain.ReplenishmentLine) map[int64]int {
	next := make(map[string]int)
	out := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.ReplenishmentQty <= 0 {
			continue
		}
		next[l.Store]++
		out[l.ID] = next[l.Store]
	}
	return out
}

func pushOrder(considered, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return considered, nil
	}
	known := make(map[string]bool, len(considered))
	for _, s := range considered {
		known[s] = true
	}
	for _, s := range requested {
		if !known[s] {
			return nil, domain.NewValidationError("stores", "la tienda no forma parte de la reposición: "+s)
		}
	}
	wanted := make(map[string]bool, len(requested))
	for _, s := range requested {
		wanted[s] = true
	}
	out := make([]string, 0, len(requested))
	for _, s := range considered {
		if wanted[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

func describeERPError(err error) string {
	var erpErr *erp.Error
	if errors.As(err, &erpErr) && erpErr.Status != 0 {
		return fmt.Sprintf("ERP respondió %d: %s", erpErr.Status, strings.TrimSpace(erpErr.Body))
	}
	return err.Error()
}

// CreateHeader creates a single transfer order header with a fresh token.
func (s *TransferService) CreateHeader(ctx context.Context, receivingWarehouseID string) (string, error) {
	if receivingWarehouseID == "" {
		return "", domain.NewValidationError("receivingWarehouseId", "la bodega de destino es obligatoria")
	}
	token, err := s.erp.GetToken(ctx)
	if err != nil {
		return "", err
	}
	return s.erp.CreateHeader(ctx, token, receivingWarehouseID)
}

// CreateLine posts a single transfer order line with a fresh token.
func (s *TransferService) CreateLine(ctx context.Context, transferOrderNumber string, line erp.LineData) (string, error) {
	if transferOrderNumber == "" {
		return "", domain.NewValidationError("transferOrderNumber", "el número de orden es obligatorio")
	}
	if line.ItemNumber == "" || line.TransferQuantity <= 0 {
		return "", domain.NewValidationError("line", "el ítem y una cantidad positiva son obligatorios")
	}
	token, err := s.erp.GetToken(ctx)
	if err != nil {
		return "", err
	}
	return s.erp.CreateLine(ctx, token, transferOrderNumber, line)
}
