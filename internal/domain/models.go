// backend-go/internal/domain/models.go
package domain

import "time"

// SegmentationRecord is one row of the segmentation table: the target stock per
// store for a SKU under a delivery option.
type SegmentationRecord struct {
	SKU            string             `json:"sku" db:"sku"`
	DeliveryOption string             `json:"deliveryOption" db:"delivery_option"`
	Targets        map[string]float64 `json:"targets" db:"-"`
}

// SegmentationHistoryRecord is the snapshot of a segmentation row kept with a
// saved replenishment.
type SegmentationHistoryRecord struct {
	ReplenishmentID string             `json:"replenishmentId" db:"replenishment_id"`
	SKU             string             `json:"sku" db:"sku"`
	DeliveryOption  string             `json:"deliveryOption" db:"delivery_option"`
	Targets         map[string]float64 `json:"targets" db:"-"`
}

// SalesRecord is the quantity sold of a SKU in a store over a date window.
type SalesRecord struct {
	SKU   string  `json:"sku" db:"sku"`
	Store string  `json:"store" db:"store"`
	Qty   float64 `json:"qty" db:"qty"`
}

// StockRecord is the current stock of a SKU in a store. ERP and WMS figures
// are kept apart.
type StockRecord struct {
	SKU          string  `json:"sku" db:"sku"`
	Store        string  `json:"store" db:"store"`
	ERPAvailable float64 `json:"erpAvailable" db:"erp_available"`
	WMSAvailable float64 `json:"wmsAvailable" db:"wms_available"`
	OrderedQty   float64 `json:"orderedQty" db:"ordered_qty"`
	MinQty       float64 `json:"minQty" db:"min_qty"`
}

// CentralStock is the stock of a SKU at the central warehouse. MinQty is the
// lower of the ERP and WMS figures and is the supply available to allocate.
type CentralStock struct {
	SKU    string  `json:"sku" db:"sku"`
	ERPQty float64 `json:"erpQty" db:"erp_qty"`
	WMSQty float64 `json:"wmsQty" db:"wms_qty"`
	MinQty float64 `json:"minQty" db:"min_qty"`
}

// ProductAttributes carries the product dimensions used for grouping and for
// ERP line creation.
type ProductAttributes struct {
	SKU             string `json:"sku" db:"sku"`
	Team            string `json:"team" db:"team"`
	Category        string `json:"category" db:"category"`
	CostCenter      string `json:"costCenter" db:"cost_center"`
	ItemNumber      string `json:"itemNumber" db:"item_number"`
	ColorID         string `json:"colorId" db:"color_id"`
	SizeID          string `json:"sizeId" db:"size_id"`
	ConfigurationID string `json:"configurationId" db:"configuration_id"`
	StyleID         string `json:"styleId" db:"style_id"`
	Description     string `json:"description" db:"description"`
}

// ReplenishmentHeader is one saved calculation run.
type ReplenishmentHeader struct {
	ID                      string            `json:"id" db:"id"`
	TotalReplenishmentQty   int64             `json:"totalReplenishmentQty" db:"total_replenishment_qty"`
	TotalBreakQty           int64             `json:"totalBreakQty" db:"total_break_qty"`
	SelectedDeliveryOptions []string          `json:"selectedDeliveryOptions" db:"-"`
	StartDate               time.Time         `json:"startDate" db:"start_date"`
	EndDate                 time.Time         `json:"endDate" db:"end_date"`
	StoresConsidered        []string          `json:"storesConsidered" db:"-"`
	CreatedAt               time.Time         `json:"createdAt" db:"created_at"`
	ERPTransferOrders       map[string]string `json:"erpTransferOrders" db:"-"`
}

// ReplenishmentLine is the suggested transfer of one SKU into one store.
type ReplenishmentLine struct {
	ID                     int64   `json:"id" db:"id"`
	HeaderID               string  `json:"headerId" db:"header_id"`
	SKU                    string  `json:"sku" db:"sku"`
	Store                  string  `json:"store" db:"store"`
	Team                   string  `json:"team" db:"team"`
	Category               string  `json:"category" db:"category"`
	CostCenter             string  `json:"costCenter" db:"cost_center"`
	SegmentTarget          float64 `json:"segmentTarget" db:"segment_target"`
	SalesQty               float64 `json:"salesQty" db:"sales_qty"`
	StockQty               float64 `json:"stockQty" db:"stock_qty"`
	OrderedQty             float64 `json:"orderedQty" db:"ordered_qty"`
	ReplenishmentQty       int64   `json:"replenishmentQty" db:"replenishment_qty"`
	ERPTransferOrderNumber *string `json:"erpTransferOrderNumber" db:"erp_transfer_order_number"`
	ERPLineID              *string `json:"erpLineId" db:"erp_line_id"`
}

// Pending reports whether the line still has to be posted to the ERP.
func (l ReplenishmentLine) Pending() bool {
	return l.ReplenishmentQty > 0 && (l.ERPLineID == nil || *l.ERPLineID == "")
}

// BreakRecord is a SKU-store pair whose stock is below its minimum.
type BreakRecord struct {
	SKU      string  `json:"sku"`
	Store    string  `json:"store"`
	StockQty float64 `json:"stockQty"`
	MinQty   float64 `json:"minQty"`
	BreakQty float64 `json:"breakQty"`
}

// ReplenishmentResult is the output of a calculation run.
type ReplenishmentResult struct {
	Header ReplenishmentHeader `json:"header"`
	Lines  []ReplenishmentLine `json:"lines"`
	Breaks []BreakRecord       `json:"breaks"`
}

// LineGroup is a set of lines re-aggregated by a grouping dimension.
type LineGroup struct {
	Key              string  `json:"key"`
	Lines            int     `json:"lines"`
	SegmentTarget    float64 `json:"segmentTarget"`
	SalesQty         float64 `json:"salesQty"`
	StockQty         float64 `json:"stockQty"`
	OrderedQty       float64 `json:"orderedQty"`
	ReplenishmentQty int64   `json:"replenishmentQty"`
}

// ReplenishmentListItem is a row of the saved replenishments list.
type ReplenishmentListItem struct {
	ID                    string    `json:"id" db:"id"`
	TotalReplenishmentQty int64     `json:"totalReplenishmentQty" db:"total_replenishment_qty"`
	TotalBreakQty         int64     `json:"totalBreakQty" db:"total_break_qty"`
	StartDate             time.Time `json:"startDate" db:"start_date"`
	EndDate               time.Time `json:"endDate" db:"end_date"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
	LineCount             int       `json:"lineCount" db:"line_count"`
	PendingLines          int       `json:"pendingLines" db:"pending_lines"`
}

// OperationRow is one line of the operation export, joined with the product
// dimensions the warehouse team needs to pick it.
type OperationRow struct {
	LineID                 int64   `json:"lineId" db:"line_id"`
	SKU                    string  `json:"sku" db:"sku"`
	Store                  string  `json:"store" db:"store"`
	Team                   string  `json:"team" db:"team"`
	Category               string  `json:"category" db:"category"`
	CostCenter             string  `json:"costCenter" db:"cost_center"`
	ReplenishmentQty       int64   `json:"replenishmentQty" db:"replenishment_qty"`
	ERPTransferOrderNumber *string `json:"erpTransferOrderNumber" db:"erp_transfer_order_number"`
	ERPLineID              *string `json:"erpLineId" db:"erp_line_id"`
	Exported               bool    `json:"exported" db:"exported"`

	// Filled from the warehouse product attributes.
	ItemNumber      string `json:"itemNumber" db:"-"`
	ColorID         string `json:"colorId" db:"-"`
	SizeID          string `json:"sizeId" db:"-"`
	ConfigurationID string `json:"configurationId" db:"-"`
	StyleID         string `json:"styleId" db:"-"`
	Description     string `json:"description" db:"-"`
}

// UploadReport summarises a segmentation upload.
type UploadReport struct {
	Received int        `json:"received"`
	Created  int        `json:"created"`
	Updated  int        `json:"updated"`
	Errors   []RowError `json:"errors"`
}

// RowError points at a rejected input row. Row is 1-based.
type RowError struct {
	Row     int    `json:"row"`
	SKU     string `json:"sku,omitempty"`
	Message string `json:"message"`
}

// ExportResult is the location of an uploaded export file.
type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expiresAt"`
}
