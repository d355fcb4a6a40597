package erp

import "time"

// LineData holds the caller supplied fields of a transfer order line.
type LineData struct {
	ItemNumber                    string    `json:"ItemNumber"`
	ProductColorID                string    `json:"ProductColorId"`
	ProductConfigurationID        string    `json:"ProductConfigurationId"`
	ProductSizeID                 string    `json:"ProductSizeId"`
	ProductStyleID                string    `json:"ProductStyleId"`
	OrderedInventoryStatusID      string    `json:"OrderedInventoryStatusId"`
	ShippingWarehouseLocationID   string    `json:"ShippingWarehouseLocationId"`
	TransferQuantity              int64     `json:"TransferQuantity"`
	RequestedReceiptDate          time.Time `json:"RequestedReceiptDate"`
	RequestedShippingDate         time.Time `json:"RequestedShippingDate"`
	SalesTaxItemGroupCodeShipment string    `json:"SalesTaxItemGroupCodeShipment"`
	SalesTaxItemGroupCodeReceipt  string    `json:"SalesTaxItemGroupCodeReceipt"`
	PriceType                     string    `json:"PriceType"`
	LineNumber                    int       `json:"LineNumber"`
}

// headerBody builds the TransferOrderHeaders payload.
func headerBody(dataAreaID, shippingWarehouseID, receivingWarehouseID string, now time.Time) map[string]any {
	ts := now.UTC().Format(time.RFC3339)
	return map[string]any{
		"dataAreaId":                             dataAreaID,
		"RequestedReceiptDate":                   ts,
		"ShippingWarehouseId":                    shippingWarehouseID,
		"ReceivingWarehouseId":                   receivingWarehouseID,
		"TransferOrderPromisingMethod":           "None",
		"AreLinesAutomaticallyReservedByDefault": "Yes",
		"RequestedShippingDate":                  ts,
		"TransferOrderStockTransferPriceType":    "CostPrice",
	}
}

// lineBody builds the TransferOrderLines payload: caller fields on top of the
// fixed field set the ERP requires.
func lineBody(dataAreaID, transferOrderNumber string, line LineData) map[string]any {
	body := map[string]any{
		"ATPTimeFenceDays":                      0,
		"AllowedUnderdeliveryPercentage":        0,
		"WillProductReceivingCrossDockProducts": "No",
		"OverrideFEFODateControl":               "No",
		"IntrastatCostAmount":                   0,
		"ATPDelayedSupplyOffsetDays":            0,
		"IntrastatStatisticalValue":             0,
		"OverrideSalesTaxShipment":              "No",
		"TransferCatchWeightQuantity":           0,
		"PlanningPriority":                      0,
		"OverrideSalesTaxReceipt":               "No",
		"TransferOrderPromisingMethod":          "None",
		"AllowedOverdeliveryPercentage":         0,
		"ATPBackwardSupplyTimeFenceDays":        0,
		"IsAutomaticallyReserved":               "Yes",
		"IsATPIncludingPlannedOrders":           false,
		"ATPDelayedDemandOffsetDays":            0,
		"InventCostPriceCalculated":             0,
		"MaximumRetailPrice":                    0,
		"NetAmount":                             0,
		"DefaultDimension":                      0,
		"UnitPrice":                             0,
		"CurrencyCode":                          "",
		"AssessableValueTransactionCurrency":    0,
		"InvntCostPrice":                        0,
		"Retention":                             0,
		"VATPriceType":                          "CostPrice",
	}

	body["dataAreaId"] = dataAreaID
	body["TransferOrderNumber"] = transferOrderNumber
	body["LineNumber"] = line.LineNumber
	body["ItemNumber"] = line.ItemNumber
	body["ProductColorId"] = line.ProductColorID
	body["ProductConfigurationId"] = line.ProductConfigurationID
	body["ProductSizeId"] = line.ProductSizeID
	body["ProductStyleId"] = line.ProductStyleID
	body["OrderedInventoryStatusId"] = line.OrderedInventoryStatusID
	body["ShippingWarehouseLocationId"] = line.ShippingWarehouseLocationID
	body["TransferQuantity"] = line.TransferQuantity
	body["RequestedReceiptDate"] = line.RequestedReceiptDate.UTC().Format(time.RFC3339)
	body["RequestedShippingDate"] = line.RequestedShippingDate.UTC().Format(time.RFC3339)
	body["SalesTaxItemGroupCodeShipment"] = line.SalesTaxItemGroupCodeShipment
	body["SalesTaxItemGroupCodeReceipt"] = line.SalesTaxItemGroupCodeReceipt
	body["PriceType"] = line.PriceType

	return body
}

type headerResponse struct {
	TransferOrderNumber string `json:"TransferOrderNumber"`
}

type lineResponse struct {
	ShippingInventoryLotID string `json:"ShippingInventoryLotId"`
}
