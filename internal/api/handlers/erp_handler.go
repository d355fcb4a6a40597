package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/patagonia-core/stock-planning/internal/erp"
	"github.com/patagonia-core/stock-planning/internal/service"
)

// ERPHandler exposes single header and line creation for operators fixing a
// transfer order by hand.
type ERPHandler struct {
	transfer *service.TransferService
}

func NewERPHandler(transfer *service.TransferService) *ERPHandler {
	return &ERPHandler{transfer: transfer}
}

type createHeaderRequest struct {
	ReceivingWarehouseID string `json:"receivingWarehouseId"`
}

func (h *ERPHandler) CreateHeader(c *gin.Context) {
	var req createHeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "cuerpo de la solicitud inválido")
		return
	}

	number, err := h.transfer.CreateHeader(c.Request.Context(), req.ReceivingWarehouseID)
	if err != nil {
		respondError(c, err, "no se pudo crear la orden de transferencia")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transferOrderNumber": number})
}

type createLineRequest struct {
	TransferOrderNumber string       `json:"transferOrderNumber"`
	Line                erp.LineData `json:"line"`
}

func (h *ERPHandler) CreateLine(c *gin.Context) {
	var req createLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "cuerpo de la solicitud inválido")
		return
	}
	now := time.Now()
	if req.Line.RequestedReceiptDate.IsZero() {
		req.Line.RequestedReceiptDate = now
	}
	if req.Line.RequestedShippingDate.IsZero() {
		req.Line.RequestedShippingDate = now
	}

	lineID, err := h.transfer.CreateLine(c.Request.Context(), req.TransferOrderNumber, req.Line)
	if err != nil {
		respondError(c, err, "no se pudo crear la línea de transferencia")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lineId": lineID})
}
