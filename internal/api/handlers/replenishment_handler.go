package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/patagonia-core/stock-planning/internal/replenishment"
	"github.com/patagonia-core/stock-planning/internal/service"
)

type ReplenishmentHandler struct {
	replenishment *service.ReplenishmentService
	segmentation  *service.SegmentationService
	transfer      *service.TransferService
}

func NewReplenishmentHandler(
	replenishmentService *service.ReplenishmentService,
	segmentationService *service.SegmentationService,
	transferService *service.TransferService,
) *ReplenishmentHandler {
	return &ReplenishmentHandler{
		replenishment: replenishmentService,
		segmentation:  segmentationService,
		transfer:      transferService,
	}
}

// calculateRequest takes dates as "2006-01-02" or RFC 3339.
type calculateRequest struct {
	StartDate       string                  `json:"startDate"`
	EndDate         string                  `json:"endDate"`
	DeliveryOptions []string                `json:"selectedDeliveryOptions"`
	StorePriority   []string                `json:"storePriority"`
	EditedSegments  replenishment.Overrides `json:"editedSegments"`
	EditedSales     replenishment.Overrides `json:"editedSales"`
}

func (h *ReplenishmentHandler) bindCalculate(c *gin.Context) (service.CalculateRequest, bool) {
	var body calculateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "cuerpo de la solicitud inválido")
		return service.CalculateRequest{}, false
	}

	var (
		start, end time.Time
		err        error
	)
	if start, err = parseDate(body.StartDate); err != nil {
		badRequest(c, "fecha de inicio inválida")
		return service.CalculateRequest{}, false
	}
	if end, err = parseDate(body.EndDate); err != nil {
		badRequest(c, "fecha de término inválida")
		return service.CalculateRequest{}, false
	}

	return service.CalculateRequest{
		StartDate:       start,
		EndDate:         end,
		DeliveryOptions: body.DeliveryOptions,
		StorePriority:   body.StorePriority,
		EditedSegments:  body.EditedSegments,
		EditedSales:     body.EditedSales,
	}, true
}

// Calculate runs a calculation without saving it.
func (h *ReplenishmentHandler) Calculate(c *gin.Context) {
	req, ok := h.bindCalculate(c)
	if !ok {
		return
	}
	result, err := h.replenishment.Calculate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "no se pudo calcular la reposición")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Save runs a calculation and stores it with its segmentation snapshot.
func (h *ReplenishmentHandler) Save(c *gin.Context) {
	req, ok := h.bindCalculate(c)
	if !ok {
		return
	}
	result, err := h.replenishment.CalculateAndSave(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "no se pudo guardar la reposición")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *ReplenishmentHandler) List(c *gin.Context) {
	page, err := h.replenishment.List(
		c.Request.Context(),
		strings.TrimSpace(c.Query("q")),
		parsePositiveIntWithDefault(c.Query("page"), 1),
		parsePositiveIntWithDefault(c.Query("limit"), 10),
	)
	if err != nil {
		respondError(c, err, "no se pudieron obtener las reposiciones")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ReplenishmentHandler) Summary(c *gin.Context) {
	header, err := h.replenishment.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "no se pudo obtener la reposición")
		return
	}
	c.JSON(http.StatusOK, header)
}

func (h *ReplenishmentHandler) Lines(c *gin.Context) {
	view, err := h.replenishment.Lines(c.Request.Context(), c.Param("id"), c.Query("groupBy"))
	if err != nil {
		respondError(c, err, "no se pudieron obtener las líneas")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReplenishmentHandler) Operation(c *gin.Context) {
	rows, err := h.replenishment.OperationRows(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "no se pudo obtener la operación")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// Segmentation returns the segmentation snapshot saved with a replenishment.
func (h *ReplenishmentHandler) Segmentation(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.replenishment.Summary(ctx, id); err != nil {
		respondError(c, err, "no se pudo obtener la reposición")
		return
	}
	history, err := h.segmentation.History(ctx, id)
	if err != nil {
		respondError(c, err, "no se pudo obtener la segmentación guardada")
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": history})
}

func (h *ReplenishmentHandler) Export(c *gin.Context) {
	result, err := h.replenishment.ExportOperationCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "no se pudo exportar la operación")
		return
	}
	c.JSON(http.StatusOK, result)
}

type pushRequest struct {
	Stores []string `json:"stores"`
}

// PushToERP posts the pending lines to the ERP. A run with failed stores or
// lines answers 207 with the per item report.
func (h *ReplenishmentHandler) PushToERP(c *gin.Context) {
	var req pushRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "cuerpo de la solicitud inválido")
			return
		}
	}

	report, err := h.transfer.PushToERP(c.Request.Context(), c.Param("id"), req.Stores)
	if err != nil {
		if report != nil {
			c.JSON(http.StatusMultiStatus, gin.H{"report": report, "error": "el envío al ERP se interrumpió"})
			return
		}
		respondError(c, err, "no se pudo enviar la reposición al ERP")
		return
	}

	if !report.Complete() {
		c.JSON(http.StatusMultiStatus, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReplenishmentHandler) Delete(c *gin.Context) {
	if err := h.replenishment.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "no se pudo eliminar la reposición")
		return
	}
	c.Status(http.StatusNoContent)
}
