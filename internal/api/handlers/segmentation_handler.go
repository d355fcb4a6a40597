package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/service"
)

type SegmentationHandler struct {
	service *service.SegmentationService
}

func NewSegmentationHandler(service *service.SegmentationService) *SegmentationHandler {
	return &SegmentationHandler{service: service}
}

type uploadSegmentsRequest struct {
	Records []domain.SegmentationRecord `json:"records"`
}

// Upload replaces the segmentation table with JSON rows.
func (h *SegmentationHandler) Upload(c *gin.Context) {
	var req uploadSegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "cuerpo de la solicitud inválido")
		return
	}

	report, err := h.service.Upload(c.Request.Context(), req.Records)
	if err != nil {
		respondError(c, err, "no se pudo cargar la segmentación")
		return
	}
	c.JSON(http.StatusOK, report)
}

// UploadCSV replaces the segmentation table with a CSV sent as the "file"
// form field.
func (h *SegmentationHandler) UploadCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "debe adjuntar el archivo de segmentación")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "no se pudo leer el archivo")
		return
	}
	defer file.Close()

	report, err := h.service.UploadCSV(c.Request.Context(), file)
	if err != nil {
		respondError(c, err, "no se pudo cargar la segmentación")
		return
	}
	c.JSON(http.StatusOK, report)
}

type importDriveRequest struct {
	FileID string `json:"fileId"`
	Path   string `json:"path"`
}

// ImportDrive loads the segmentation from a Drive file id or path.
func (h *SegmentationHandler) ImportDrive(c *gin.Context) {
	var req importDriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "cuerpo de la solicitud inválido")
		return
	}

	ctx := c.Request.Context()
	fileID := strings.TrimSpace(req.FileID)
	if fileID == "" && strings.TrimSpace(req.Path) != "" {
		id, err := h.service.ResolveDrivePath(ctx, req.Path)
		if err != nil {
			respondError(c, err, "no se encontró el archivo en Google Drive")
			return
		}
		fileID = id
	}

	report, err := h.service.ImportFromDrive(ctx, fileID)
	if err != nil {
		respondError(c, err, "no se pudo importar la segmentación")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *SegmentationHandler) Truncate(c *gin.Context) {
	if err := h.service.Truncate(c.Request.Context()); err != nil {
		respondError(c, err, "no se pudo vaciar la segmentación")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SegmentationHandler) List(c *gin.Context) {
	filter := domain.SegmentFilter{
		Query:          strings.TrimSpace(c.Query("q")),
		DeliveryOption: strings.TrimSpace(c.Query("delivery")),
		Page:           parsePositiveIntWithDefault(c.Query("page"), 1),
		PageSize:       parsePositiveIntWithDefault(c.Query("pageSize"), 10),
		SortKey:        strings.TrimSpace(c.Query("sortKey")),
		SortDir:        strings.TrimSpace(c.Query("sortDir")),
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "no se pudo obtener la segmentación")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *SegmentationHandler) DeliveryOptions(c *gin.Context) {
	options, err := h.service.DeliveryOptions(c.Request.Context())
	if err != nil {
		respondError(c, err, "no se pudieron obtener los deliveries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": options})
}

func (h *SegmentationHandler) Stores(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stores": h.service.Stores()})
}
