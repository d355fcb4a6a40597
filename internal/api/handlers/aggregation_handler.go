package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/service"
)

type AggregationHandler struct {
	service *service.AggregationService
}

func NewAggregationHandler(service *service.AggregationService) *AggregationHandler {
	return &AggregationHandler{service: service}
}

func (h *AggregationHandler) parseFilter(c *gin.Context) (domain.AggregateFilter, bool) {
	filter := domain.AggregateFilter{
		Query:    strings.TrimSpace(c.Query("q")),
		Page:     parsePositiveIntWithDefault(c.Query("page"), 1),
		PageSize: parsePositiveIntWithDefault(c.Query("pageSize"), 10),
		SortKey:  strings.TrimSpace(c.Query("sortKey")),
		SortDir:  strings.TrimSpace(c.Query("sortDir")),
	}

	var err error
	if filter.Start, err = parseDate(c.Query("startDate")); err != nil {
		badRequest(c, "fecha de inicio inválida")
		return filter, false
	}
	if filter.End, err = parseDate(c.Query("endDate")); err != nil {
		badRequest(c, "fecha de término inválida")
		return filter, false
	}
	return filter, true
}

func (h *AggregationHandler) Sales(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	page, err := h.service.Sales(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "no se pudieron obtener las ventas")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AggregationHandler) CentralStock(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	page, err := h.service.CentralStock(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "no se pudo obtener el stock del CD")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AggregationHandler) StoreStock(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	page, err := h.service.StoreStock(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "no se pudo obtener el stock de tiendas")
		return
	}
	c.JSON(http.StatusOK, page)
}

// Invalidate drops the cached aggregates.
func (h *AggregationHandler) Invalidate(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		respondError(c, err, "no se pudo limpiar la caché")
		return
	}
	c.Status(http.StatusNoContent)
}
