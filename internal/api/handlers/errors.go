package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/erp"
)

// respondError maps service errors to a status and a user facing body.
func respondError(c *gin.Context, err error, fallback string) {
	var (
		verr   *domain.ValidationError
		erpErr *erp.Error
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "details": gin.H{"field": verr.Field}})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "reposición no encontrada"})
	case errors.As(err, &erpErr) && erpErr.Kind == erp.Permanent:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("erp rejected request")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "el ERP rechazó la solicitud",
			"details": gin.H{"status": erpErr.Status, "body": strings.TrimSpace(erpErr.Body)},
		})
	case errors.As(err, &erpErr) && erpErr.Kind == erp.Transient:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("erp unreachable")
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":   "el ERP no respondió",
			"details": gin.H{"attempts": erpErr.Attempts},
		})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input
// returns the zero time.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// splitQuery reads a list parameter given either repeated or comma
// separated.
func splitQuery(c *gin.Context, name string) []string {
	var out []string
	for _, v := range c.QueryArray(name) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
