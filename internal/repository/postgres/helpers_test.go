package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "($1,$2,$3)", placeholders(1, 3))
	assert.Equal(t, "($1,$2),($3,$4),($5,$6)", placeholders(3, 2))
	assert.Equal(t, "", placeholders(0, 4))
}

func TestBuildSegmentFilterClause(t *testing.T) {
	where, args, next := buildSegmentFilterClause(domain.SegmentFilter{Query: " ab ", DeliveryOption: "shipping"}, "s.", 1)

	assert.Equal(t, " AND (UPPER(s.sku) LIKE $1 OR UPPER(s.delivery_option) LIKE $1) AND s.delivery_option = $2", where)
	assert.Equal(t, []interface{}{"%AB%", "shipping"}, args)
	assert.Equal(t, 3, next)

	where, args, next = buildSegmentFilterClause(domain.SegmentFilter{}, "", 4)
	assert.Empty(t, where)
	assert.Nil(t, args)
	assert.Equal(t, 4, next)
}

func TestBuildSegmentOrderClause(t *testing.T) {
	stores := []string{"PUCON", "TEMUCO"}

	order, args := buildSegmentOrderClause(domain.SegmentFilter{SortKey: "temuco", SortDir: "desc"}, stores, "", 2)
	assert.Equal(t, " ORDER BY COALESCE((targets->>$2)::numeric, 0) DESC, sku", order)
	assert.Equal(t, []interface{}{"TEMUCO"}, args)

	order, args = buildSegmentOrderClause(domain.SegmentFilter{SortKey: "delivery"}, stores, "", 1)
	assert.Equal(t, " ORDER BY delivery_option ASC, sku", order)
	assert.Nil(t, args)

	order, _ = buildSegmentOrderClause(domain.SegmentFilter{SortKey: "1; DROP TABLE stock_segmentation"}, stores, "", 1)
	assert.Equal(t, " ORDER BY sku, delivery_option", order)
}
