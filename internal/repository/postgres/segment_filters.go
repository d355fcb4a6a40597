package postgres

import (
	"fmt"
	"strings"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

// buildSegmentFilterClause constructs SQL filter clauses for segmentation queries
func buildSegmentFilterClause(filter domain.SegmentFilter, alias string, startIndex int) (string, []interface{}, int) {
	var (
		clauses []string
		args    []interface{}
	)
	idx := startIndex

	if q := strings.TrimSpace(filter.Query); q != "" {
		clauses = append(clauses, fmt.Sprintf("(UPPER(%ssku) LIKE $%d OR UPPER(%sdelivery_option) LIKE $%d)", alias, idx, alias, idx))
		args = append(args, "%"+strings.ToUpper(q)+"%")
		idx++
	}

	if filter.DeliveryOption != "" {
		clauses = append(clauses, fmt.Sprintf("%sdelivery_option = $%d", alias, idx))
		args = append(args, filter.DeliveryOption)
		idx++
	}

	if len(clauses) == 0 {
		return "", nil, idx
	}

	return " AND " + strings.Join(clauses, " AND "), args, idx
}

// buildSegmentOrderClause validates the sort key. SKU and DELIVERY sort by
// column; a store code sorts by that store's target.
func buildSegmentOrderClause(filter domain.SegmentFilter, stores []string, alias string, idx int) (string, []interface{}) {
	dir := "ASC"
	if strings.EqualFold(filter.SortDir, "desc") {
		dir = "DESC"
	}

	key := strings.ToUpper(strings.TrimSpace(filter.SortKey))
	switch key {
	case "SKU":
		return fmt.Sprintf(" ORDER BY %ssku %s, %sdelivery_option", alias, dir, alias), nil
	case "DELIVERY":
		return fmt.Sprintf(" ORDER BY %sdelivery_option %s, %ssku", alias, dir, alias), nil
	}

	for _, store := range stores {
		if strings.EqualFold(store, key) {
			return fmt.Sprintf(" ORDER BY COALESCE((%stargets->>$%d)::numeric, 0) %s, %ssku", alias, idx, dir, alias),
				[]interface{}{store}
		}
	}

	return fmt.Sprintf(" ORDER BY %ssku, %sdelivery_option", alias, alias), nil
}
