package domain

import "strings"

// GroupBy is a read-time grouping dimension for replenishment lines.
type GroupBy string

const (
	GroupByNone     GroupBy = ""
	GroupBySKU      GroupBy = "SKU"
	GroupByCC       GroupBy = "CC"
	GroupByTeam     GroupBy = "TEAM"
	GroupByCategory GroupBy = "CATEGORY"
)

var groupByCodes = map[string]GroupBy{
	"":         GroupByNone,
	"sku":      GroupBySKU,
	"cc":       GroupByCC,
	"team":     GroupByTeam,
	"category": GroupByCategory,
}

// ParseGroupBy returns the grouping for a label (case-insensitive).
func ParseGroupBy(label string) (GroupBy, bool) {
	g, ok := groupByCodes[strings.ToLower(strings.TrimSpace(label))]

	return g, ok
}

// KeyOf returns the value of the grouping dimension for a line.
func (g GroupBy) KeyOf(line ReplenishmentLine) string {
	switch g {
	case GroupBySKU:
		return line.SKU
	case GroupByCC:
		return line.CostCenter
	case GroupByTeam:
		return line.Team
	case GroupByCategory:
		return line.Category
	default:
		return ""
	}
}

// GroupLines re-aggregates lines by the grouping dimension. Groups keep the
// order in which their key first appears.
func GroupLines(lines []ReplenishmentLine, g GroupBy) []LineGroup {
	groups := make([]LineGroup, 0)
	index := make(map[string]int)
	for _, line := range lines {
		key := g.KeyOf(line)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, LineGroup{Key: key})
		}
		grp := &groups[i]
		grp.Lines++
		grp.SegmentTarget += line.SegmentTarget
		grp.SalesQty += line.SalesQty
		grp.StockQty += line.StockQty
		grp.OrderedQty += line.OrderedQty
		grp.ReplenishmentQty += line.ReplenishmentQty
	}
	return groups
}
