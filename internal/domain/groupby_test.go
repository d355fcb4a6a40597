package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupBy(t *testing.T) {
	g, ok := ParseGroupBy("cc")
	require.True(t, ok)
	assert.Equal(t, GroupByCC, g)

	g, ok = ParseGroupBy(" Team ")
	require.True(t, ok)
	assert.Equal(t, GroupByTeam, g)

	g, ok = ParseGroupBy("")
	require.True(t, ok)
	assert.Equal(t, GroupByNone, g)

	_, ok = ParseGroupBy("store")
	assert.False(t, ok)
}

func TestGroupLines(t *testing.T) {
	lines := []ReplenishmentLine{
		{SKU: "A", Store: "S1", Team: "Surf", ReplenishmentQty: 3, SalesQty: 1},
		{SKU: "B", Store: "S1", Team: "Climb", ReplenishmentQty: 2},
		{SKU: "A", Store: "S2", Team: "Surf", ReplenishmentQty: 4, SalesQty: 2},
	}

	bySKU := GroupLines(lines, GroupBySKU)
	require.Len(t, bySKU, 2)
	assert.Equal(t, "A", bySKU[0].Key)
	assert.Equal(t, 2, bySKU[0].Lines)
	assert.Equal(t, int64(7), bySKU[0].ReplenishmentQty)
	assert.Equal(t, 3.0, bySKU[0].SalesQty)

	byTeam := GroupLines(lines, GroupByTeam)
	require.Len(t, byTeam, 2)
	assert.Equal(t, "Climb", byTeam[1].Key)

	assert.Empty(t, GroupLines(nil, GroupByCategory))
}
