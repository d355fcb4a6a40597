package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

func TestParseSegmentationCSVSemicolon(t *testing.T) {
	input := "sku;Delivery;S1;S2;EXTRA\nA1;shipping;5;1,5;x\n\nB2;pickup;;3;y\n"

	rows, rowErrs, err := ParseSegmentationCSV(strings.NewReader(input), testStores)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "A1", rows[0].Record.SKU)
	assert.Equal(t, "shipping", rows[0].Record.DeliveryOption)
	assert.Equal(t, map[string]float64{"S1": 5, "S2": 1.5}, rows[0].Record.Targets)

	assert.Equal(t, 3, rows[1].Row)
	assert.Equal(t, map[string]float64{"S1": 0, "S2": 3}, rows[1].Record.Targets)
}

func TestParseSegmentationCSVRowErrors(t *testing.T) {
	input := "\ufeffSKU,DELIVERY,S1,S2\nA1,shipping,abc,1\nB2,shipping,2,2\n"

	rows, rowErrs, err := ParseSegmentationCSV(strings.NewReader(input), testStores)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B2", rows[0].Record.SKU)

	require.Len(t, rowErrs, 1)
	assert.Equal(t, 2, rowErrs[0].Row)
	assert.Equal(t, "A1", rowErrs[0].SKU)
	assert.Contains(t, rowErrs[0].Message, "S1")
}

func TestParseSegmentationCSVMissingColumns(t *testing.T) {
	_, _, err := ParseSegmentationCSV(strings.NewReader("SKU,S1\nA1,1\n"), testStores)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "DELIVERY, S2")

	_, _, err = ParseSegmentationCSV(strings.NewReader(""), testStores)
	assert.True(t, domain.IsValidation(err))
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ',', detectDelimiter("SKU,DELIVERY,S1"))
	assert.Equal(t, ';', detectDelimiter("SKU;DELIVERY;S1"))
	assert.Equal(t, ',', detectDelimiter("SKU"))
}
