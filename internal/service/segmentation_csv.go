package service

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

const (
	columnSKU      = "SKU"
	columnDelivery = "DELIVERY"
)

// SegmentRow is a parsed segmentation record with the input row it came
// from.
type SegmentRow struct {
	Row    int
	Record domain.SegmentationRecord
}

// detectDelimiter picks ';' when the header line has more semicolons than
// commas.
func detectDelimiter(headerLine string) rune {
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

// ParseSegmentationCSV reads a segmentation file. The header must name SKU,
// DELIVERY and every configured store; extra columns are ignored. Empty
// target cells count as zero. Rows with unreadable numbers are returned as
// row errors and skipped.
func ParseSegmentationCSV(r io.Reader, stores []string) ([]SegmentRow, []domain.RowError, error) {
	br := bufio.NewReader(r)
	headerLine, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	headerLine = strings.TrimPrefix(headerLine, "\ufeff")
	if strings.TrimSpace(headerLine) == "" {
		return nil, nil, domain.NewValidationError("file", "el archivo está vacío")
	}

	reader := csv.NewReader(io.MultiReader(bytes.NewBufferString(headerLine), br))
	reader.Comma = detectDelimiter(headerLine)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[strings.ToUpper(strings.TrimSpace(col))] = i
	}

	var missing []string
	for _, col := range append([]string{columnSKU, columnDelivery}, stores...) {
		if _, ok := colMap[strings.ToUpper(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, domain.NewValidationError("file",
			"el archivo de carga no contiene las columnas necesarias: "+strings.Join(missing, ", "))
	}

	var (
		records []SegmentRow
		rowErrs []domain.RowError
	)
	row := 1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			rowErrs = append(rowErrs, domain.RowError{Row: row, Message: err.Error()})
			continue
		}
		if isBlank(fields) {
			continue
		}

		cell := func(col string) string {
			idx := colMap[strings.ToUpper(col)]
			if idx >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[idx])
		}

		rec := domain.SegmentationRecord{
			SKU:            cell(columnSKU),
			DeliveryOption: cell(columnDelivery),
			Targets:        make(map[string]float64, len(stores)),
		}

		var cellErr error
		for _, store := range stores {
			raw := cell(store)
			if raw == "" {
				rec.Targets[store] = 0
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
			if err != nil {
				cellErr = fmt.Errorf("valor no numérico en %s: %q", store, raw)
				break
			}
			rec.Targets[store] = v
		}
		if cellErr != nil {
			rowErrs = append(rowErrs, domain.RowError{Row: row, SKU: rec.SKU, Message: cellErr.Error()})
			continue
		}

		records = append(records, SegmentRow{Row: row, Record: rec})
	}

	return records, rowErrs, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
