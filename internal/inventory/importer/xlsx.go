// Package importer parses purchase-order spreadsheets into structured
// order lines. The expected layout is one header row followed by one
// row per line: order ref, spec text, quantity, length (mm, optional),
// unit price (optional).
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/errors"
)

const (
	colOrderRef = 0
	colSpecText = 1
	colQuantity = 2
	colLength   = 3
	colPrice    = 4
)

// ParseOrderSheet reads the first sheet of an xlsx workbook into
// purchase order lines. Rows with a missing order ref or spec text are
// rejected; the whole file fails rather than importing a subset.
func ParseOrderSheet(r io.Reader) ([]*repository.PurchaseOrderItem, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.BadRequest("not a readable xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.BadRequest("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, errors.BadRequest("workbook has no data rows")
	}

	lineNos := map[string]int{}
	items := make([]*repository.PurchaseOrderItem, 0, len(rows)-1)

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header

		item, err := parseRow(row, rowNum)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue // blank row
		}

		lineNos[item.OrderRef]++
		item.LineNo = lineNos[item.OrderRef]
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, errors.BadRequest("workbook has no data rows")
	}

	return items, nil
}

func parseRow(row []string, rowNum int) (*repository.PurchaseOrderItem, error) {
	if blankRow(row) {
		return nil, nil
	}

	orderRef := cell(row, colOrderRef)
	specText := cell(row, colSpecText)

	details := map[string]string{}
	if orderRef == "" {
		details[fmt.Sprintf("row %d", rowNum)] = "order ref is required"
	}
	if specText == "" {
		details[fmt.Sprintf("row %d spec", rowNum)] = "spec text is required"
	}

	quantity, err := strconv.Atoi(cell(row, colQuantity))
	if err != nil || quantity <= 0 {
		details[fmt.Sprintf("row %d quantity", rowNum)] = "must be a positive integer"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	item := &repository.PurchaseOrderItem{
		OrderRef:       orderRef,
		SpecText:       specText,
		QuantityPieces: quantity,
	}

	if raw := cell(row, colLength); raw != "" {
		length, err := decimal.NewFromString(raw)
		if err != nil || !length.IsPositive() {
			return nil, errors.Validation(map[string]string{
				fmt.Sprintf("row %d length", rowNum): "must be a positive number of millimeters",
			})
		}
		item.LengthMM = &length
	}

	if raw := cell(row, colPrice); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil || price.IsNegative() {
			return nil, errors.Validation(map[string]string{
				fmt.Sprintf("row %d price", rowNum): "must be a non-negative number",
			})
		}
		cents := price.Mul(decimal.NewFromInt(100)).IntPart()
		item.UnitPriceCents = &cents
	}

	return item, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
