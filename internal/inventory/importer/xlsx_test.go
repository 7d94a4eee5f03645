package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/barstock/barstock-backend/pkg/errors"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestParseOrderSheet(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Order Ref", "Spec", "Qty", "Length (mm)", "Unit Price"},
		{"PO-1001", "S45C Round 20mm", 10, 2500, 1250.50},
		{"PO-1001", "SUS304 Round 16mm", 6, 3000, nil},
		{nil, nil, nil, nil, nil},
		{"PO-1002", "S45C Hex 17mm x 3000", 4, nil, nil},
	})

	items, err := ParseOrderSheet(buf)
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "PO-1001", first.OrderRef)
	assert.Equal(t, 1, first.LineNo)
	assert.Equal(t, "S45C Round 20mm", first.SpecText)
	assert.Equal(t, 10, first.QuantityPieces)
	require.NotNil(t, first.LengthMM)
	assert.Equal(t, "2500", first.LengthMM.String())
	require.NotNil(t, first.UnitPriceCents)
	assert.Equal(t, int64(125050), *first.UnitPriceCents)

	assert.Equal(t, 2, items[1].LineNo)
	assert.Nil(t, items[1].UnitPriceCents)

	// New order ref restarts line numbering
	assert.Equal(t, "PO-1002", items[2].OrderRef)
	assert.Equal(t, 1, items[2].LineNo)
	assert.Nil(t, items[2].LengthMM)
}

func TestParseOrderSheet_WholeFileFails(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Order Ref", "Spec", "Qty"},
		{"PO-1001", "S45C Round 20mm", 10},
		{"PO-1001", "SUS304 Round 16mm", "not a number"},
	})

	items, err := ParseOrderSheet(buf)
	require.Error(t, err)
	assert.Nil(t, items)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "row 3 quantity")
}

func TestParseOrderSheet_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		row  []interface{}
		key  string
	}{
		{"missing order ref", []interface{}{nil, "S45C Round 20mm", 10}, "row 2"},
		{"missing spec text", []interface{}{"PO-1001", nil, 10}, "row 2 spec"},
		{"zero quantity", []interface{}{"PO-1001", "S45C Round 20mm", 0}, "row 2 quantity"},
		{"negative length", []interface{}{"PO-1001", "S45C Round 20mm", 10, -5}, "row 2 length"},
		{"negative price", []interface{}{"PO-1001", "S45C Round 20mm", 10, 2500, -1}, "row 2 price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := workbook(t, [][]interface{}{
				{"Order Ref", "Spec", "Qty", "Length (mm)", "Unit Price"},
				tt.row,
			})

			_, err := ParseOrderSheet(buf)
			require.Error(t, err)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Details, tt.key)
		})
	}
}

func TestParseOrderSheet_NotAWorkbook(t *testing.T) {
	_, err := ParseOrderSheet(strings.NewReader("definitely,not,xlsx"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestParseOrderSheet_NoDataRows(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Order Ref", "Spec", "Qty"},
	})

	_, err := ParseOrderSheet(buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}
