package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/errors"
)

func TestOrderService_CreateOrderItem_Validation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	err := svc.orders.CreateOrderItem(ctx, &repository.PurchaseOrderItem{
		OrderRef: "PO-2026-001",
		SpecText: "S45C Round 20mm",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestOrderService_CancelOrderItem(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	po := &repository.PurchaseOrderItem{
		OrderRef:       "PO-2026-002",
		SpecText:       "S45C Round 20mm",
		QuantityPieces: 10,
	}
	require.NoError(t, svc.orders.CreateOrderItem(ctx, po))

	require.NoError(t, svc.orders.CancelOrderItem(ctx, po.ID))

	got, err := svc.orders.GetOrderItem(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.POStatusCancelled, got.Status)

	// Cancelling twice fails: the line is no longer open
	err = svc.orders.CancelOrderItem(ctx, po.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestOrderService_ImportSpreadsheet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Order Ref", "Spec", "Qty", "Length (mm)", "Unit Price"},
		{"PO-2026-003", "S45C Round 20mm", 10, 2500, 1250.50},
		{"PO-2026-003", "SUS304 Round 16mm", 6, 3000, nil},
		{"PO-2026-004", "S45C Hex 17mm", 4, nil, nil},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	items, err := svc.orders.ImportSpreadsheet(ctx, &buf)
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Line numbers restart per order ref
	assert.Equal(t, 1, items[0].LineNo)
	assert.Equal(t, 2, items[1].LineNo)
	assert.Equal(t, 1, items[2].LineNo)

	stored, err := svc.orders.ListOrderItems(ctx, repository.POStatusOpen)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	require.NotNil(t, items[0].UnitPriceCents)
	assert.Equal(t, int64(125050), *items[0].UnitPriceCents)
}
