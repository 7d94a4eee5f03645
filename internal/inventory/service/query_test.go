package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/barstock-backend/internal/inventory/conversion"
	"github.com/barstock/barstock-backend/internal/inventory/repository"
)

func TestQueryService_StockSummary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	lotA, _ := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	receiveBars(t, ctx, svc,
		roundBarSpec("SUS304 Round 16mm", "16", "7.93"), barSpec("3000", 6))

	all, err := svc.query.StockSummary(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	lotRecord, err := svc.lots.GetByID(ctx, lotA.ID)
	require.NoError(t, err)

	filtered, err := svc.query.StockSummary(ctx, lotRecord.MaterialID)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 10, filtered[0].CurrentPieces)
	assert.Equal(t, lotA.LotNumber, filtered[0].LotNumber)
}

func TestQueryService_LowStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, lowItems := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 3))
	receiveBars(t, ctx, svc,
		roundBarSpec("SUS304 Round 16mm", "16", "7.93"), barSpec("3000", 40))

	// Explicit threshold
	rows, err := svc.query.LowStock(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, lowItems[0].ID, rows[0].ItemID)

	// Zero threshold falls back to the configured default of 5
	rows, err = svc.query.LowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].CurrentPieces)
}

func TestQueryService_EquivalentGroups(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	group := "CS-ROUND-20"
	for _, name := range []string{"S45C Round 20mm", "S50C Round 20mm"} {
		require.NoError(t, svc.catalog.CreateMaterial(ctx, &repository.Material{
			DisplayName:      name,
			Shape:            conversion.ShapeRound,
			DiameterMM:       decimal.NewFromInt(20),
			DensityGCM3:      decimal.RequireFromString("7.85"),
			EquivalenceGroup: &group,
			IsActive:         true,
		}))
	}

	receiveBars(t, ctx, svc,
		MaterialSpec{SpecText: "S45C Round 20mm"}, barSpec("2500", 10))
	receiveBars(t, ctx, svc,
		MaterialSpec{SpecText: "S50C Round 20mm"}, barSpec("2500", 4))
	// Ungrouped material must not appear
	receiveBars(t, ctx, svc,
		roundBarSpec("SUS304 Round 16mm", "16", "7.93"), barSpec("3000", 6))

	groups, err := svc.query.EquivalentGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	assert.Equal(t, group, groups[0].Group)
	assert.Equal(t, 14, groups[0].TotalPieces)
	assert.Len(t, groups[0].Rows, 2)
	// 14 bars of 20mm x 2500mm at 7.85: 10 weigh 61.654, 4 weigh 24.662
	assert.Equal(t, "86.316", groups[0].TotalWeightKg.StringFixed(3))
}

func TestQueryService_ItemHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	itemID := items[0].ID

	for _, delta := range []int{-2, -3} {
		d := delta
		_, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
			ItemID:       itemID,
			MovementType: repository.MovementOut,
			PieceDelta:   &d,
		})
		require.NoError(t, err)
	}

	item, movements, err := svc.query.ItemHistory(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 5, item.CurrentPieces)
	require.Len(t, movements, 3)

	// Ledger order: the seed first, then the issues as recorded
	assert.Equal(t, repository.MovementIn, movements[0].MovementType)
	assert.Equal(t, -2, movements[1].PieceDelta)
	assert.Equal(t, -3, movements[2].PieceDelta)
}

func TestQueryService_GetItemByIdentifier(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))

	got, err := svc.query.GetItemByIdentifier(ctx, items[0].Identifier)
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, got.ID)
}
