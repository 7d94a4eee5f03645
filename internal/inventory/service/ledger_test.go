package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/messaging"
)

func TestLedgerService_RecordMovement_PiecePrimary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 10mm", "10", "7.85"), barSpec("3000", 50))
	item := items[0]

	delta := -3
	mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:       item.ID,
		MovementType: repository.MovementOut,
		PieceDelta:   &delta,
	})
	require.NoError(t, err)

	assert.Equal(t, repository.PrimaryUnitPieces, mv.PrimaryUnit)
	assert.Equal(t, -3, mv.PieceDelta)
	assert.Equal(t, "-5.549", mv.WeightDeltaKg.StringFixed(3))

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 47, got.CurrentPieces)
	assert.Equal(t, "86.932", got.CurrentWeightKg.StringFixed(3))

	svc.published.AssertEventPublished(t, messaging.EventMovementRecorded)
}

func TestLedgerService_RecordMovement_WeightPrimary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 10mm", "10", "7.85"), barSpec("3000", 50))
	item := items[0]

	// Issuing 10 kg of bars weighing ~1.85 kg each removes 5 whole
	// pieces; the partial bar does not count.
	weight := decimal.RequireFromString("-10")
	mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:        item.ID,
		MovementType:  repository.MovementOut,
		WeightDeltaKg: &weight,
	})
	require.NoError(t, err)

	assert.Equal(t, repository.PrimaryUnitWeight, mv.PrimaryUnit)
	assert.Equal(t, -5, mv.PieceDelta)
	assert.Equal(t, "-10.000", mv.WeightDeltaKg.StringFixed(3))

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, got.CurrentPieces)
	assert.Equal(t, "82.481", got.CurrentWeightKg.StringFixed(3))
}

func TestLedgerService_RecordMovement_SignRules(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	itemID := items[0].ID

	tests := []struct {
		name         string
		movementType string
		pieceDelta   int
	}{
		{"negative in", repository.MovementIn, -2},
		{"positive out", repository.MovementOut, 2},
		{"negative return", repository.MovementReturn, -1},
		{"zero adjustment", repository.MovementAdjustment, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := tt.pieceDelta
			_, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
				ItemID:       itemID,
				MovementType: tt.movementType,
				PieceDelta:   &delta,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
}

func TestLedgerService_RecordMovement_ExactlyOneDelta(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))

	_, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:       items[0].ID,
		MovementType: repository.MovementOut,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	delta := -2
	weight := decimal.RequireFromString("-12.331")
	_, err = svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:        items[0].ID,
		MovementType:  repository.MovementOut,
		PieceDelta:    &delta,
		WeightDeltaKg: &weight,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLedgerService_RecordMovement_InsufficientStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	item := items[0]

	delta := -11
	_, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:       item.ID,
		MovementType: repository.MovementOut,
		PieceDelta:   &delta,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	// The rejected movement left no trace
	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.CurrentPieces)

	ledger, err := svc.movements.ListByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestLedgerService_RecordMovement_InsufficientStock_WeightPrimary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))

	weight := decimal.RequireFromString("-100")
	_, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:        items[0].ID,
		MovementType:  repository.MovementOut,
		WeightDeltaKg: &weight,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	// The rejection is reported in the unit the caller moved in
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "kg")
}

func TestLedgerService_RecordMovement_DrainsStoredTotal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 3))
	item := items[0]
	require.Equal(t, "18.496", item.CurrentWeightKg.StringFixed(3))

	// Issuing exactly the stored total must take all 3 bars even though
	// 18.496 kg is the rounded-down form of 3 unit weights
	weight := decimal.RequireFromString("-18.496")
	mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:        item.ID,
		MovementType:  repository.MovementOut,
		WeightDeltaKg: &weight,
	})
	require.NoError(t, err)
	assert.Equal(t, -3, mv.PieceDelta)

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentPieces)
	assert.True(t, got.CurrentWeightKg.IsZero(), "weight was %s", got.CurrentWeightKg)
}

func TestLedgerService_EditMovement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	item := items[0]

	delta := -4
	mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:       item.ID,
		MovementType: repository.MovementOut,
		PieceDelta:   &delta,
	})
	require.NoError(t, err)

	newDelta := -2
	edited, err := svc.ledger.EditMovement(ctx, EditMovementInput{
		MovementID: mv.ID,
		PieceDelta: &newDelta,
	})
	require.NoError(t, err)
	assert.Equal(t, -2, edited.PieceDelta)

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.CurrentPieces)
	assert.Equal(t, "49.323", got.CurrentWeightKg.StringFixed(3))

	svc.published.AssertEventPublished(t, messaging.EventMovementEdited)
}

func TestLedgerService_EditMovement_UsesStoredDensity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	lot, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	item := items[0]

	delta := -4
	mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:       item.ID,
		MovementType: repository.MovementOut,
		PieceDelta:   &delta,
	})
	require.NoError(t, err)

	// A later density correction must not change how this historical
	// movement converts.
	lotRecord, err := svc.lots.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	err = svc.catalog.UpdateDensity(ctx, lotRecord.MaterialID,
		decimal.RequireFromString("7.90"), mv.RecordedAt)
	require.NoError(t, err)

	newDelta := -2
	edited, err := svc.ledger.EditMovement(ctx, EditMovementInput{
		MovementID: mv.ID,
		PieceDelta: &newDelta,
	})
	require.NoError(t, err)
	assert.Equal(t, "7.85", edited.DensityGCM3.String())
	assert.Equal(t, "-12.331", edited.WeightDeltaKg.StringFixed(3))
}

func TestLedgerService_EditMovement_NoteOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))

	delta := -4
	mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:       items[0].ID,
		MovementType: repository.MovementOut,
		PieceDelta:   &delta,
	})
	require.NoError(t, err)

	note := "issued for work order 4411"
	edited, err := svc.ledger.EditMovement(ctx, EditMovementInput{
		MovementID: mv.ID,
		Note:       &note,
	})
	require.NoError(t, err)
	require.NotNil(t, edited.Note)
	assert.Equal(t, note, *edited.Note)
	assert.Equal(t, -4, edited.PieceDelta)
}

func TestLedgerService_DeleteMovement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	item := items[0]

	delta := -4
	mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:       item.ID,
		MovementType: repository.MovementOut,
		PieceDelta:   &delta,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ledger.DeleteMovement(ctx, mv.ID))

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.CurrentPieces)
	assert.Equal(t, "61.654", got.CurrentWeightKg.StringFixed(3))

	_, err = svc.ledger.GetMovement(ctx, mv.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	svc.published.AssertEventPublished(t, messaging.EventMovementDeleted)
}

func TestLedgerService_DeleteMovement_ConsumedReceipt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	item := items[0]

	delta := -8
	_, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:       item.ID,
		MovementType: repository.MovementOut,
		PieceDelta:   &delta,
	})
	require.NoError(t, err)

	ledger, err := svc.movements.ListByItem(ctx, item.ID)
	require.NoError(t, err)
	seed := ledger[0]

	// Deleting the receipt that the issue already consumed is refused
	err = svc.ledger.DeleteMovement(ctx, seed.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentPieces)
}

func TestLedgerService_ConcurrentIssues(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 50))
	item := items[0]

	// Two pickers both try to take 30 of 50 bars. The item row lock
	// serializes them; exactly one succeeds.
	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := -30
			_, errs[i] = svc.ledger.RecordMovement(ctx, RecordMovementInput{
				ItemID:       item.ID,
				MovementType: repository.MovementOut,
				PieceDelta:   &delta,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.CurrentPieces)
}

// TestLedgerService_TotalsMatchLedger runs a random mix of operations
// and checks that an item's stored totals always equal the sum of its
// ledger rows.
func TestLedgerService_TotalsMatchLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 100))
	item := items[0]

	rng := rand.New(rand.NewSource(7))
	var recorded []string

	for i := 0; i < 100; i++ {
		switch rng.Intn(5) {
		case 0:
			delta := 1 + rng.Intn(10)
			mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
				ItemID:       item.ID,
				MovementType: repository.MovementIn,
				PieceDelta:   &delta,
			})
			require.NoError(t, err)
			recorded = append(recorded, mv.ID)
		case 1, 2:
			delta := -(1 + rng.Intn(15))
			mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
				ItemID:       item.ID,
				MovementType: repository.MovementOut,
				PieceDelta:   &delta,
			})
			if err != nil {
				assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
				continue
			}
			recorded = append(recorded, mv.ID)
		case 3:
			if len(recorded) == 0 {
				continue
			}
			err := svc.ledger.DeleteMovement(ctx, recorded[len(recorded)-1])
			if err == nil {
				recorded = recorded[:len(recorded)-1]
			}
		case 4:
			delta := rng.Intn(7) - 3
			if delta == 0 {
				continue
			}
			mv, err := svc.ledger.RecordMovement(ctx, RecordMovementInput{
				ItemID:       item.ID,
				MovementType: repository.MovementAdjustment,
				PieceDelta:   &delta,
			})
			if err != nil {
				assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
				continue
			}
			recorded = append(recorded, mv.ID)
		}
	}

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, got.CurrentPieces, 0)
	require.False(t, got.CurrentWeightKg.IsNegative())

	ledger, err := svc.movements.ListByItem(ctx, item.ID)
	require.NoError(t, err)

	sumPieces := 0
	sumWeight := decimal.Zero
	for _, mv := range ledger {
		sumPieces += mv.PieceDelta
		sumWeight = sumWeight.Add(mv.WeightDeltaKg)
	}

	assert.Equal(t, sumPieces, got.CurrentPieces)
	assert.True(t, sumWeight.Equal(got.CurrentWeightKg),
		"ledger sum %s != item totals %s", sumWeight, got.CurrentWeightKg)
}
