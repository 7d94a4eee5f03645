package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/errors"
)

func TestLocationService_AssignItem(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))
	item := items[0]

	rack := &repository.Location{Name: "Rack A-1", IsActive: true}
	require.NoError(t, svc.locations.CreateLocation(ctx, rack))

	require.NoError(t, svc.locations.AssignItem(ctx, item.ID, &rack.ID))

	got, err := svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LocationID)
	assert.Equal(t, rack.ID, *got.LocationID)

	// Clearing the assignment
	require.NoError(t, svc.locations.AssignItem(ctx, item.ID, nil))
	got, err = svc.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LocationID)
}

func TestLocationService_AssignItem_InactiveLocation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, items := receiveBars(t, ctx, svc,
		roundBarSpec("S45C Round 20mm", "20", "7.85"), barSpec("2500", 10))

	rack := &repository.Location{Name: "Rack B-2", IsActive: true}
	require.NoError(t, svc.locations.CreateLocation(ctx, rack))

	rack.IsActive = false
	require.NoError(t, svc.locations.UpdateLocation(ctx, rack))

	err := svc.locations.AssignItem(ctx, items[0].ID, &rack.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestLocationService_CreateLocation_RequiresName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	err := svc.locations.CreateLocation(ctx, &repository.Location{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
