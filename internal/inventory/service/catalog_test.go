package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/barstock-backend/internal/inventory/conversion"
	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/errors"
)

func TestNormalizeSpecText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"S45C Round 20mm", "S45C ROUND 20MM"},
		{"  s45c   round\t20mm ", "S45C ROUND 20MM"},
		{"SUS304", "SUS304"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSpecText(tt.in))
	}
}

func TestCatalogService_ResolveOrCreate_CreatesAndReuses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	spec := roundBarSpec("s45c  round 20mm", "20", "7.85")

	created, err := svc.catalog.ResolveOrCreate(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, "S45C ROUND 20MM", created.DisplayName)

	// The original spelling resolves through the alias it registered
	again, err := svc.catalog.ResolveOrCreate(ctx, MaterialSpec{SpecText: "s45c  round 20mm"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	// A differently mangled spelling resolves through normalization
	mangled, err := svc.catalog.ResolveOrCreate(ctx, MaterialSpec{SpecText: " S45C   Round 20MM "})
	require.NoError(t, err)
	assert.Equal(t, created.ID, mangled.ID)
}

func TestCatalogService_ResolveOrCreate_MissingGeometry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	_, err := svc.catalog.ResolveOrCreate(ctx, MaterialSpec{SpecText: "Unknown Alloy 15mm"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "shape")
	assert.Contains(t, appErr.Details, "diameter_mm")
	assert.Contains(t, appErr.Details, "density_gcm3")
}

func TestCatalogService_CreateMaterial_InvalidGeometry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	err := svc.catalog.CreateMaterial(ctx, &repository.Material{
		DisplayName: "Bad Bar",
		Shape:       conversion.ShapeRound,
		DiameterMM:  decimal.NewFromInt(-5),
		DensityGCM3: decimal.RequireFromString("7.85"),
		IsActive:    true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidGeometry))
}

func TestCatalogService_UpdateDensity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	mat, err := svc.catalog.ResolveOrCreate(ctx, roundBarSpec("S45C Round 20mm", "20", "7.85"))
	require.NoError(t, err)

	err = svc.catalog.UpdateDensity(ctx, mat.ID, decimal.RequireFromString("7.87"), time.Now())
	require.NoError(t, err)

	got, err := svc.catalog.GetMaterial(ctx, mat.ID)
	require.NoError(t, err)
	assert.Equal(t, "7.87", got.DensityGCM3.String())

	history, err := svc.catalog.ListDensityHistory(ctx, mat.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "7.87", history[0].DensityGCM3.String())

	// Non-positive density is rejected before touching anything
	err = svc.catalog.UpdateDensity(ctx, mat.ID, decimal.Zero, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidGeometry))
}

func TestCatalogService_DeactivateMaterial(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	mat, err := svc.catalog.ResolveOrCreate(ctx, roundBarSpec("S45C Round 20mm", "20", "7.85"))
	require.NoError(t, err)

	require.NoError(t, svc.catalog.DeactivateMaterial(ctx, mat.ID))

	active, err := svc.catalog.ListMaterials(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.catalog.ListMaterials(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCatalogService_AddAlias(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	svc := newServices(t)
	suite.Reset(t, ctx)

	mat, err := svc.catalog.ResolveOrCreate(ctx, roundBarSpec("S45C Round 20mm", "20", "7.85"))
	require.NoError(t, err)

	_, err = svc.catalog.AddAlias(ctx, mat.ID, "S45C-D20")
	require.NoError(t, err)

	resolved, err := svc.catalog.ResolveOrCreate(ctx, MaterialSpec{SpecText: "S45C-D20"})
	require.NoError(t, err)
	assert.Equal(t, mat.ID, resolved.ID)

	_, err = svc.catalog.AddAlias(ctx, mat.ID, "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
