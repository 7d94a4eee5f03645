package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/logger"
	"github.com/barstock/barstock-backend/pkg/testutil"
)

func newTestRepo(t *testing.T) (*testutil.MockDB, *database.DB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() {
		mockDB.ExpectationsWereMet(t)
		mockDB.Close()
	})
	return mockDB, database.NewFromSqlx(mockDB.DB, logger.New("test", "test"))
}

func TestMaterialRepository_Create(t *testing.T) {
	mockDB, db := newTestRepo(t)
	repo := NewMaterialRepository(db)

	now := time.Now()
	mockDB.ExpectQuery("INSERT INTO materials").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	mat := &Material{
		DisplayName: "S45C Round 20mm",
		Shape:       "round",
		DiameterMM:  decimal.NewFromInt(20),
		DensityGCM3: decimal.RequireFromString("7.85"),
		IsActive:    true,
	}

	err := repo.Create(context.Background(), mat)
	require.NoError(t, err)
	assert.NotEmpty(t, mat.ID)
	assert.Equal(t, now, mat.CreatedAt)
}

func TestMaterialRepository_GetByID_NotFound(t *testing.T) {
	mockDB, db := newTestRepo(t)
	repo := NewMaterialRepository(db)

	mockDB.ExpectQuery("SELECT").
		WillReturnRows(testutil.MockRows("id"))

	_, err := repo.GetByID(context.Background(), "missing-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestMaterialRepository_GetByAlias(t *testing.T) {
	mockDB, db := newTestRepo(t)
	repo := NewMaterialRepository(db)

	now := time.Now()
	rows := testutil.MockRows(
		"id", "display_name", "shape", "diameter_mm", "density_gcm3",
		"part_number", "equivalence_group", "is_active", "created_at", "updated_at",
	).AddRow(
		"mat-1", "S45C Round 20mm", "round", "20", "7.85",
		nil, nil, true, now, now,
	)

	mockDB.ExpectQuery("JOIN material_aliases").
		WithArgs("S45C 20").
		WillReturnRows(rows)

	mat, err := repo.GetByAlias(context.Background(), "S45C 20")
	require.NoError(t, err)
	assert.Equal(t, "mat-1", mat.ID)
	assert.Equal(t, "round", mat.Shape)
	assert.True(t, mat.DiameterMM.Equal(decimal.NewFromInt(20)))
}

func TestMaterialRepository_Update_NotFound(t *testing.T) {
	mockDB, db := newTestRepo(t)
	repo := NewMaterialRepository(db)

	mockDB.ExpectExec("UPDATE materials").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &Material{ID: "missing-id", DisplayName: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
