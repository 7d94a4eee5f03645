package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/testutil"
)

func TestMovementRepository_InsertTx(t *testing.T) {
	mockDB, db := newTestRepo(t)
	repo := NewMovementRepository(db)

	now := time.Now()
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("seq", "recorded_at").AddRow(int64(7), now))
	mockDB.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	mv := &Movement{
		ItemID:        "item-1",
		MovementType:  MovementOut,
		PieceDelta:    -3,
		WeightDeltaKg: decimal.RequireFromString("-18.496"),
		PrimaryUnit:   PrimaryUnitPieces,
		DensityGCM3:   decimal.RequireFromString("7.85"),
		ActorID:       "worker-1",
	}

	err = repo.InsertTx(context.Background(), tx, mv)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, mv.ID)
	assert.Equal(t, int64(7), mv.Seq)
	assert.Equal(t, now, mv.RecordedAt)
}

func TestMovementRepository_ListByItem_OrderedBySeq(t *testing.T) {
	mockDB, db := newTestRepo(t)
	repo := NewMovementRepository(db)

	now := time.Now()
	rows := testutil.MockRows(
		"id", "seq", "item_id", "movement_type", "piece_delta", "weight_delta_kg",
		"primary_unit", "density_gcm3", "note", "actor_id", "actor_name", "recorded_at",
	).
		AddRow("mv-1", int64(1), "item-1", "in", 10, "61.654", "pieces", "7.85", nil, "worker-1", nil, now).
		AddRow("mv-2", int64(2), "item-1", "out", -3, "-18.496", "pieces", "7.85", nil, "worker-1", nil, now)

	mockDB.ExpectQuery("ORDER BY recorded_at, seq").
		WithArgs("item-1").
		WillReturnRows(rows)

	movements, err := repo.ListByItem(context.Background(), "item-1")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, int64(1), movements[0].Seq)
	assert.Equal(t, MovementIn, movements[0].MovementType)
	assert.Equal(t, -3, movements[1].PieceDelta)
}

func TestMovementRepository_DeleteTx_NotFound(t *testing.T) {
	mockDB, db := newTestRepo(t)
	repo := NewMovementRepository(db)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("DELETE FROM movements").
		WithArgs("missing-id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.DeleteTx(context.Background(), tx, "missing-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
