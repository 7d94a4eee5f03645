package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/errors"
)

// Movement types
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementReturn     = "return"
	MovementAdjustment = "adjustment"
)

// Primary units. Exactly one of the two deltas on a movement is
// authoritative; the other is derived through the conversion engine at
// the density captured here.
const (
	PrimaryUnitPieces = "pieces"
	PrimaryUnitWeight = "weight"
)

// Movement is one signed entry in the append-ordered stock ledger.
// The signed sum of piece deltas over an item's movements always equals
// the item's current piece count.
type Movement struct {
	ID            string          `db:"id" json:"id"`
	Seq           int64           `db:"seq" json:"seq"`
	ItemID        string          `db:"item_id" json:"item_id"`
	MovementType  string          `db:"movement_type" json:"movement_type"`
	PieceDelta    int             `db:"piece_delta" json:"piece_delta"`
	WeightDeltaKg decimal.Decimal `db:"weight_delta_kg" json:"weight_delta_kg"`
	PrimaryUnit   string          `db:"primary_unit" json:"primary_unit"`
	DensityGCM3   decimal.Decimal `db:"density_gcm3" json:"density_gcm3"`
	Note          *string         `db:"note" json:"note,omitempty"`
	ActorID       string          `db:"actor_id" json:"actor_id"`
	ActorName     *string         `db:"actor_name" json:"actor_name,omitempty"`
	RecordedAt    time.Time       `db:"recorded_at" json:"recorded_at"`
}

// MovementRepository handles movement ledger persistence
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

const movementColumns = `
	id, seq, item_id, movement_type, piece_delta, weight_delta_kg,
	primary_unit, density_gcm3, note, actor_id, actor_name, recorded_at
`

// InsertTx appends a movement to the ledger within the caller's
// transaction
func (r *MovementRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, mv *Movement) error {
	if mv.ID == "" {
		mv.ID = uuid.New().String()
	}

	query := `
		INSERT INTO movements (
			id, item_id, movement_type, piece_delta, weight_delta_kg,
			primary_unit, density_gcm3, note, actor_id, actor_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq, recorded_at
	`

	err := tx.QueryRowxContext(ctx, query,
		mv.ID, mv.ItemID, mv.MovementType, mv.PieceDelta, mv.WeightDeltaKg,
		mv.PrimaryUnit, mv.DensityGCM3, mv.Note, mv.ActorID, mv.ActorName,
	).Scan(&mv.Seq, &mv.RecordedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a movement by ID
func (r *MovementRepository) GetByID(ctx context.Context, id string) (*Movement, error) {
	var mv Movement

	query := `SELECT ` + movementColumns + ` FROM movements WHERE id = $1`

	err := r.db.GetContext(ctx, &mv, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("movement")
	}
	if err != nil {
		return nil, err
	}

	return &mv, nil
}

// GetForUpdateTx locks a movement row within the caller's transaction
func (r *MovementRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*Movement, error) {
	var mv Movement

	query := `SELECT ` + movementColumns + ` FROM movements WHERE id = $1 FOR UPDATE`

	err := tx.GetContext(ctx, &mv, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("movement")
	}
	if err != nil {
		return nil, err
	}

	return &mv, nil
}

// ListByItem lists an item's movements in ledger order, oldest first.
// Ties on recorded_at fall back to insertion sequence so replaying the
// list is deterministic.
func (r *MovementRepository) ListByItem(ctx context.Context, itemID string) ([]*Movement, error) {
	var movements []*Movement

	query := `
		SELECT ` + movementColumns + `
		FROM movements
		WHERE item_id = $1
		ORDER BY recorded_at, seq
	`

	if err := r.db.SelectContext(ctx, &movements, query, itemID); err != nil {
		return nil, err
	}

	return movements, nil
}

// ListByItemTx lists an item's movements in ledger order within the
// caller's transaction
func (r *MovementRepository) ListByItemTx(ctx context.Context, tx *sqlx.Tx, itemID string) ([]*Movement, error) {
	var movements []*Movement

	query := `
		SELECT ` + movementColumns + `
		FROM movements
		WHERE item_id = $1
		ORDER BY recorded_at, seq
	`

	if err := tx.SelectContext(ctx, &movements, query, itemID); err != nil {
		return nil, err
	}

	return movements, nil
}

// SumByItemTx returns the signed piece and weight sums for an item's
// ledger within the caller's transaction
func (r *MovementRepository) SumByItemTx(ctx context.Context, tx *sqlx.Tx, itemID string) (int, decimal.Decimal, error) {
	var row struct {
		Pieces   int             `db:"pieces"`
		WeightKg decimal.Decimal `db:"weight_kg"`
	}

	query := `
		SELECT COALESCE(SUM(piece_delta), 0) AS pieces,
		       COALESCE(SUM(weight_delta_kg), 0) AS weight_kg
		FROM movements
		WHERE item_id = $1
	`

	if err := tx.GetContext(ctx, &row, query, itemID); err != nil {
		return 0, decimal.Zero, err
	}

	return row.Pieces, row.WeightKg, nil
}

// UpdateTx rewrites a movement's deltas and note within the caller's
// transaction. The ledger service owns recomputing the item totals.
func (r *MovementRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, mv *Movement) error {
	query := `
		UPDATE movements SET
			piece_delta = $2, weight_delta_kg = $3, primary_unit = $4, note = $5
		WHERE id = $1
	`

	result, err := tx.ExecContext(ctx, query,
		mv.ID, mv.PieceDelta, mv.WeightDeltaKg, mv.PrimaryUnit, mv.Note,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("movement")
	}

	return nil
}

// DeleteTx removes a movement from the ledger within the caller's
// transaction
func (r *MovementRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("movement")
	}

	return nil
}
