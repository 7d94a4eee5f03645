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

// Item represents a stock-keeping unit: bars of one material at one
// length from one lot. Current totals are denormalized from the
// movement ledger and kept in sync inside the ledger transaction.
type Item struct {
	ID              string          `db:"id" json:"id"`
	Identifier      string          `db:"identifier" json:"identifier"`
	LotID           string          `db:"lot_id" json:"lot_id"`
	LengthMM        decimal.Decimal `db:"length_mm" json:"length_mm"`
	CurrentPieces   int             `db:"current_pieces" json:"current_pieces"`
	CurrentWeightKg decimal.Decimal `db:"current_weight_kg" json:"current_weight_kg"`
	LocationID      *string         `db:"location_id" json:"location_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// StockRow is one line of the stock summary: an item joined with its
// lot and material
type StockRow struct {
	ItemID           string          `db:"item_id" json:"item_id"`
	Identifier       string          `db:"identifier" json:"identifier"`
	LotID            string          `db:"lot_id" json:"lot_id"`
	LotNumber        string          `db:"lot_number" json:"lot_number"`
	MaterialID       string          `db:"material_id" json:"material_id"`
	DisplayName      string          `db:"display_name" json:"display_name"`
	Shape            string          `db:"shape" json:"shape"`
	DiameterMM       decimal.Decimal `db:"diameter_mm" json:"diameter_mm"`
	DensityGCM3      decimal.Decimal `db:"density_gcm3" json:"density_gcm3"`
	EquivalenceGroup *string         `db:"equivalence_group" json:"equivalence_group,omitempty"`
	LengthMM         decimal.Decimal `db:"length_mm" json:"length_mm"`
	CurrentPieces    int             `db:"current_pieces" json:"current_pieces"`
	CurrentWeightKg  decimal.Decimal `db:"current_weight_kg" json:"current_weight_kg"`
	LocationName     *string         `db:"location_name" json:"location_name,omitempty"`
	InspectionStatus string          `db:"inspection_status" json:"inspection_status"`
}

// ItemRepository handles item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `
	id, identifier, lot_id, length_mm, current_pieces, current_weight_kg,
	location_id, created_at, updated_at
`

// CreateTx creates a new item within an existing transaction
func (r *ItemRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO items (
			id, identifier, lot_id, length_mm, current_pieces,
			current_weight_kg, location_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		item.ID, item.Identifier, item.LotID, item.LengthMM,
		item.CurrentPieces, item.CurrentWeightKg, item.LocationID,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	err := r.db.GetContext(ctx, &item, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// GetByIdentifier gets an item by its human-facing identifier
func (r *ItemRepository) GetByIdentifier(ctx context.Context, identifier string) (*Item, error) {
	var item Item

	query := `SELECT ` + itemColumns + ` FROM items WHERE identifier = $1`

	err := r.db.GetContext(ctx, &item, query, identifier)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// GetForUpdateTx locks the item row for the duration of the transaction.
// Every ledger mutation goes through this lock, which serializes
// concurrent movements against the same item.
func (r *ItemRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*Item, error) {
	var item Item

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 FOR UPDATE`

	err := tx.GetContext(ctx, &item, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// ItemGeometry is the conversion input for one item: the material's
// cross-section and density joined with the item's bar length
type ItemGeometry struct {
	ItemID      string          `db:"item_id"`
	Shape       string          `db:"shape"`
	DiameterMM  decimal.Decimal `db:"diameter_mm"`
	DensityGCM3 decimal.Decimal `db:"density_gcm3"`
	LengthMM    decimal.Decimal `db:"length_mm"`
}

// GetGeometryTx loads the conversion geometry for an item within the
// caller's transaction
func (r *ItemRepository) GetGeometryTx(ctx context.Context, tx *sqlx.Tx, id string) (*ItemGeometry, error) {
	var g ItemGeometry

	query := `
		SELECT i.id AS item_id, m.shape, m.diameter_mm, m.density_gcm3, i.length_mm
		FROM items i
		JOIN lots l ON l.id = i.lot_id
		JOIN materials m ON m.id = l.material_id
		WHERE i.id = $1
	`

	err := tx.GetContext(ctx, &g, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}

	return &g, nil
}

// IdentifierExistsTx reports whether an item identifier is already
// taken. Receiving checks before insert and regenerates on collision;
// the unique index remains the backstop.
func (r *ItemRepository) IdentifierExistsTx(ctx context.Context, tx *sqlx.Tx, identifier string) (bool, error) {
	var exists bool

	query := `SELECT EXISTS (SELECT 1 FROM items WHERE identifier = $1)`

	if err := tx.GetContext(ctx, &exists, query, identifier); err != nil {
		return false, err
	}

	return exists, nil
}

// UpdateTotalsTx writes the item's denormalized stock totals. Callers
// must hold the row lock from GetForUpdateTx.
func (r *ItemRepository) UpdateTotalsTx(ctx context.Context, tx *sqlx.Tx, id string, pieces int, weightKg decimal.Decimal) error {
	query := `
		UPDATE items SET current_pieces = $2, current_weight_kg = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.ExecContext(ctx, query, id, pieces, weightKg)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// UpdateLengthTx rewrites an item's bar length within the caller's
// transaction. Only receiving re-confirmation uses this.
func (r *ItemRepository) UpdateLengthTx(ctx context.Context, tx *sqlx.Tx, id string, lengthMM decimal.Decimal) error {
	query := `UPDATE items SET length_mm = $2, updated_at = NOW() WHERE id = $1`

	result, err := tx.ExecContext(ctx, query, id, lengthMM)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// ListByLot lists the items created from a lot
func (r *ItemRepository) ListByLot(ctx context.Context, lotID string) ([]*Item, error) {
	var items []*Item

	query := `SELECT ` + itemColumns + ` FROM items WHERE lot_id = $1 ORDER BY identifier`

	if err := r.db.SelectContext(ctx, &items, query, lotID); err != nil {
		return nil, err
	}

	return items, nil
}

// ListByLotTx lists a lot's items within the caller's transaction
func (r *ItemRepository) ListByLotTx(ctx context.Context, tx *sqlx.Tx, lotID string) ([]*Item, error) {
	var items []*Item

	query := `SELECT ` + itemColumns + ` FROM items WHERE lot_id = $1 ORDER BY identifier`

	if err := tx.SelectContext(ctx, &items, query, lotID); err != nil {
		return nil, err
	}

	return items, nil
}

// DeleteTx removes an item within the caller's transaction. Only
// receiving re-confirmation deletes items, and only when nothing but
// the seed movement references them.
func (r *ItemRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// SetLocation moves an item to a storage location. A nil locationID
// clears the assignment.
func (r *ItemRepository) SetLocation(ctx context.Context, id string, locationID *string) error {
	query := `UPDATE items SET location_id = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, locationID)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

const stockRowQuery = `
	SELECT i.id AS item_id, i.identifier, i.lot_id, l.lot_number,
	       m.id AS material_id, m.display_name, m.shape, m.diameter_mm,
	       m.density_gcm3, m.equivalence_group,
	       i.length_mm, i.current_pieces, i.current_weight_kg,
	       loc.name AS location_name, l.inspection_status
	FROM items i
	JOIN lots l ON l.id = i.lot_id
	JOIN materials m ON m.id = l.material_id
	LEFT JOIN locations loc ON loc.id = i.location_id
`

// ListStock returns the stock summary, optionally filtered by material
func (r *ItemRepository) ListStock(ctx context.Context, materialID string) ([]*StockRow, error) {
	var rows []*StockRow

	query := stockRowQuery
	args := []interface{}{}

	if materialID != "" {
		query += ` WHERE m.id = $1`
		args = append(args, materialID)
	}
	query += ` ORDER BY m.display_name, i.length_mm, l.lot_number`

	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	return rows, nil
}

// ListLowStock returns items at or below the given piece threshold
func (r *ItemRepository) ListLowStock(ctx context.Context, thresholdPieces int) ([]*StockRow, error) {
	var rows []*StockRow

	query := stockRowQuery + `
		WHERE i.current_pieces <= $1
		ORDER BY i.current_pieces, m.display_name
	`

	if err := r.db.SelectContext(ctx, &rows, query, thresholdPieces); err != nil {
		return nil, err
	}

	return rows, nil
}

// ListStockByEquivalenceGroup returns the stock rows for every material
// in the given equivalence group
func (r *ItemRepository) ListStockByEquivalenceGroup(ctx context.Context, group string) ([]*StockRow, error) {
	var rows []*StockRow

	query := stockRowQuery + `
		WHERE m.equivalence_group = $1
		ORDER BY m.display_name, i.length_mm
	`

	if err := r.db.SelectContext(ctx, &rows, query, group); err != nil {
		return nil, err
	}

	return rows, nil
}
