package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/errors"
)

// Inspection statuses
const (
	InspectionPending = "pending"
	InspectionPassed  = "passed"
	InspectionFailed  = "failed"
)

// Lot represents one receiving of bar stock from a supplier
type Lot struct {
	ID                  string     `db:"id" json:"id"`
	LotNumber           string     `db:"lot_number" json:"lot_number"`
	MaterialID          string     `db:"material_id" json:"material_id"`
	PurchaseOrderItemID *string    `db:"purchase_order_item_id" json:"purchase_order_item_id,omitempty"`
	ReceivedDate        time.Time  `db:"received_date" json:"received_date"`
	ReceivedPieces      int        `db:"received_pieces" json:"received_pieces"`
	UnitPriceCents      *int64     `db:"unit_price_cents" json:"unit_price_cents,omitempty"`
	InspectionStatus    string     `db:"inspection_status" json:"inspection_status"`
	InspectedAt         *time.Time `db:"inspected_at" json:"inspected_at,omitempty"`
	InspectedBy         *string    `db:"inspected_by" json:"inspected_by,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

const lotColumns = `
	id, lot_number, material_id, purchase_order_item_id, received_date,
	received_pieces, unit_price_cents, inspection_status, inspected_at,
	inspected_by, created_at, updated_at
`

// CreateTx creates a new lot within an existing transaction
func (r *LotRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	if lot.InspectionStatus == "" {
		lot.InspectionStatus = InspectionPending
	}

	query := `
		INSERT INTO lots (
			id, lot_number, material_id, purchase_order_item_id, received_date,
			received_pieces, unit_price_cents, inspection_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		lot.ID, lot.LotNumber, lot.MaterialID, lot.PurchaseOrderItemID,
		lot.ReceivedDate, lot.ReceivedPieces, lot.UnitPriceCents, lot.InspectionStatus,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "lot_number") {
			return errors.DuplicateLot(lot.LotNumber)
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	var lot Lot

	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`

	err := r.db.GetContext(ctx, &lot, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("lot")
	}
	if err != nil {
		return nil, err
	}

	return &lot, nil
}

// GetByLotNumber gets a lot by its lot number
func (r *LotRepository) GetByLotNumber(ctx context.Context, lotNumber string) (*Lot, error) {
	var lot Lot

	query := `SELECT ` + lotColumns + ` FROM lots WHERE lot_number = $1`

	err := r.db.GetContext(ctx, &lot, query, lotNumber)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("lot")
	}
	if err != nil {
		return nil, err
	}

	return &lot, nil
}

// UpdateTx rewrites a lot's receiving details within the caller's
// transaction. Used when an unfinalized receiving is re-confirmed.
func (r *LotRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, lot *Lot) error {
	query := `
		UPDATE lots SET
			material_id = $2, purchase_order_item_id = $3, received_date = $4,
			received_pieces = $5, unit_price_cents = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.ExecContext(ctx, query,
		lot.ID, lot.MaterialID, lot.PurchaseOrderItemID, lot.ReceivedDate,
		lot.ReceivedPieces, lot.UnitPriceCents,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}

	return nil
}

// List lists lots with optional material and inspection status filters,
// newest first
func (r *LotRepository) List(ctx context.Context, materialID, inspectionStatus string, page, perPage int) ([]*Lot, int64, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if materialID != "" {
		args = append(args, materialID)
		where += ` AND material_id = $1`
	}
	if inspectionStatus != "" {
		args = append(args, inspectionStatus)
		if materialID != "" {
			where += ` AND inspection_status = $2`
		} else {
			where += ` AND inspection_status = $1`
		}
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM lots`+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query := `SELECT ` + lotColumns + ` FROM lots` + where +
		` ORDER BY received_date DESC, created_at DESC`

	n := len(args)
	query += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, perPage, offset)

	var lots []*Lot
	if err := r.db.SelectContext(ctx, &lots, query, args...); err != nil {
		return nil, 0, err
	}

	return lots, total, nil
}

// CountForDate counts lots received on a given date. Used to derive the
// next sequential lot number for that day.
func (r *LotRepository) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM lots WHERE received_date = $1`

	if err := r.db.GetContext(ctx, &count, query, date.Format("2006-01-02")); err != nil {
		return 0, err
	}

	return count, nil
}

// SetInspectionStatus records an inspection result on a lot
func (r *LotRepository) SetInspectionStatus(ctx context.Context, id, status, inspectedBy string) error {
	query := `
		UPDATE lots SET
			inspection_status = $2, inspected_at = NOW(), inspected_by = $3,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, inspectedBy)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}

	return nil
}
