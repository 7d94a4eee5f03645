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

// Purchase order item statuses
const (
	POStatusOpen      = "open"
	POStatusReceived  = "received"
	POStatusCancelled = "cancelled"
)

// PurchaseOrderItem is one expected delivery line. SpecText carries the
// supplier's free-text material description; the catalog resolves it to
// a material when the delivery is confirmed.
type PurchaseOrderItem struct {
	ID             string           `db:"id" json:"id"`
	OrderRef       string           `db:"order_ref" json:"order_ref"`
	LineNo         int              `db:"line_no" json:"line_no"`
	SpecText       string           `db:"spec_text" json:"spec_text"`
	QuantityPieces int              `db:"quantity_pieces" json:"quantity_pieces"`
	LengthMM       *decimal.Decimal `db:"length_mm" json:"length_mm,omitempty"`
	UnitPriceCents *int64           `db:"unit_price_cents" json:"unit_price_cents,omitempty"`
	Currency       string           `db:"currency" json:"currency"`
	Status         string           `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// PurchaseOrderRepository handles purchase order line persistence
type PurchaseOrderRepository struct {
	db *database.DB
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db *database.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

const poColumns = `
	id, order_ref, line_no, spec_text, quantity_pieces, length_mm,
	unit_price_cents, currency, status, created_at, updated_at
`

// Create creates a new purchase order line
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *PurchaseOrderItem) error {
	if po.ID == "" {
		po.ID = uuid.New().String()
	}
	if po.Status == "" {
		po.Status = POStatusOpen
	}
	if po.Currency == "" {
		po.Currency = "JPY"
	}
	if po.LineNo == 0 {
		po.LineNo = 1
	}

	query := `
		INSERT INTO purchase_order_items (
			id, order_ref, line_no, spec_text, quantity_pieces, length_mm,
			unit_price_cents, currency, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		po.ID, po.OrderRef, po.LineNo, po.SpecText, po.QuantityPieces,
		po.LengthMM, po.UnitPriceCents, po.Currency, po.Status,
	).Scan(&po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// CreateBatch creates several purchase order lines in one transaction.
// Used by the spreadsheet importer.
func (r *PurchaseOrderRepository) CreateBatch(ctx context.Context, items []*PurchaseOrderItem) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO purchase_order_items (
				id, order_ref, line_no, spec_text, quantity_pieces, length_mm,
				unit_price_cents, currency, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`

		for _, po := range items {
			if po.ID == "" {
				po.ID = uuid.New().String()
			}
			if po.Status == "" {
				po.Status = POStatusOpen
			}
			if po.Currency == "" {
				po.Currency = "JPY"
			}
			if po.LineNo == 0 {
				po.LineNo = 1
			}

			err := tx.QueryRowxContext(ctx, query,
				po.ID, po.OrderRef, po.LineNo, po.SpecText, po.QuantityPieces,
				po.LengthMM, po.UnitPriceCents, po.Currency, po.Status,
			).Scan(&po.CreatedAt, &po.UpdatedAt)
			if err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
		}

		return nil
	})
}

// GetByID gets a purchase order line by ID
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id string) (*PurchaseOrderItem, error) {
	var po PurchaseOrderItem

	query := `SELECT ` + poColumns + ` FROM purchase_order_items WHERE id = $1`

	err := r.db.GetContext(ctx, &po, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("purchase order item")
	}
	if err != nil {
		return nil, err
	}

	return &po, nil
}

// List lists purchase order lines, optionally filtered by status
func (r *PurchaseOrderRepository) List(ctx context.Context, status string) ([]*PurchaseOrderItem, error) {
	var items []*PurchaseOrderItem

	query := `SELECT ` + poColumns + ` FROM purchase_order_items`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY order_ref, line_no`

	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	return items, nil
}

// SetStatusTx transitions a purchase order line within the caller's
// transaction
func (r *PurchaseOrderRepository) SetStatusTx(ctx context.Context, tx *sqlx.Tx, id, status string) error {
	query := `UPDATE purchase_order_items SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := tx.ExecContext(ctx, query, id, status)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("purchase order item")
	}

	return nil
}

// Cancel marks an open purchase order line as cancelled
func (r *PurchaseOrderRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE purchase_order_items SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, id, POStatusCancelled, POStatusOpen)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InvalidState("purchase order item is not open")
	}

	return nil
}
