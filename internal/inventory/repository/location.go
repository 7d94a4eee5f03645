package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/errors"
)

// Location represents a physical storage location in the warehouse
type Location struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LocationRepository handles storage location persistence
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create creates a new location
func (r *LocationRepository) Create(ctx context.Context, loc *Location) error {
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}

	query := `
		INSERT INTO locations (id, name, description, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		loc.ID, loc.Name, loc.Description, loc.IsActive,
	).Scan(&loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*Location, error) {
	var loc Location

	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM locations WHERE id = $1
	`

	err := r.db.GetContext(ctx, &loc, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("location")
	}
	if err != nil {
		return nil, err
	}

	return &loc, nil
}

// List lists locations ordered by name
func (r *LocationRepository) List(ctx context.Context, activeOnly bool) ([]*Location, error) {
	var locations []*Location

	query := `SELECT id, name, description, is_active, created_at, updated_at FROM locations`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name`

	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, err
	}

	return locations, nil
}

// Update updates a location
func (r *LocationRepository) Update(ctx context.Context, loc *Location) error {
	query := `
		UPDATE locations SET name = $2, description = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, loc.ID, loc.Name, loc.Description, loc.IsActive)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("location")
	}

	return nil
}
