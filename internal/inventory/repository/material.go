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

// Material represents a catalog entry for one kind of bar stock.
// DiameterMM holds the across-flats dimension for hex and square bars.
type Material struct {
	ID               string          `db:"id" json:"id"`
	DisplayName      string          `db:"display_name" json:"display_name"`
	Shape            string          `db:"shape" json:"shape"`
	DiameterMM       decimal.Decimal `db:"diameter_mm" json:"diameter_mm"`
	DensityGCM3      decimal.Decimal `db:"density_gcm3" json:"density_gcm3"`
	PartNumber       *string         `db:"part_number" json:"part_number,omitempty"`
	EquivalenceGroup *string         `db:"equivalence_group" json:"equivalence_group,omitempty"`
	IsActive         bool            `db:"is_active" json:"is_active"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// MaterialAlias maps an alternate spelling to a material
type MaterialAlias struct {
	ID         string    `db:"id" json:"id"`
	MaterialID string    `db:"material_id" json:"material_id"`
	Alias      string    `db:"alias" json:"alias"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DensityRecord is one entry in a material's density history
type DensityRecord struct {
	ID            string          `db:"id" json:"id"`
	MaterialID    string          `db:"material_id" json:"material_id"`
	DensityGCM3   decimal.Decimal `db:"density_gcm3" json:"density_gcm3"`
	EffectiveDate time.Time       `db:"effective_date" json:"effective_date"`
	RecordedBy    string          `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// MaterialRepository handles material catalog persistence
type MaterialRepository struct {
	db *database.DB
}

// NewMaterialRepository creates a new material repository
func NewMaterialRepository(db *database.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

const materialColumns = `
	id, display_name, shape, diameter_mm, density_gcm3, part_number,
	equivalence_group, is_active, created_at, updated_at
`

// Create creates a new material
func (r *MaterialRepository) Create(ctx context.Context, mat *Material) error {
	if mat.ID == "" {
		mat.ID = uuid.New().String()
	}

	query := `
		INSERT INTO materials (
			id, display_name, shape, diameter_mm, density_gcm3,
			part_number, equivalence_group, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		mat.ID, mat.DisplayName, mat.Shape, mat.DiameterMM, mat.DensityGCM3,
		mat.PartNumber, mat.EquivalenceGroup, mat.IsActive,
	).Scan(&mat.CreatedAt, &mat.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// CreateTx creates a new material within an existing transaction
func (r *MaterialRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, mat *Material) error {
	if mat.ID == "" {
		mat.ID = uuid.New().String()
	}

	query := `
		INSERT INTO materials (
			id, display_name, shape, diameter_mm, density_gcm3,
			part_number, equivalence_group, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		mat.ID, mat.DisplayName, mat.Shape, mat.DiameterMM, mat.DensityGCM3,
		mat.PartNumber, mat.EquivalenceGroup, mat.IsActive,
	).Scan(&mat.CreatedAt, &mat.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a material by ID
func (r *MaterialRepository) GetByID(ctx context.Context, id string) (*Material, error) {
	var mat Material

	query := `SELECT ` + materialColumns + ` FROM materials WHERE id = $1`

	err := r.db.GetContext(ctx, &mat, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("material")
	}
	if err != nil {
		return nil, err
	}

	return &mat, nil
}

// GetByDisplayName gets a material by its exact display name
func (r *MaterialRepository) GetByDisplayName(ctx context.Context, name string) (*Material, error) {
	var mat Material

	query := `SELECT ` + materialColumns + ` FROM materials WHERE display_name = $1`

	err := r.db.GetContext(ctx, &mat, query, name)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("material")
	}
	if err != nil {
		return nil, err
	}

	return &mat, nil
}

// GetByAlias gets a material through one of its registered aliases
func (r *MaterialRepository) GetByAlias(ctx context.Context, alias string) (*Material, error) {
	var mat Material

	query := `
		SELECT m.id, m.display_name, m.shape, m.diameter_mm, m.density_gcm3,
		       m.part_number, m.equivalence_group, m.is_active, m.created_at, m.updated_at
		FROM materials m
		JOIN material_aliases a ON a.material_id = m.id
		WHERE a.alias = $1
	`

	err := r.db.GetContext(ctx, &mat, query, alias)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("material")
	}
	if err != nil {
		return nil, err
	}

	return &mat, nil
}

// List lists materials ordered by display name
func (r *MaterialRepository) List(ctx context.Context, activeOnly bool) ([]*Material, error) {
	var materials []*Material

	query := `SELECT ` + materialColumns + ` FROM materials`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY display_name`

	if err := r.db.SelectContext(ctx, &materials, query); err != nil {
		return nil, err
	}

	return materials, nil
}

// ListByEquivalenceGroup lists active materials sharing an equivalence group
func (r *MaterialRepository) ListByEquivalenceGroup(ctx context.Context, group string) ([]*Material, error) {
	var materials []*Material

	query := `
		SELECT ` + materialColumns + `
		FROM materials
		WHERE equivalence_group = $1 AND is_active = TRUE
		ORDER BY display_name
	`

	if err := r.db.SelectContext(ctx, &materials, query, group); err != nil {
		return nil, err
	}

	return materials, nil
}

// Update updates a material's descriptive fields. Density changes go
// through UpdateDensity so the history stays complete.
func (r *MaterialRepository) Update(ctx context.Context, mat *Material) error {
	query := `
		UPDATE materials SET
			display_name = $2, part_number = $3, equivalence_group = $4,
			is_active = $5, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		mat.ID, mat.DisplayName, mat.PartNumber, mat.EquivalenceGroup, mat.IsActive,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("material")
	}

	return nil
}

// UpdateDensityTx updates the material's density and appends a history
// record in the same transaction
func (r *MaterialRepository) UpdateDensityTx(ctx context.Context, tx *sqlx.Tx, materialID string, density decimal.Decimal, effectiveDate time.Time, recordedBy string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE materials SET density_gcm3 = $2, updated_at = NOW() WHERE id = $1`,
		materialID, density,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("material")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO material_density_history (id, material_id, density_gcm3, effective_date, recorded_by)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), materialID, density, effectiveDate, recordedBy)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// ListDensityHistory lists a material's density records, newest first
func (r *MaterialRepository) ListDensityHistory(ctx context.Context, materialID string) ([]*DensityRecord, error) {
	var records []*DensityRecord

	query := `
		SELECT id, material_id, density_gcm3, effective_date, recorded_by, created_at
		FROM material_density_history
		WHERE material_id = $1
		ORDER BY effective_date DESC, created_at DESC
	`

	if err := r.db.SelectContext(ctx, &records, query, materialID); err != nil {
		return nil, err
	}

	return records, nil
}

// AddAlias registers an alternate spelling for a material
func (r *MaterialRepository) AddAlias(ctx context.Context, materialID, alias string) (*MaterialAlias, error) {
	a := &MaterialAlias{
		ID:         uuid.New().String(),
		MaterialID: materialID,
		Alias:      alias,
	}

	query := `
		INSERT INTO material_aliases (id, material_id, alias)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query, a.ID, a.MaterialID, a.Alias).Scan(&a.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	return a, nil
}

// ListAliases lists a material's aliases
func (r *MaterialRepository) ListAliases(ctx context.Context, materialID string) ([]*MaterialAlias, error) {
	var aliases []*MaterialAlias

	query := `
		SELECT id, material_id, alias, created_at
		FROM material_aliases
		WHERE material_id = $1
		ORDER BY alias
	`

	if err := r.db.SelectContext(ctx, &aliases, query, materialID); err != nil {
		return nil, err
	}

	return aliases, nil
}
