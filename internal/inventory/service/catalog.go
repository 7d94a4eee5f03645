package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/internal/inventory/conversion"
	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/actor"
	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// DefaultDensityGCM3 is the carbon-steel fallback density. It is only
// applied when a caller explicitly asks for the catalog-wide default;
// receiving flows must always supply an explicit density.
var DefaultDensityGCM3 = decimal.RequireFromString("7.85")

// CatalogService manages the material catalog
type CatalogService struct {
	db        *database.DB
	materials *repository.MaterialRepository
	audit     *repository.AuditRepository
	logger    *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db *database.DB, materials *repository.MaterialRepository, audit *repository.AuditRepository, log *logger.Logger) *CatalogService {
	return &CatalogService{
		db:        db,
		materials: materials,
		audit:     audit,
		logger:    log.WithComponent("catalog"),
	}
}

// MaterialSpec is the input to material resolution. SpecText is the
// free-text description from a purchase order or receiving form; the
// geometry fields are only required when no existing material matches.
type MaterialSpec struct {
	SpecText    string
	Shape       string
	DiameterMM  decimal.Decimal
	DensityGCM3 decimal.Decimal
}

// NormalizeSpecText collapses whitespace and uppercases a spec text so
// that trivially different spellings resolve to the same material
func NormalizeSpecText(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// ResolveOrCreate resolves a material spec to a catalog entry. Lookup
// order: exact display name, then alias, then normalized name against
// both. If nothing matches, a new material is created from the spec's
// geometry; missing geometry on a new material is a validation error.
func (s *CatalogService) ResolveOrCreate(ctx context.Context, spec MaterialSpec) (*repository.Material, error) {
	text := strings.TrimSpace(spec.SpecText)
	if text == "" {
		return nil, errors.Validation(map[string]string{"spec_text": "this field is required"})
	}

	if mat, err := s.materials.GetByDisplayName(ctx, text); err == nil {
		return mat, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if mat, err := s.materials.GetByAlias(ctx, text); err == nil {
		return mat, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	normalized := NormalizeSpecText(text)
	if normalized != text {
		if mat, err := s.materials.GetByDisplayName(ctx, normalized); err == nil {
			return mat, nil
		} else if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		if mat, err := s.materials.GetByAlias(ctx, normalized); err == nil {
			return mat, nil
		} else if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}

	details := map[string]string{}
	if spec.Shape == "" {
		details["shape"] = "required to create a new material"
	}
	if !spec.DiameterMM.IsPositive() {
		details["diameter_mm"] = "required to create a new material"
	}
	if !spec.DensityGCM3.IsPositive() {
		details["density_gcm3"] = "required to create a new material"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	mat := &repository.Material{
		DisplayName: normalized,
		Shape:       spec.Shape,
		DiameterMM:  spec.DiameterMM,
		DensityGCM3: spec.DensityGCM3,
		IsActive:    true,
	}
	if err := s.createMaterial(ctx, mat); err != nil {
		return nil, err
	}

	// Remember the original spelling so the next delivery with the
	// same spec text resolves without the normalization step.
	if normalized != text {
		if _, err := s.materials.AddAlias(ctx, mat.ID, text); err != nil {
			s.logger.Warn().Err(err).Str("material_id", mat.ID).Msg("failed to register spec text alias")
		}
	}

	s.logger.Info().
		Str("material_id", mat.ID).
		Str("display_name", mat.DisplayName).
		Msg("material created from unresolved spec")

	return mat, nil
}

// CreateMaterial creates a catalog entry after validating its geometry
func (s *CatalogService) CreateMaterial(ctx context.Context, mat *repository.Material) error {
	return s.createMaterial(ctx, mat)
}

func (s *CatalogService) createMaterial(ctx context.Context, mat *repository.Material) error {
	g := conversion.Geometry{
		Shape:       mat.Shape,
		DiameterMM:  mat.DiameterMM,
		LengthMM:    decimal.NewFromInt(1), // length is per-item, not per-material
		DensityGCM3: mat.DensityGCM3,
	}
	if err := g.Validate(); err != nil {
		return err
	}

	if err := s.materials.Create(ctx, mat); err != nil {
		return err
	}

	s.writeAudit(ctx, "material", mat.ID, repository.AuditActionCreate, mat)
	return nil
}

// GetMaterial gets a material by ID
func (s *CatalogService) GetMaterial(ctx context.Context, id string) (*repository.Material, error) {
	return s.materials.GetByID(ctx, id)
}

// ListMaterials lists catalog entries
func (s *CatalogService) ListMaterials(ctx context.Context, activeOnly bool) ([]*repository.Material, error) {
	return s.materials.List(ctx, activeOnly)
}

// UpdateMaterial updates a material's descriptive fields
func (s *CatalogService) UpdateMaterial(ctx context.Context, mat *repository.Material) error {
	if err := s.materials.Update(ctx, mat); err != nil {
		return err
	}

	s.writeAudit(ctx, "material", mat.ID, repository.AuditActionUpdate, mat)
	return nil
}

// DeactivateMaterial soft-deactivates a catalog entry. Materials are
// never hard-deleted: existing lots keep referencing them.
func (s *CatalogService) DeactivateMaterial(ctx context.Context, id string) error {
	mat, err := s.materials.GetByID(ctx, id)
	if err != nil {
		return err
	}

	mat.IsActive = false
	return s.UpdateMaterial(ctx, mat)
}

// UpdateDensity appends a density history record and mirrors the new
// value onto the material row. Existing items' stored weights are not
// recomputed; the new density applies to movements from now on.
func (s *CatalogService) UpdateDensity(ctx context.Context, materialID string, density decimal.Decimal, effectiveDate time.Time) error {
	if !density.IsPositive() {
		return errors.InvalidGeometry("density_gcm3", "must be greater than 0")
	}

	act := actor.FromContext(ctx)

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return s.materials.UpdateDensityTx(ctx, tx, materialID, density, effectiveDate, act.ID)
	})
	if err != nil {
		return err
	}

	s.writeAudit(ctx, "material", materialID, repository.AuditActionUpdate, map[string]string{
		"density_gcm3":   density.String(),
		"effective_date": effectiveDate.Format(time.RFC3339),
	})

	s.logger.Info().
		Str("material_id", materialID).
		Str("density_gcm3", density.String()).
		Msg("material density updated")

	return nil
}

// AddAlias registers an alternate spelling for a material
func (s *CatalogService) AddAlias(ctx context.Context, materialID, alias string) (*repository.MaterialAlias, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, errors.Validation(map[string]string{"alias": "this field is required"})
	}

	if _, err := s.materials.GetByID(ctx, materialID); err != nil {
		return nil, err
	}

	return s.materials.AddAlias(ctx, materialID, alias)
}

// ListAliases lists a material's aliases
func (s *CatalogService) ListAliases(ctx context.Context, materialID string) ([]*repository.MaterialAlias, error) {
	return s.materials.ListAliases(ctx, materialID)
}

// ListDensityHistory lists a material's density records, newest first
func (s *CatalogService) ListDensityHistory(ctx context.Context, materialID string) ([]*repository.DensityRecord, error) {
	return s.materials.ListDensityHistory(ctx, materialID)
}

func (s *CatalogService) writeAudit(ctx context.Context, entityType, entityID, action string, detail interface{}) {
	act := actor.FromContext(ctx)

	payload, err := json.Marshal(detail)
	if err != nil {
		payload = nil
	}

	entry := &repository.AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Detail:     payload,
		ActorID:    act.ID,
		ActorName:  optionalName(act),
	}

	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("entity_id", entityID).Msg("failed to write audit entry")
	}
}

func optionalName(a actor.Actor) *string {
	if a.Name == "" {
		return nil
	}
	name := a.Name
	return &name
}
