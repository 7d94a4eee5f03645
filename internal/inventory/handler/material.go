package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/internal/inventory/service"
	"github.com/barstock/barstock-backend/pkg/httputil"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// MaterialHandler handles material catalog endpoints
type MaterialHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewMaterialHandler creates a new material handler
func NewMaterialHandler(catalog *service.CatalogService, log *logger.Logger) *MaterialHandler {
	return &MaterialHandler{
		catalog: catalog,
		logger:  log,
	}
}

// CreateMaterialRequest is the request body for creating a material
type CreateMaterialRequest struct {
	DisplayName      string          `json:"display_name" validate:"required"`
	Shape            string          `json:"shape" validate:"required,oneof=round hex square"`
	DiameterMM       decimal.Decimal `json:"diameter_mm" validate:"required"`
	DensityGCM3      decimal.Decimal `json:"density_gcm3" validate:"required"`
	PartNumber       *string         `json:"part_number,omitempty"`
	EquivalenceGroup *string         `json:"equivalence_group,omitempty"`
}

// UpdateDensityRequest is the request body for a density update
type UpdateDensityRequest struct {
	DensityGCM3   decimal.Decimal `json:"density_gcm3" validate:"required"`
	EffectiveDate *time.Time      `json:"effective_date,omitempty"`
}

// AddAliasRequest is the request body for registering an alias
type AddAliasRequest struct {
	Alias string `json:"alias" validate:"required"`
}

func (h *MaterialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMaterialRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	mat := &repository.Material{
		DisplayName:      req.DisplayName,
		Shape:            req.Shape,
		DiameterMM:       req.DiameterMM,
		DensityGCM3:      req.DensityGCM3,
		PartNumber:       req.PartNumber,
		EquivalenceGroup: req.EquivalenceGroup,
		IsActive:         true,
	}
	if err := h.catalog.CreateMaterial(r.Context(), mat); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, mat)
}

func (h *MaterialHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mat, err := h.catalog.GetMaterial(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, mat)
}

func (h *MaterialHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") != "true"

	materials, err := h.catalog.ListMaterials(r.Context(), activeOnly)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, materials)
}

func (h *MaterialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	mat, err := h.catalog.GetMaterial(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req struct {
		DisplayName      *string `json:"display_name,omitempty"`
		PartNumber       *string `json:"part_number,omitempty"`
		EquivalenceGroup *string `json:"equivalence_group,omitempty"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if req.DisplayName != nil {
		mat.DisplayName = *req.DisplayName
	}
	if req.PartNumber != nil {
		mat.PartNumber = req.PartNumber
	}
	if req.EquivalenceGroup != nil {
		mat.EquivalenceGroup = req.EquivalenceGroup
	}

	if err := h.catalog.UpdateMaterial(r.Context(), mat); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, mat)
}

func (h *MaterialHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.DeactivateMaterial(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *MaterialHandler) UpdateDensity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateDensityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	effective := time.Now()
	if req.EffectiveDate != nil {
		effective = *req.EffectiveDate
	}

	if err := h.catalog.UpdateDensity(r.Context(), id, req.DensityGCM3, effective); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *MaterialHandler) ListDensityHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	records, err := h.catalog.ListDensityHistory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, records)
}

func (h *MaterialHandler) AddAlias(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AddAliasRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	alias, err := h.catalog.AddAlias(r.Context(), id, req.Alias)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, alias)
}

func (h *MaterialHandler) ListAliases(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	aliases, err := h.catalog.ListAliases(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, aliases)
}
