package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/internal/inventory/service"
	"github.com/barstock/barstock-backend/pkg/httputil"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// LocationHandler handles storage location endpoints
type LocationHandler struct {
	locations *service.LocationService
	logger    *logger.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locations *service.LocationService, log *logger.Logger) *LocationHandler {
	return &LocationHandler{
		locations: locations,
		logger:    log,
	}
}

// CreateLocationRequest is the request body for creating a location
type CreateLocationRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
}

// AssignItemRequest is the request body for placing an item. A null
// location_id clears the assignment.
type AssignItemRequest struct {
	LocationID *string `json:"location_id"`
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	loc := &repository.Location{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := h.locations.CreateLocation(r.Context(), loc); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, loc)
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	loc, err := h.locations.GetLocation(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") != "true"

	locations, err := h.locations.ListLocations(r.Context(), activeOnly)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, locations)
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loc, err := h.locations.GetLocation(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req struct {
		Name        *string `json:"name,omitempty"`
		Description *string `json:"description,omitempty"`
		IsActive    *bool   `json:"is_active,omitempty"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if req.Name != nil {
		loc.Name = *req.Name
	}
	if req.Description != nil {
		loc.Description = req.Description
	}
	if req.IsActive != nil {
		loc.IsActive = *req.IsActive
	}

	if err := h.locations.UpdateLocation(r.Context(), loc); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) AssignItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req AssignItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.locations.AssignItem(r.Context(), itemID, req.LocationID); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
