package service

import (
	"context"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// LocationService manages storage locations and item placement
type LocationService struct {
	locations *repository.LocationRepository
	items     *repository.ItemRepository
	logger    *logger.Logger
}

// NewLocationService creates a new location service
func NewLocationService(locations *repository.LocationRepository, items *repository.ItemRepository, log *logger.Logger) *LocationService {
	return &LocationService{
		locations: locations,
		items:     items,
		logger:    log.WithComponent("locations"),
	}
}

// CreateLocation creates a storage location
func (s *LocationService) CreateLocation(ctx context.Context, loc *repository.Location) error {
	if loc.Name == "" {
		return errors.Validation(map[string]string{"name": "this field is required"})
	}
	return s.locations.Create(ctx, loc)
}

// GetLocation gets a location by ID
func (s *LocationService) GetLocation(ctx context.Context, id string) (*repository.Location, error) {
	return s.locations.GetByID(ctx, id)
}

// ListLocations lists storage locations
func (s *LocationService) ListLocations(ctx context.Context, activeOnly bool) ([]*repository.Location, error) {
	return s.locations.List(ctx, activeOnly)
}

// UpdateLocation updates a storage location
func (s *LocationService) UpdateLocation(ctx context.Context, loc *repository.Location) error {
	return s.locations.Update(ctx, loc)
}

// AssignItem places an item at a location. A nil locationID clears the
// assignment.
func (s *LocationService) AssignItem(ctx context.Context, itemID string, locationID *string) error {
	if locationID != nil {
		loc, err := s.locations.GetByID(ctx, *locationID)
		if err != nil {
			return err
		}
		if !loc.IsActive {
			return errors.InvalidState("location is not active")
		}
	}

	return s.items.SetLocation(ctx, itemID, locationID)
}
