package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/config"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// QueryService is the read-only side of the inventory: stock
// summaries, low-stock lists, equivalence grouping, and item history.
// It reads the committed item totals, so it reflects every movement
// the ledger has applied.
type QueryService struct {
	items     *repository.ItemRepository
	movements *repository.MovementRepository
	materials *repository.MaterialRepository
	cfg       config.InventoryConfig
	logger    *logger.Logger
}

// NewQueryService creates a new query service
func NewQueryService(items *repository.ItemRepository, movements *repository.MovementRepository, materials *repository.MaterialRepository, cfg config.InventoryConfig, log *logger.Logger) *QueryService {
	return &QueryService{
		items:     items,
		movements: movements,
		materials: materials,
		cfg:       cfg,
		logger:    log.WithComponent("query"),
	}
}

// EquivalentGroup aggregates the stock of materials sharing an
// equivalence group
type EquivalentGroup struct {
	Group         string                 `json:"group"`
	TotalPieces   int                    `json:"total_pieces"`
	TotalWeightKg decimal.Decimal        `json:"total_weight_kg"`
	Rows          []*repository.StockRow `json:"rows"`
}

// StockSummary returns the current stock, optionally filtered by
// material
func (s *QueryService) StockSummary(ctx context.Context, materialID string) ([]*repository.StockRow, error) {
	return s.items.ListStock(ctx, materialID)
}

// LowStock returns items at or below the piece threshold. A
// non-positive threshold falls back to the configured default.
func (s *QueryService) LowStock(ctx context.Context, thresholdPieces int) ([]*repository.StockRow, error) {
	if thresholdPieces <= 0 {
		thresholdPieces = s.cfg.LowStockPieces
	}
	return s.items.ListLowStock(ctx, thresholdPieces)
}

// EquivalentGroups groups current stock by material equivalence group.
// Materials without a group are omitted: they are equivalent to
// nothing.
func (s *QueryService) EquivalentGroups(ctx context.Context) ([]*EquivalentGroup, error) {
	rows, err := s.items.ListStock(ctx, "")
	if err != nil {
		return nil, err
	}

	byGroup := map[string]*EquivalentGroup{}
	var order []string

	for _, row := range rows {
		if row.EquivalenceGroup == nil || *row.EquivalenceGroup == "" {
			continue
		}
		key := *row.EquivalenceGroup

		grp, ok := byGroup[key]
		if !ok {
			grp = &EquivalentGroup{Group: key, TotalWeightKg: decimal.Zero}
			byGroup[key] = grp
			order = append(order, key)
		}

		grp.Rows = append(grp.Rows, row)
		grp.TotalPieces += row.CurrentPieces
		grp.TotalWeightKg = grp.TotalWeightKg.Add(row.CurrentWeightKg)
	}

	groups := make([]*EquivalentGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, byGroup[key])
	}

	return groups, nil
}

// ItemHistory returns an item's movements in ledger order
func (s *QueryService) ItemHistory(ctx context.Context, itemID string) (*repository.Item, []*repository.Movement, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	movements, err := s.movements.ListByItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	return item, movements, nil
}

// GetItem gets an item by ID
func (s *QueryService) GetItem(ctx context.Context, id string) (*repository.Item, error) {
	return s.items.GetByID(ctx, id)
}

// GetItemByIdentifier gets an item by its human-facing identifier
func (s *QueryService) GetItemByIdentifier(ctx context.Context, identifier string) (*repository.Item, error) {
	return s.items.GetByIdentifier(ctx, identifier)
}
