package service

import (
	"context"
	"io"

	"github.com/barstock/barstock-backend/internal/inventory/importer"
	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// OrderService manages purchase order lines, the structured input the
// receiving workflow consumes
type OrderService struct {
	db     *database.DB
	orders *repository.PurchaseOrderRepository
	logger *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(db *database.DB, orders *repository.PurchaseOrderRepository, log *logger.Logger) *OrderService {
	return &OrderService{
		db:     db,
		orders: orders,
		logger: log.WithComponent("orders"),
	}
}

// CreateOrderItem creates a single purchase order line
func (s *OrderService) CreateOrderItem(ctx context.Context, po *repository.PurchaseOrderItem) error {
	if po.QuantityPieces <= 0 {
		return errors.Validation(map[string]string{"quantity_pieces": "must be greater than 0"})
	}
	if po.SpecText == "" {
		return errors.Validation(map[string]string{"spec_text": "this field is required"})
	}
	if po.OrderRef == "" {
		return errors.Validation(map[string]string{"order_ref": "this field is required"})
	}

	return s.orders.Create(ctx, po)
}

// ImportSpreadsheet parses an uploaded xlsx workbook and creates all
// its purchase order lines in one transaction
func (s *OrderService) ImportSpreadsheet(ctx context.Context, r io.Reader) ([]*repository.PurchaseOrderItem, error) {
	items, err := importer.ParseOrderSheet(r)
	if err != nil {
		return nil, err
	}

	if err := s.orders.CreateBatch(ctx, items); err != nil {
		return nil, err
	}

	s.logger.Info().Int("count", len(items)).Msg("purchase order lines imported")
	return items, nil
}

// GetOrderItem gets a purchase order line by ID
func (s *OrderService) GetOrderItem(ctx context.Context, id string) (*repository.PurchaseOrderItem, error) {
	return s.orders.GetByID(ctx, id)
}

// ListOrderItems lists purchase order lines, optionally filtered by
// status
func (s *OrderService) ListOrderItems(ctx context.Context, status string) ([]*repository.PurchaseOrderItem, error) {
	return s.orders.List(ctx, status)
}

// CancelOrderItem cancels an open purchase order line
func (s *OrderService) CancelOrderItem(ctx context.Context, id string) error {
	return s.orders.Cancel(ctx, id)
}
