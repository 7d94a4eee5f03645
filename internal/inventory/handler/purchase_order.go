package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/internal/inventory/service"
	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/httputil"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// maxImportSize caps uploaded workbook size at 10 MiB
const maxImportSize = 10 << 20

// PurchaseOrderHandler handles purchase order line endpoints
type PurchaseOrderHandler struct {
	orders *service.OrderService
	logger *logger.Logger
}

// NewPurchaseOrderHandler creates a new purchase order handler
func NewPurchaseOrderHandler(orders *service.OrderService, log *logger.Logger) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		orders: orders,
		logger: log,
	}
}

// CreateOrderItemRequest is the request body for creating an order line
type CreateOrderItemRequest struct {
	OrderRef       string           `json:"order_ref" validate:"required"`
	SpecText       string           `json:"spec_text" validate:"required"`
	QuantityPieces int              `json:"quantity_pieces" validate:"required,gt=0"`
	LengthMM       *decimal.Decimal `json:"length_mm,omitempty"`
	UnitPriceCents *int64           `json:"unit_price_cents,omitempty"`
	Currency       string           `json:"currency,omitempty"`
}

func (h *PurchaseOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	po := &repository.PurchaseOrderItem{
		OrderRef:       req.OrderRef,
		SpecText:       req.SpecText,
		QuantityPieces: req.QuantityPieces,
		LengthMM:       req.LengthMM,
		UnitPriceCents: req.UnitPriceCents,
		Currency:       req.Currency,
	}
	if err := h.orders.CreateOrderItem(r.Context(), po); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, po)
}

// Import handles a multipart xlsx upload under the "file" field
func (h *PurchaseOrderHandler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		httputil.Error(w, errors.BadRequest("expected a multipart form upload"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, errors.BadRequest("missing file field"))
		return
	}
	defer file.Close()

	items, err := h.orders.ImportSpreadsheet(r.Context(), file)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, items)
}

func (h *PurchaseOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	po, err := h.orders.GetOrderItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, po)
}

func (h *PurchaseOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	items, err := h.orders.ListOrderItems(r.Context(), status)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, items)
}

func (h *PurchaseOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orders.CancelOrderItem(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
