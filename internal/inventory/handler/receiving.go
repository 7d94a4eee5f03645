package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/internal/inventory/service"
	"github.com/barstock/barstock-backend/pkg/httputil"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// ReceivingHandler handles the receiving workflow endpoints
type ReceivingHandler struct {
	receiving *service.ReceivingService
	logger    *logger.Logger
}

// NewReceivingHandler creates a new receiving handler
func NewReceivingHandler(receiving *service.ReceivingService, log *logger.Logger) *ReceivingHandler {
	return &ReceivingHandler{
		receiving: receiving,
		logger:    log,
	}
}

// ReceivingItemRequest is one item spec within a receiving confirmation
type ReceivingItemRequest struct {
	LengthMM decimal.Decimal `json:"length_mm" validate:"required"`
	Pieces   int             `json:"pieces" validate:"required,gt=0"`
}

// ConfirmReceivingRequest is the request body for confirming a receiving
type ConfirmReceivingRequest struct {
	PurchaseOrderItemID *string                `json:"purchase_order_item_id,omitempty"`
	SpecText            string                 `json:"spec_text" validate:"required"`
	Shape               string                 `json:"shape,omitempty" validate:"omitempty,oneof=round hex square"`
	DiameterMM          decimal.Decimal        `json:"diameter_mm,omitempty"`
	DensityGCM3         decimal.Decimal        `json:"density_gcm3,omitempty"`
	LotNumber           *string                `json:"lot_number,omitempty"`
	ReceivedDate        *time.Time             `json:"received_date,omitempty"`
	UnitPriceCents      *int64                 `json:"unit_price_cents,omitempty"`
	Items               []ReceivingItemRequest `json:"items" validate:"required,min=1,dive"`
}

// InspectionRequest is the request body for recording an inspection
type InspectionRequest struct {
	Status string `json:"status" validate:"required,oneof=passed failed"`
}

// ReceivingResponse pairs the lot with the items it created
type ReceivingResponse struct {
	Lot   *repository.Lot    `json:"lot"`
	Items []*repository.Item `json:"items"`
}

func (h *ReceivingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmReceivingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := service.ConfirmReceivingInput{
		PurchaseOrderItemID: req.PurchaseOrderItemID,
		Material: service.MaterialSpec{
			SpecText:    req.SpecText,
			Shape:       req.Shape,
			DiameterMM:  req.DiameterMM,
			DensityGCM3: req.DensityGCM3,
		},
		LotNumber:      req.LotNumber,
		UnitPriceCents: req.UnitPriceCents,
	}
	if req.ReceivedDate != nil {
		input.ReceivedDate = *req.ReceivedDate
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.ItemSpec{
			LengthMM: item.LengthMM,
			Pieces:   item.Pieces,
		})
	}

	lot, items, err := h.receiving.ConfirmReceiving(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, ReceivingResponse{Lot: lot, Items: items})
}

func (h *ReceivingHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	var req InspectionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.receiving.SetInspectionStatus(r.Context(), lotID, req.Status)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lot)
}

func (h *ReceivingHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lot, err := h.receiving.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lot)
}

func (h *ReceivingHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	materialID := r.URL.Query().Get("material_id")
	status := r.URL.Query().Get("inspection_status")

	lots, total, err := h.receiving.ListLots(r.Context(), materialID, status, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, lots, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

func (h *ReceivingHandler) ListLotItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	items, err := h.receiving.ListLotItems(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, items)
}
