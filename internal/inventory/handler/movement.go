package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/internal/inventory/service"
	"github.com/barstock/barstock-backend/pkg/httputil"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// MovementHandler handles stock movement endpoints
type MovementHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(ledger *service.LedgerService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		ledger: ledger,
		logger: log,
	}
}

// RecordMovementRequest is the request body for recording a movement.
// Exactly one of piece_delta and weight_delta_kg must be set.
type RecordMovementRequest struct {
	ItemID        string           `json:"item_id" validate:"required,uuid"`
	MovementType  string           `json:"movement_type" validate:"required,oneof=in out return adjustment"`
	PieceDelta    *int             `json:"piece_delta,omitempty"`
	WeightDeltaKg *decimal.Decimal `json:"weight_delta_kg,omitempty"`
	Note          *string          `json:"note,omitempty"`
}

// EditMovementRequest is the request body for editing a movement
type EditMovementRequest struct {
	PieceDelta    *int             `json:"piece_delta,omitempty"`
	WeightDeltaKg *decimal.Decimal `json:"weight_delta_kg,omitempty"`
	Note          *string          `json:"note,omitempty"`
}

func (h *MovementHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordMovementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	mv, err := h.ledger.RecordMovement(r.Context(), service.RecordMovementInput{
		ItemID:        req.ItemID,
		MovementType:  req.MovementType,
		PieceDelta:    req.PieceDelta,
		WeightDeltaKg: req.WeightDeltaKg,
		Note:          req.Note,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, mv)
}

func (h *MovementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mv, err := h.ledger.GetMovement(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, mv)
}

func (h *MovementHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EditMovementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	mv, err := h.ledger.EditMovement(r.Context(), service.EditMovementInput{
		MovementID:    id,
		PieceDelta:    req.PieceDelta,
		WeightDeltaKg: req.WeightDeltaKg,
		Note:          req.Note,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, mv)
}

func (h *MovementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ledger.DeleteMovement(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
