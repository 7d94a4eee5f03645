package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/internal/inventory/service"
	"github.com/barstock/barstock-backend/pkg/httputil"
	"github.com/barstock/barstock-backend/pkg/logger"
)

// QueryHandler handles read-only stock and item endpoints
type QueryHandler struct {
	query  *service.QueryService
	logger *logger.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(query *service.QueryService, log *logger.Logger) *QueryHandler {
	return &QueryHandler{
		query:  query,
		logger: log,
	}
}

// ItemHistoryResponse pairs an item with its movement ledger
type ItemHistoryResponse struct {
	Item      *repository.Item       `json:"item"`
	Movements []*repository.Movement `json:"movements"`
}

func (h *QueryHandler) StockSummary(w http.ResponseWriter, r *http.Request) {
	materialID := r.URL.Query().Get("material_id")

	rows, err := h.query.StockSummary(r.Context(), materialID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}

func (h *QueryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, _ := strconv.Atoi(r.URL.Query().Get("threshold"))

	rows, err := h.query.LowStock(r.Context(), threshold)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}

func (h *QueryHandler) EquivalentGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.query.EquivalentGroups(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, groups)
}

func (h *QueryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.query.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

func (h *QueryHandler) GetItemByIdentifier(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	item, err := h.query.GetItemByIdentifier(r.Context(), identifier)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

func (h *QueryHandler) ItemHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, movements, err := h.query.ItemHistory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ItemHistoryResponse{
		Item:      item,
		Movements: movements,
	})
}
