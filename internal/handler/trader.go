package handler

import (
	"net/http"

	"auctionhouse/internal/service"
	"github.com/go-chi/chi/v5"
)

// TraderHandler handles HTTP requests for trader endpoints.
type TraderHandler struct {
	traderSvc *service.TraderService
}

// NewTraderHandler creates a new TraderHandler.
func NewTraderHandler(traderSvc *service.TraderService) *TraderHandler {
	return &TraderHandler{traderSvc: traderSvc}
}

// registerTraderRequest is the JSON request body for POST /traders.
type registerTraderRequest struct {
	TraderID    string  `json:"trader_id"`
	Role        string  `json:"role"`
	Valuation   float64 `json:"valuation"`
	Entitlement int64   `json:"entitlement"`
}

// traderResponse is the JSON response for trader endpoints.
type traderResponse struct {
	TraderID    string  `json:"trader_id"`
	Role        string  `json:"role"`
	Valuation   float64 `json:"valuation"`
	Entitlement int64   `json:"entitlement"`
}

// Register handles POST /traders.
func (h *TraderHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerTraderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	t, err := h.traderSvc.Register(service.RegisterTraderRequest{
		TraderID:    req.TraderID,
		Role:        req.Role,
		Valuation:   req.Valuation,
		Entitlement: req.Entitlement,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, traderResponse{
		TraderID:    t.TraderID,
		Role:        string(t.Role),
		Valuation:   t.Valuation,
		Entitlement: t.Entitlement,
	})
}

// Get handles GET /traders/{trader_id}.
func (h *TraderHandler) Get(w http.ResponseWriter, r *http.Request) {
	traderID := chi.URLParam(r, "trader_id")

	t, err := h.traderSvc.Get(traderID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, traderResponse{
		TraderID:    t.TraderID,
		Role:        string(t.Role),
		Valuation:   t.Valuation,
		Entitlement: t.Entitlement,
	})
}
