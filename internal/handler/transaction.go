package handler

import (
	"net/http"
	"strconv"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/service"
	"github.com/go-chi/chi/v5"
)

// TransactionHandler handles settlement outcome notifications.
type TransactionHandler struct {
	marketSvc *service.MarketService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(marketSvc *service.MarketService) *TransactionHandler {
	return &TransactionHandler{marketSvc: marketSvc}
}

// outcomeRequest is the JSON request body for
// POST /markets/{market_id}/transactions/{tx_id}/outcome.
type outcomeRequest struct {
	Outcome string `json:"outcome"`
}

// transactionResponse is the JSON response for transaction endpoints.
type transactionResponse struct {
	TransactionID uint64  `json:"transaction_id"`
	MarketID      string  `json:"market_id"`
	BuyerID       string  `json:"buyer_id"`
	SellerID      string  `json:"seller_id"`
	Price         float64 `json:"price"`
	Quantity      int64   `json:"quantity"`
	State         string  `json:"state"`
	CreatedAt     string  `json:"created_at"`
	ResolvedAt    *string `json:"resolved_at"`
}

// NotifyOutcome handles POST /markets/{market_id}/transactions/{tx_id}/outcome.
func (h *TransactionHandler) NotifyOutcome(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market_id")

	txID, err := strconv.ParseUint(chi.URLParam(r, "tx_id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "tx_id must be a positive integer")
		return
	}

	var req outcomeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	tx, err := h.marketSvc.NotifyOutcome(marketID, txID, req.Outcome)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildTransactionResponse(tx))
}

// buildTransactionResponse converts a domain transaction to its response form.
func buildTransactionResponse(tx *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		TransactionID: tx.ID,
		MarketID:      tx.MarketID,
		BuyerID:       tx.Bid.TraderID,
		SellerID:      tx.Ask.TraderID,
		Price:         tx.Price,
		Quantity:      tx.Quantity,
		State:         string(tx.State),
		CreatedAt:     tx.CreatedAt.UTC().Format(time.RFC3339),
	}
	if tx.ResolvedAt != nil {
		s := tx.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &s
	}
	return resp
}
