package handler

import (
	"errors"
	"net/http"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/service"
	"github.com/go-chi/chi/v5"
)

// ShoutHandler handles HTTP requests for shout endpoints.
type ShoutHandler struct {
	marketSvc *service.MarketService
}

// NewShoutHandler creates a new ShoutHandler.
func NewShoutHandler(marketSvc *service.MarketService) *ShoutHandler {
	return &ShoutHandler{marketSvc: marketSvc}
}

// submitShoutRequest is the JSON request body for POST /markets/{market_id}/shouts.
type submitShoutRequest struct {
	TraderID string  `json:"trader_id"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// shoutResponse is the JSON response for shout endpoints.
type shoutResponse struct {
	ShoutID  string  `json:"shout_id"`
	TraderID string  `json:"trader_id"`
	MarketID string  `json:"market_id"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	State    string  `json:"state"`
}

// Submit handles POST /markets/{market_id}/shouts.
func (h *ShoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market_id")

	var req submitShoutRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	shout, err := h.marketSvc.SubmitShout(marketID, service.SubmitShoutRequest{
		TraderID: req.TraderID,
		Side:     req.Side,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		// A policy rejection still carries the shout, now in the
		// rejected state; report it alongside the 422.
		var rejectionErr *domain.RejectionError
		if errors.As(err, &rejectionErr) && shout != nil {
			WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   string(rejectionErr.Reason),
				"message": rejectionErr.Message,
				"shout":   buildShoutResponse(shout),
			})
			return
		}
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildShoutResponse(shout))
}

// Withdraw handles DELETE /markets/{market_id}/shouts/{shout_id}.
func (h *ShoutHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market_id")
	shoutID := chi.URLParam(r, "shout_id")

	if err := h.marketSvc.WithdrawShout(marketID, shoutID); err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"shout_id": shoutID,
		"status":   "withdrawn",
	})
}

// buildShoutResponse converts a domain shout to its response form.
func buildShoutResponse(s *domain.Shout) shoutResponse {
	return shoutResponse{
		ShoutID:  s.ID,
		TraderID: s.TraderID,
		MarketID: s.MarketID,
		Side:     string(s.Side),
		Price:    s.Price,
		Quantity: s.Quantity,
		State:    string(s.State),
	}
}
