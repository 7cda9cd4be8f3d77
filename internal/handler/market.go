package handler

import (
	"net/http"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/service"
	"github.com/go-chi/chi/v5"
)

// MarketHandler handles HTTP requests for market endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// createMarketRequest is the JSON request body for POST /markets.
// Omitted fields fall back to continuous-double-auction defaults.
type createMarketRequest struct {
	MarketID string  `json:"market_id"`
	Matching string  `json:"matching"`
	Theta    float64 `json:"theta"`

	Accepting     []string `json:"accepting"`
	AcceptingMode string   `json:"accepting_mode"`
	LearningRate  float64  `json:"learning_rate"`
	Delta         float64  `json:"delta"`
	Threshold     float64  `json:"threshold"`
	Window        int      `json:"window"`

	Pricing string  `json:"pricing"`
	K       float64 `json:"k"`
	N       int     `json:"n"`

	Clearing    string  `json:"clearing"`
	Interval    int     `json:"interval"`
	Probability float64 `json:"probability"`
	Seed        int64   `json:"seed"`

	Quoting string `json:"quoting"`

	Charging       string  `json:"charging"`
	ShoutFee       float64 `json:"shout_fee"`
	TransactionFee float64 `json:"transaction_fee"`
	Fraction       float64 `json:"fraction"`
}

// marketResponse is the JSON response for POST /markets.
type marketResponse struct {
	MarketID string `json:"market_id"`
	Status   string `json:"status"`
}

// quoteResponse is the JSON response for GET /markets/{market_id}/quote.
// Sides with no defined quote are null.
type quoteResponse struct {
	Bid *float64 `json:"bid"`
	Ask *float64 `json:"ask"`
	Mid *float64 `json:"mid"`
}

// priceLevelResponse is one aggregated price level in the book snapshot.
type priceLevelResponse struct {
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	ShoutCount int     `json:"shout_count"`
}

// bookResponse is the JSON response for GET /markets/{market_id}/book.
type bookResponse struct {
	Bids []priceLevelResponse `json:"bids"`
	Asks []priceLevelResponse `json:"asks"`
}

// equilibriumResponse is the JSON response for the equilibrium report.
// Price fields are null when no equilibrium exists.
type equilibriumResponse struct {
	Found    bool     `json:"found"`
	MinPrice *float64 `json:"min_price"`
	MaxPrice *float64 `json:"max_price"`
	MidPrice *float64 `json:"mid_price"`
	Quantity int64    `json:"quantity"`
}

// efficiencyResponse is the JSON response for the efficiency report.
// Ratios are null when their denominator is undefined.
type efficiencyResponse struct {
	TheoreticalBuyerSurplus  float64  `json:"theoretical_buyer_surplus"`
	TheoreticalSellerSurplus float64  `json:"theoretical_seller_surplus"`
	ActualSurplus            float64  `json:"actual_surplus"`
	Efficiency               *float64 `json:"efficiency"`
	PriceConvergence         *float64 `json:"price_convergence"`
	ProfitDispersion         float64  `json:"profit_dispersion"`
}

// Create handles POST /markets.
func (h *MarketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	a, err := h.marketSvc.CreateMarket(service.CreateMarketRequest{
		MarketID:       req.MarketID,
		Matching:       req.Matching,
		Theta:          req.Theta,
		Accepting:      req.Accepting,
		AcceptingMode:  req.AcceptingMode,
		LearningRate:   req.LearningRate,
		Delta:          req.Delta,
		Threshold:      req.Threshold,
		Window:         req.Window,
		Pricing:        req.Pricing,
		K:              req.K,
		N:              req.N,
		Clearing:       req.Clearing,
		Interval:       req.Interval,
		Probability:    req.Probability,
		Seed:           req.Seed,
		Quoting:        req.Quoting,
		Charging:       req.Charging,
		ShoutFee:       req.ShoutFee,
		TransactionFee: req.TransactionFee,
		Fraction:       req.Fraction,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, marketResponse{
		MarketID: a.MarketID(),
		Status:   "open",
	})
}

// Close handles POST /markets/{market_id}/close.
func (h *MarketHandler) Close(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market_id")

	if err := h.marketSvc.CloseSession(marketID); err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, marketResponse{
		MarketID: marketID,
		Status:   "closed",
	})
}

// GetQuote handles GET /markets/{market_id}/quote.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market_id")

	quote, err := h.marketSvc.Quote(marketID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildQuoteResponse(quote))
}

// GetBook handles GET /markets/{market_id}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market_id")

	snap, err := h.marketSvc.Book(marketID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := bookResponse{
		Bids: buildLevelResponses(snap.Bids),
		Asks: buildLevelResponses(snap.Asks),
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetEquilibrium handles GET /markets/{market_id}/equilibrium.
func (h *MarketHandler) GetEquilibrium(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market_id")

	eq, err := h.marketSvc.Equilibrium(marketID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := equilibriumResponse{
		Found:    eq.Found,
		Quantity: eq.Quantity,
	}
	if eq.Found {
		minP, maxP, midP := eq.MinPrice, eq.MaxPrice, eq.MidPrice
		resp.MinPrice = &minP
		resp.MaxPrice = &maxP
		resp.MidPrice = &midP
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetEfficiency handles GET /markets/{market_id}/efficiency.
func (h *MarketHandler) GetEfficiency(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market_id")

	report, err := h.marketSvc.Efficiency(marketID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, efficiencyResponse{
		TheoreticalBuyerSurplus:  report.TheoreticalBuyerSurplus,
		TheoreticalSellerSurplus: report.TheoreticalSellerSurplus,
		ActualSurplus:            report.ActualSurplus,
		Efficiency:               report.Efficiency,
		PriceConvergence:         report.PriceConvergence,
		ProfitDispersion:         report.ProfitDispersion,
	})
}

// buildQuoteResponse converts a quote to its JSON form, with null sides
// when the book carries no quote for them.
func buildQuoteResponse(q domain.MarketQuote) quoteResponse {
	var resp quoteResponse
	if q.HasBid() {
		bid := q.Bid
		resp.Bid = &bid
	}
	if q.HasAsk() {
		ask := q.Ask
		resp.Ask = &ask
	}
	if mid, ok := q.Mid(); ok {
		resp.Mid = &mid
	}
	return resp
}

// buildLevelResponses converts service price levels to response levels.
// Always returns a non-nil slice so empty sides encode as [].
func buildLevelResponses(levels []service.PriceLevel) []priceLevelResponse {
	result := make([]priceLevelResponse, len(levels))
	for i, l := range levels {
		result[i] = priceLevelResponse{
			Price:      l.Price,
			Quantity:   l.Quantity,
			ShoutCount: l.ShoutCount,
		}
	}
	return result
}
