package service

import (
	"regexp"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/store"
)

var traderIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// RegisterTraderRequest represents the input for trader registration.
type RegisterTraderRequest struct {
	TraderID    string
	Role        string
	Valuation   float64
	Entitlement int64
}

// TraderService handles trader registration and lookup.
type TraderService struct {
	traders *store.TraderStore
}

// NewTraderService creates a new TraderService.
func NewTraderService(traders *store.TraderStore) *TraderService {
	return &TraderService{traders: traders}
}

// Register validates the request and registers the trader.
func (s *TraderService) Register(req RegisterTraderRequest) (*domain.Trader, error) {
	if !traderIDRegex.MatchString(req.TraderID) {
		return nil, &domain.ValidationError{
			Message: "trader_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	role := domain.TraderRole(req.Role)
	if role != domain.TraderRoleBuyer && role != domain.TraderRoleSeller {
		return nil, &domain.ValidationError{
			Message: "role must be 'buyer' or 'seller'",
		}
	}
	if req.Valuation < 0 {
		return nil, &domain.ValidationError{
			Message: "valuation must be >= 0",
		}
	}
	if req.Entitlement < 1 {
		return nil, &domain.ValidationError{
			Message: "entitlement must be >= 1",
		}
	}

	t := &domain.Trader{
		TraderID:    req.TraderID,
		Role:        role,
		Valuation:   req.Valuation,
		Entitlement: req.Entitlement,
	}
	if err := s.traders.Create(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get retrieves a trader by id.
func (s *TraderService) Get(id string) (*domain.Trader, error) {
	return s.traders.Get(id)
}
