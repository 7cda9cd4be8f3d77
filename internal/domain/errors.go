package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrMarketNotFound       = errors.New("market_not_found")
	ErrMarketAlreadyExists  = errors.New("market_already_exists")
	ErrTraderNotFound       = errors.New("trader_not_found")
	ErrTraderAlreadyExists  = errors.New("trader_already_exists")
	ErrShoutNotFound        = errors.New("shout_not_found")
	ErrShoutNotWithdrawable = errors.New("shout_not_withdrawable")
	ErrDuplicateShout       = errors.New("duplicate_shout")
	ErrIllegalShoutState    = errors.New("illegal_shout_state")
	ErrTransactionNotFound  = errors.New("transaction_not_found")
	ErrTransactionDesync    = errors.New("transaction_queue_desync")
	ErrMarketHalted         = errors.New("market_halted")
)

// ValidationError represents a malformed request or shout. Always locally
// recoverable by the submitter.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RejectionReason is a machine-readable code for an accepting-policy
// rejection.
type RejectionReason string

const (
	ReasonOverQuote                 RejectionReason = "over_quote"
	ReasonOverSelf                  RejectionReason = "over_self"
	ReasonBelowEquilibriumEstimate  RejectionReason = "below_equilibrium_estimate"
	ReasonBelowProbabilityThreshold RejectionReason = "below_probability_threshold"
	ReasonNeverAccepting            RejectionReason = "never_accepting"
)

// RejectionError reports that a shout failed an accepting-policy rule.
// The submitter can always recover by retrying with a better shout.
type RejectionError struct {
	Reason  RejectionReason
	Message string
}

func (e *RejectionError) Error() string {
	return string(e.Reason) + ": " + e.Message
}
