package domain

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// StrategyID names a trading strategy.
type StrategyID string

const (
	StrategyAuctionBid StrategyID = "auction_bid"
	StrategyGreenBuy   StrategyID = "green_buy"
	StrategyRedBuy     StrategyID = "red_buy"
	StrategySell       StrategyID = "sell"
	StrategyCancel     StrategyID = "cancel"
)

// Operation names a remote API call for rate-limit bookkeeping.
const (
	OpBid                = "bid"
	OpBuy                = "buy"
	OpSell               = "sell"
	OpCancel             = "cancel"
	OpGetInvestments     = "get_investments"
	OpGetSecondaryMarket = "get_secondarymarket"
)

// Operation returns the write operation a strategy submits through.
func (s StrategyID) Operation() string {
	switch s {
	case StrategyAuctionBid:
		return OpBid
	case StrategyGreenBuy, StrategyRedBuy:
		return OpBuy
	case StrategySell:
		return OpSell
	case StrategyCancel:
		return OpCancel
	default:
		return string(s)
	}
}

// Verdict is the rule evaluator's output. It carries no side effects itself.
type Verdict struct {
	Eligible  bool
	Strategy  StrategyID
	TargetIDs []string
	Reason    string          // first failing condition, or the malformed field
	Malformed bool            // rejected because of missing or unusable input
	Amount    decimal.Decimal // bid amount per target; zero for buys
}

// PriceQuote is the asking price for one loan part.
type PriceQuote struct {
	LoanPartID string
	Price      decimal.Decimal
}

// Outcome classifies an OrderResult.
type Outcome string

const (
	OutcomeSubmitted   Outcome = "submitted"
	OutcomeNothingToDo Outcome = "nothing_to_do"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeRejected    Outcome = "rejected"
	OutcomeFailed      Outcome = "failed"
)

// OrderResult is the outcome of one submission batch.
type OrderResult struct {
	Submitted     bool
	HTTPStatus    int
	AffectedCount int
	Attempts      int
	Outcome       Outcome
}

// SubmitResponse is what the write API reports for one call.
type SubmitResponse struct {
	StatusCode int
	Affected   int
	RetryAfter time.Duration // from the Retry-After header on 429
}

// IsSuccess reports a 2xx status.
func (r SubmitResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRateLimited reports whether the server throttled the call.
func (r SubmitResponse) IsRateLimited() bool {
	return r.StatusCode == http.StatusTooManyRequests
}

// Filter holds query criteria passed through to the marketplace read endpoints.
type Filter map[string]string

// With returns a copy of f with key set to value.
func (f Filter) With(key, value string) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[key] = value
	return out
}
