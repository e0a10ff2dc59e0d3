package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketReader is the marketplace read API.
// A throttled call returns a *RateLimitError.
type MarketReader interface {
	SecondaryMarket(ctx context.Context, filter Filter) ([]LoanSnapshot, error)
	Investments(ctx context.Context, filter Filter) ([]LoanSnapshot, error)
}

// MarketWriter is the marketplace write API.
// err is only set when no HTTP response was received.
type MarketWriter interface {
	Bid(ctx context.Context, auctionIDs []string, amount decimal.Decimal) (SubmitResponse, error)
	Buy(ctx context.Context, ids []string) (SubmitResponse, error)
	Sell(ctx context.Context, quotes []PriceQuote) (SubmitResponse, error)
	Cancel(ctx context.Context, ids []string) (SubmitResponse, error)
}

// Marketplace is the full remote trading API.
type Marketplace interface {
	MarketReader
	MarketWriter
}

// EventFeed defines the interface for inbound event connectors
type EventFeed interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}
