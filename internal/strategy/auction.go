package strategy

import (
	"bondora_go/internal/domain"

	"github.com/shopspring/decimal"
)

// AuctionConfig gates primary-market bidding.
type AuctionConfig struct {
	Enabled   bool            `yaml:"enabled"`
	BidAmount decimal.Decimal `yaml:"bid_amount"`
}

// DefaultAuctionConfig keeps bidding off.
func DefaultAuctionConfig() AuctionConfig {
	return AuctionConfig{
		Enabled:   false,
		BidAmount: decimal.NewFromInt(5),
	}
}

// AuctionBidStrategy bids a fixed amount on every published auction when enabled.
// There is no price discovery.
type AuctionBidStrategy struct {
	cfg AuctionConfig
}

// NewAuctionBidStrategy creates a new instance.
func NewAuctionBidStrategy(cfg AuctionConfig) *AuctionBidStrategy {
	return &AuctionBidStrategy{cfg: cfg}
}

func (a *AuctionBidStrategy) ID() domain.StrategyID {
	return domain.StrategyAuctionBid
}

// BidAmount is the fixed amount placed on each auction.
func (a *AuctionBidStrategy) BidAmount() decimal.Decimal {
	return a.cfg.BidAmount
}

// Evaluate returns an eligible verdict for the auction when bidding is enabled.
func (a *AuctionBidStrategy) Evaluate(auction *domain.AuctionSnapshot) domain.Verdict {
	if !a.cfg.Enabled {
		return domain.Verdict{Strategy: a.ID(), Reason: "disabled"}
	}
	if auction == nil {
		return reject(a.ID(), "snapshot", domain.MissingField("Payload"))
	}
	if auction.AuctionID == "" {
		return reject(a.ID(), "target", domain.MissingField("AuctionId"))
	}
	return domain.Verdict{Eligible: true, Strategy: a.ID(), TargetIDs: []string{auction.AuctionID}, Amount: a.BidAmount()}
}
