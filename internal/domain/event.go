package domain

// EventType identifies the kind of marketplace notification.
type EventType string

const (
	EventAuctionPublished      EventType = "auction.published"
	EventSecondMarketPublished EventType = "secondmarket.published"
	EventSecondMarketUpdated   EventType = "secondmarket.updated"
)

// MarketEvent is one inbound marketplace notification.
// Exactly one of Loan or Auction is set for known types; both may be nil when the payload was absent.
type MarketEvent struct {
	Type    EventType
	Loan    *LoanSnapshot
	Auction *AuctionSnapshot
}
