package bondora

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"bondora_go/internal/domain"
)

// eventMessage is a webhook or stream notification.
type eventMessage struct {
	EventType string          `json:"EventType"`
	Payload   json.RawMessage `json:"Payload"`
}

// DecodeEvent parses one marketplace notification.
// Unknown event types decode to an event without a payload. Only invalid JSON or a payload that
// is not an object is an error; individual fields of unexpected shape decode as absent.
func DecodeEvent(data []byte) (domain.MarketEvent, error) {
	var msg eventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.MarketEvent{}, fmt.Errorf("invalid event: %w", err)
	}

	ev := domain.MarketEvent{Type: domain.EventType(msg.EventType)}
	if len(msg.Payload) == 0 || bytes.Equal(msg.Payload, []byte("null")) {
		return ev, nil
	}

	switch ev.Type {
	case domain.EventAuctionPublished:
		var a auctionDTO
		if err := json.Unmarshal(msg.Payload, &a); err != nil {
			return ev, fmt.Errorf("invalid %s payload: %w", ev.Type, err)
		}
		snap, issues := a.toDomain()
		logIssues(ev.Type, snap.AuctionID, issues)
		ev.Auction = &snap

	case domain.EventSecondMarketPublished, domain.EventSecondMarketUpdated:
		var l loanDTO
		if err := json.Unmarshal(msg.Payload, &l); err != nil {
			return ev, fmt.Errorf("invalid %s payload: %w", ev.Type, err)
		}
		snap, issues := l.toDomain()
		logIssues(ev.Type, snap.ID, issues)
		ev.Loan = &snap
	}

	return ev, nil
}

func logIssues(t domain.EventType, id string, issues []string) {
	if len(issues) == 0 {
		return
	}
	slog.Default().With("module", "bondora_events").Warn("Fields with unexpected shape treated as absent",
		slog.String("event_type", string(t)),
		slog.String("id", id),
		slog.Any("fields", issues),
	)
}
