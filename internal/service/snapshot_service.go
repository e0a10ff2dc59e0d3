package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/infra"
	"bondora_go/internal/ratelimit"
)

// SnapshotService fetches marketplace snapshots for the scans.
// It honours the rate-limit ledger for reads the same way the coordinator does for writes.
type SnapshotService struct {
	reader  domain.MarketReader
	ledger  *ratelimit.Ledger
	metrics *infra.Metrics
	logger  *slog.Logger

	mu        sync.RWMutex
	lastFetch map[string]time.Time
}

// NewSnapshotService creates a new SnapshotService instance
func NewSnapshotService(reader domain.MarketReader, ledger *ratelimit.Ledger, metrics *infra.Metrics) *SnapshotService {
	return &SnapshotService{
		reader:    reader,
		ledger:    ledger,
		metrics:   metrics,
		logger:    slog.Default().With("module", "snapshots"),
		lastFetch: make(map[string]time.Time),
	}
}

// Investments returns the account's loan parts matching filter.
// The Outcome is empty when items are returned; otherwise it says why there are none.
func (s *SnapshotService) Investments(ctx context.Context, filter domain.Filter) ([]domain.LoanSnapshot, domain.Outcome) {
	return s.fetch(ctx, domain.OpGetInvestments, filter, s.reader.Investments)
}

// SecondaryMarket returns the secondary-market listings matching filter.
func (s *SnapshotService) SecondaryMarket(ctx context.Context, filter domain.Filter) ([]domain.LoanSnapshot, domain.Outcome) {
	return s.fetch(ctx, domain.OpGetSecondaryMarket, filter, s.reader.SecondaryMarket)
}

// LastFetch returns when op last returned data successfully.
func (s *SnapshotService) LastFetch(op string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.lastFetch[op]
	return t, ok
}

func (s *SnapshotService) fetch(ctx context.Context, op string, filter domain.Filter, read func(context.Context, domain.Filter) ([]domain.LoanSnapshot, error)) ([]domain.LoanSnapshot, domain.Outcome) {
	log := s.logger.With(slog.String("operation", op))

	if remaining := s.ledger.Remaining(op); remaining > 0 {
		log.Warn("Read is rate limited, skipping", slog.Duration("remaining", remaining))
		s.metrics.RecordRateLimitBlock()
		return nil, domain.OutcomeRateLimited
	}

	items, err := read(ctx, filter)
	if err != nil {
		if rl, ok := domain.AsRateLimit(err); ok {
			retryAfter := rl.RetryAfter
			if retryAfter <= 0 {
				retryAfter = ratelimit.DefaultCooldown
			}
			s.ledger.Record(op, retryAfter)
			s.metrics.RecordRateLimitBlock()
			return nil, domain.OutcomeRateLimited
		}
		log.Error("Failed to fetch snapshots", slog.Any("error", err))
		return nil, domain.OutcomeFailed
	}

	s.mu.Lock()
	s.lastFetch[op] = time.Now()
	s.mu.Unlock()

	if len(items) == 0 {
		log.Info("No loans matched the filter", slog.Any("filter", filter))
		return nil, domain.OutcomeNothingToDo
	}

	log.Debug("Snapshots fetched", slog.Int("count", len(items)))
	return items, ""
}
