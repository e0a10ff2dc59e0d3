package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/execution"
	"bondora_go/internal/pricing"

	"github.com/google/uuid"
)

// ShowMyItemsKey restricts a secondary-market query to the account's own offers.
const ShowMyItemsKey = "ShowMyItems"

// SnapshotSource fetches the portfolio and the account's listings.
type SnapshotSource interface {
	Investments(ctx context.Context, filter domain.Filter) ([]domain.LoanSnapshot, domain.Outcome)
	SecondaryMarket(ctx context.Context, filter domain.Filter) ([]domain.LoanSnapshot, domain.Outcome)
}

// ScanExecutor submits the batch orders the scans produce.
type ScanExecutor interface {
	Sell(ctx context.Context, candidates []domain.LoanSnapshot, terms execution.SellTerms, retry bool) domain.OrderResult
	Cancel(ctx context.Context, ids []string) domain.OrderResult
}

// SellScan configures offer placement.
type SellScan struct {
	Filter            domain.Filter
	Band              pricing.Band
	DaysBeforePayment int
	Retry             bool
}

// Scanner runs the periodic portfolio scans.
// Each scan serializes itself; a tick that arrives while the previous run is in progress is skipped.
type Scanner struct {
	source       SnapshotSource
	exec         ScanExecutor
	sell         SellScan
	cancelFilter domain.Filter
	now          func() time.Time
	logger       *slog.Logger

	sellMu   sync.Mutex
	cancelMu sync.Mutex
}

// NewScanner creates a scanner.
func NewScanner(source SnapshotSource, exec ScanExecutor, sell SellScan, cancelFilter domain.Filter) *Scanner {
	return &Scanner{
		source:       source,
		exec:         exec,
		sell:         sell,
		cancelFilter: cancelFilter,
		now:          time.Now,
		logger:       slog.Default().With("module", "scanner"),
	}
}

// RunSellScan offers the matching investments on the secondary market.
func (s *Scanner) RunSellScan(ctx context.Context) domain.OrderResult {
	if !s.sellMu.TryLock() {
		s.logger.Warn("Sell scan still running, skipping tick")
		return domain.OrderResult{Outcome: domain.OutcomeNothingToDo}
	}
	defer s.sellMu.Unlock()

	log := s.logger.With(slog.String("scan", "sell"), slog.String("cycle", uuid.NewString()))
	log.Info("Sell scan started")

	parts, outcome := s.source.Investments(ctx, s.sell.Filter)
	if len(parts) == 0 {
		log.Info("Sell scan finished, nothing to offer", slog.String("outcome", string(outcome)))
		return domain.OrderResult{Outcome: outcome}
	}

	terms := execution.SellTerms{
		Band:              s.sell.Band,
		DaysBeforePayment: s.sell.DaysBeforePayment,
		Today:             s.now(),
	}
	res := s.exec.Sell(ctx, parts, terms, s.sell.Retry)
	log.Info("Sell scan finished",
		slog.Int("candidates", len(parts)),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("attempts", res.Attempts),
	)
	return res
}

// RunCancelScan withdraws the account's own secondary-market offers matching the cancel filter.
func (s *Scanner) RunCancelScan(ctx context.Context) domain.OrderResult {
	if !s.cancelMu.TryLock() {
		s.logger.Warn("Cancel scan still running, skipping tick")
		return domain.OrderResult{Outcome: domain.OutcomeNothingToDo}
	}
	defer s.cancelMu.Unlock()

	log := s.logger.With(slog.String("scan", "cancel"), slog.String("cycle", uuid.NewString()))
	log.Info("Cancel scan started")

	filter := s.cancelFilter.With(ShowMyItemsKey, "true")
	items, outcome := s.source.SecondaryMarket(ctx, filter)
	if len(items) == 0 {
		log.Info("Cancel scan finished, nothing to cancel", slog.String("outcome", string(outcome)))
		return domain.OrderResult{Outcome: outcome}
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			log.Warn("Listing without id, skipping", slog.String("loan_part_id", it.LoanPartID))
			continue
		}
		ids = append(ids, it.ID)
	}

	res := s.exec.Cancel(ctx, ids)
	log.Info("Cancel scan finished",
		slog.Int("offers", len(ids)),
		slog.String("outcome", string(res.Outcome)),
	)
	return res
}
