package execution

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/infra"
	"bondora_go/internal/pricing"
	"bondora_go/internal/ratelimit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	resp domain.SubmitResponse
	err  error
}

// fakeWriter replays scripted replies and records every call.
type fakeWriter struct {
	mu      sync.Mutex
	replies []reply
	calls   []string
	bidAmt  decimal.Decimal
	ids     [][]string
	quotes  [][]domain.PriceQuote
}

func (w *fakeWriter) next(op string) (domain.SubmitResponse, error) {
	w.calls = append(w.calls, op)
	if len(w.replies) == 0 {
		return domain.SubmitResponse{StatusCode: http.StatusOK}, nil
	}
	r := w.replies[0]
	w.replies = w.replies[1:]
	return r.resp, r.err
}

func (w *fakeWriter) Bid(_ context.Context, ids []string, amount decimal.Decimal) (domain.SubmitResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = append(w.ids, ids)
	w.bidAmt = amount
	return w.next(domain.OpBid)
}

func (w *fakeWriter) Buy(_ context.Context, ids []string) (domain.SubmitResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = append(w.ids, ids)
	return w.next(domain.OpBuy)
}

func (w *fakeWriter) Sell(_ context.Context, quotes []domain.PriceQuote) (domain.SubmitResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quotes = append(w.quotes, quotes)
	return w.next(domain.OpSell)
}

func (w *fakeWriter) Cancel(_ context.Context, ids []string) (domain.SubmitResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = append(w.ids, ids)
	return w.next(domain.OpCancel)
}

var today = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

type harness struct {
	writer  *fakeWriter
	ledger  *ratelimit.Ledger
	metrics *infra.Metrics
	waits   []time.Duration
	coord   *Coordinator
}

func newHarness(replies ...reply) *harness {
	h := &harness{
		writer:  &fakeWriter{replies: replies},
		ledger:  ratelimit.NewLedger(ratelimit.WithClock(func() time.Time { return today })),
		metrics: infra.NewMetrics(),
	}
	h.coord = NewCoordinator(h.writer, h.ledger, h.metrics, Config{},
		WithWait(func(_ context.Context, d time.Duration) error {
			h.waits = append(h.waits, d)
			return nil
		}),
	)
	return h
}

func status(code int) reply {
	return reply{resp: domain.SubmitResponse{StatusCode: code}}
}

func sellCandidates() []domain.LoanSnapshot {
	next := today.AddDate(0, 0, 10)
	return []domain.LoanSnapshot{
		{LoanPartID: "part-1", NextPaymentDate: &next},
		{LoanPartID: "part-2", NextPaymentDate: &next},
	}
}

func sellTerms() SellTerms {
	min := decimal.NewFromInt(5)
	return SellTerms{Band: pricing.NewBand(decimal.NewFromInt(10), &min), DaysBeforePayment: 2, Today: today}
}

func TestCoordinator_Execute(t *testing.T) {
	t.Run("buy submits target ids", func(t *testing.T) {
		h := newHarness(status(http.StatusOK))
		v := domain.Verdict{Eligible: true, Strategy: domain.StrategyGreenBuy, TargetIDs: []string{"sm-1"}}

		res := h.coord.Execute(context.Background(), v)

		assert.Equal(t, domain.OutcomeSubmitted, res.Outcome)
		assert.True(t, res.Submitted)
		assert.Equal(t, 1, res.AffectedCount)
		assert.Equal(t, []string{domain.OpBuy}, h.writer.calls)
		assert.Equal(t, [][]string{{"sm-1"}}, h.writer.ids)
	})

	t.Run("bid uses the verdict amount", func(t *testing.T) {
		h := newHarness(status(http.StatusAccepted))
		v := domain.Verdict{Eligible: true, Strategy: domain.StrategyAuctionBid, TargetIDs: []string{"auc-1"}, Amount: decimal.NewFromInt(7)}

		res := h.coord.Execute(context.Background(), v)

		assert.Equal(t, domain.OutcomeSubmitted, res.Outcome)
		assert.Equal(t, []string{domain.OpBid}, h.writer.calls)
		assert.True(t, h.writer.bidAmt.Equal(decimal.NewFromInt(7)))
	})

	t.Run("bid without amount makes no call", func(t *testing.T) {
		h := newHarness()
		v := domain.Verdict{Eligible: true, Strategy: domain.StrategyAuctionBid, TargetIDs: []string{"auc-1"}}

		res := h.coord.Execute(context.Background(), v)

		assert.Equal(t, domain.OutcomeFailed, res.Outcome)
		assert.Empty(t, h.writer.calls)
	})

	t.Run("ineligible verdict makes no call", func(t *testing.T) {
		h := newHarness()
		res := h.coord.Execute(context.Background(), domain.Verdict{Strategy: domain.StrategyGreenBuy, Reason: "price_at_most_5"})

		assert.Equal(t, domain.OutcomeNothingToDo, res.Outcome)
		assert.Empty(t, h.writer.calls)
	})

	t.Run("empty target list makes no call", func(t *testing.T) {
		h := newHarness()
		res := h.coord.Execute(context.Background(), domain.Verdict{Eligible: true, Strategy: domain.StrategyRedBuy})

		assert.Equal(t, domain.OutcomeNothingToDo, res.Outcome)
		assert.Empty(t, h.writer.calls)
	})

	t.Run("rejected buy is not retried", func(t *testing.T) {
		h := newHarness(status(http.StatusBadRequest), status(http.StatusOK))
		v := domain.Verdict{Eligible: true, Strategy: domain.StrategyGreenBuy, TargetIDs: []string{"sm-1"}}

		res := h.coord.Execute(context.Background(), v)

		assert.Equal(t, domain.OutcomeRejected, res.Outcome)
		assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
		assert.Equal(t, 1, res.Attempts)
		assert.Len(t, h.writer.calls, 1)
	})
}

func TestCoordinator_RateLimit(t *testing.T) {
	t.Run("blocked operation makes no call", func(t *testing.T) {
		h := newHarness()
		h.ledger.Record(domain.OpBuy, time.Minute)

		res := h.coord.Execute(context.Background(), domain.Verdict{Eligible: true, Strategy: domain.StrategyGreenBuy, TargetIDs: []string{"sm-1"}})

		assert.Equal(t, domain.OutcomeRateLimited, res.Outcome)
		assert.Empty(t, h.writer.calls)
		assert.Equal(t, uint64(1), h.metrics.Snapshot().RateLimitBlocks)
	})

	t.Run("other operations are not blocked", func(t *testing.T) {
		h := newHarness()
		h.ledger.Record(domain.OpSell, time.Minute)

		res := h.coord.Cancel(context.Background(), []string{"sm-1"})

		assert.Equal(t, domain.OutcomeSubmitted, res.Outcome)
	})

	t.Run("429 records retry-after and does not retry", func(t *testing.T) {
		h := newHarness(reply{resp: domain.SubmitResponse{StatusCode: http.StatusTooManyRequests, RetryAfter: 30 * time.Second}})

		res := h.coord.Sell(context.Background(), sellCandidates(), sellTerms(), true)

		assert.Equal(t, domain.OutcomeRateLimited, res.Outcome)
		assert.Equal(t, 1, res.Attempts)
		assert.Len(t, h.writer.calls, 1)
		assert.Empty(t, h.waits)
		assert.Equal(t, 30*time.Second, h.ledger.Remaining(domain.OpSell))
	})

	t.Run("429 without header uses default cool-down", func(t *testing.T) {
		h := newHarness(status(http.StatusTooManyRequests))

		h.coord.Cancel(context.Background(), []string{"sm-1"})

		assert.Equal(t, DefaultRetryAfter, h.ledger.Remaining(domain.OpCancel))
	})
}

func TestCoordinator_SellRetry(t *testing.T) {
	t.Run("fail then succeed with retry", func(t *testing.T) {
		h := newHarness(status(http.StatusBadRequest), status(http.StatusOK))

		res := h.coord.Sell(context.Background(), sellCandidates(), sellTerms(), true)

		assert.Equal(t, domain.OutcomeSubmitted, res.Outcome)
		assert.Equal(t, 2, res.Attempts)
		assert.Len(t, h.writer.calls, 2)
		assert.Equal(t, []time.Duration{DefaultRetryDelay}, h.waits)
		assert.Equal(t, h.writer.quotes[0], h.writer.quotes[1], "retry resubmits the identical batch")
		assert.Equal(t, uint64(1), h.metrics.Snapshot().OrderRetries)
	})

	t.Run("fail without retry", func(t *testing.T) {
		h := newHarness(status(http.StatusBadRequest), status(http.StatusOK))

		res := h.coord.Sell(context.Background(), sellCandidates(), sellTerms(), false)

		assert.Equal(t, domain.OutcomeRejected, res.Outcome)
		assert.False(t, res.Submitted)
		assert.Len(t, h.writer.calls, 1)
	})

	t.Run("second failure is terminal", func(t *testing.T) {
		h := newHarness(status(http.StatusInternalServerError), status(http.StatusInternalServerError), status(http.StatusOK))

		res := h.coord.Sell(context.Background(), sellCandidates(), sellTerms(), true)

		assert.Equal(t, domain.OutcomeRejected, res.Outcome)
		assert.Equal(t, 2, res.Attempts)
		assert.Len(t, h.writer.calls, 2)
	})

	t.Run("transport error counts as rejection", func(t *testing.T) {
		h := newHarness(reply{err: errors.New("connection reset")}, status(http.StatusOK))

		res := h.coord.Sell(context.Background(), sellCandidates(), sellTerms(), true)

		assert.Equal(t, domain.OutcomeSubmitted, res.Outcome)
		assert.Equal(t, 2, res.Attempts)
	})

	t.Run("transport error on retry clears the first status", func(t *testing.T) {
		h := newHarness(status(http.StatusInternalServerError), reply{err: errors.New("connection reset")})

		res := h.coord.Sell(context.Background(), sellCandidates(), sellTerms(), true)

		assert.Equal(t, domain.OutcomeFailed, res.Outcome)
		assert.Equal(t, 2, res.Attempts)
		assert.Zero(t, res.HTTPStatus)
	})

	t.Run("cancelled wait abandons retry", func(t *testing.T) {
		h := newHarness(status(http.StatusBadRequest), status(http.StatusOK))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		coord := NewCoordinator(h.writer, h.ledger, nil, Config{})

		res := coord.Sell(ctx, sellCandidates(), sellTerms(), true)

		assert.Equal(t, domain.OutcomeRejected, res.Outcome)
		assert.Len(t, h.writer.calls, 1)
	})

	t.Run("retry re-checks the ledger", func(t *testing.T) {
		h := newHarness(status(http.StatusBadRequest), status(http.StatusOK))
		h.coord.wait = func(context.Context, time.Duration) error {
			h.ledger.Record(domain.OpSell, time.Minute)
			return nil
		}

		res := h.coord.Sell(context.Background(), sellCandidates(), sellTerms(), true)

		assert.Equal(t, domain.OutcomeRateLimited, res.Outcome)
		assert.Len(t, h.writer.calls, 1)
	})
}

func TestCoordinator_Sell(t *testing.T) {
	t.Run("prices each part", func(t *testing.T) {
		h := newHarness()

		res := h.coord.Sell(context.Background(), sellCandidates(), sellTerms(), false)

		require.Equal(t, domain.OutcomeSubmitted, res.Outcome)
		require.Len(t, h.writer.quotes, 1)
		require.Len(t, h.writer.quotes[0], 2)
		// next payment is 8 days past the cutoff: 5 + 8 clamps to 10
		for _, q := range h.writer.quotes[0] {
			assert.True(t, q.Price.Equal(decimal.NewFromInt(10)), q.Price.String())
		}
	})

	t.Run("unpriceable part is skipped", func(t *testing.T) {
		h := newHarness()
		parts := sellCandidates()
		parts[1].NextPaymentDate = nil

		res := h.coord.Sell(context.Background(), parts, sellTerms(), false)

		assert.Equal(t, domain.OutcomeSubmitted, res.Outcome)
		require.Len(t, h.writer.quotes[0], 1)
		assert.Equal(t, "part-1", h.writer.quotes[0][0].LoanPartID)
	})

	t.Run("nothing to sell", func(t *testing.T) {
		h := newHarness()

		res := h.coord.Sell(context.Background(), nil, sellTerms(), true)

		assert.Equal(t, domain.OutcomeNothingToDo, res.Outcome)
		assert.Empty(t, h.writer.calls)
	})
}

func TestLoanCount(t *testing.T) {
	assert.Equal(t, "1 loan", loanCount(1))
	assert.Equal(t, "3 loans", loanCount(3))
}
